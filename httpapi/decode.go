package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-content-cache/content"
	"github.com/goliatone/go-content-cache/media"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temp files. The body limit is enforced separately.
const multipartMemory = 8 << 20

const msgInvalidThemeID = `Поле "themeId" должно быть числом`

// jsonPatch is the JSON request body. Fields stay raw so a null can be
// told apart from an absent field. Tags accept an array or a JSON encoded
// string.
type jsonPatch struct {
	Title   json.RawMessage `json:"title"`
	Content json.RawMessage `json:"content"`
	ThemeID json.RawMessage `json:"themeId"`
	Tags    json.RawMessage `json:"tags"`
}

// decodePatch reads a create or update payload from a JSON or multipart
// body. The upload is nil when no image part was sent.
func decodePatch(r *http.Request) (content.Patch, *media.Upload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return decodeMultipart(r)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return content.Patch{}, nil, decodeError(err)
		}
		p, err := patchFromForm(r.PostForm)
		return p, nil, err
	default:
		p, err := decodeJSON(r.Body)
		return p, nil, err
	}
}

func decodeJSON(body io.Reader) (content.Patch, error) {
	var in jsonPatch
	if err := json.NewDecoder(body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		return content.Patch{}, decodeError(err)
	}

	var (
		p   content.Patch
		err error
	)
	if p.Title, err = jsonString(in.Title, "title"); err != nil {
		return content.Patch{}, err
	}
	if p.Content, err = jsonString(in.Content, "content"); err != nil {
		return content.Patch{}, err
	}
	if p.ThemeID, err = jsonThemeID(in.ThemeID); err != nil {
		return content.Patch{}, err
	}
	if p.Tags, err = jsonTags(in.Tags); err != nil {
		return content.Patch{}, err
	}
	return p, nil
}

// present reports whether a field was sent. A sent null is present.
func present(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) > 0
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func jsonString(raw json.RawMessage, field string) (*string, error) {
	if !present(raw) {
		return nil, nil
	}
	if isNull(raw) {
		return nil, content.BlankField(field)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, decodeError(err)
	}
	return &s, nil
}

// jsonThemeID accepts a number or a numeric string, as forms send it.
func jsonThemeID(raw json.RawMessage) (*int, error) {
	if !present(raw) {
		return nil, nil
	}
	if isNull(raw) {
		return nil, content.BlankField("themeId")
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, content.BadRequest(msgInvalidThemeID)
	}
	return parseThemeID(s)
}

func parseThemeID(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, content.BlankField("themeId")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, content.BadRequest(msgInvalidThemeID)
	}
	return &n, nil
}

func jsonTags(raw json.RawMessage) (*[]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, content.Wrap(content.KindBadRequest, content.MsgInvalidTags, err)
		}
		tags, err := content.ParseTags(encoded)
		if err != nil {
			return nil, err
		}
		return &tags, nil
	}

	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, content.Wrap(content.KindBadRequest, content.MsgInvalidTags, err)
	}
	if tags == nil {
		tags = []string{}
	}
	return &tags, nil
}

func decodeMultipart(r *http.Request) (content.Patch, *media.Upload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return content.Patch{}, nil, decodeError(err)
	}
	p, err := patchFromForm(r.MultipartForm.Value)
	if err != nil {
		return content.Patch{}, nil, err
	}
	upload, err := formUpload(r)
	if err != nil {
		return content.Patch{}, nil, err
	}
	return p, upload, nil
}

// patchFromForm maps form fields onto a patch. Absent fields stay nil so
// updates only touch what was sent; a blank themeId is rejected.
func patchFromForm(form map[string][]string) (content.Patch, error) {
	var p content.Patch
	if v, ok := first(form, "title"); ok {
		p.Title = &v
	}
	if v, ok := first(form, "content"); ok {
		p.Content = &v
	}
	if v, ok := first(form, "themeId"); ok {
		n, err := parseThemeID(v)
		if err != nil {
			return content.Patch{}, err
		}
		p.ThemeID = n
	}

	values, ok := form["tags"]
	if !ok {
		values, ok = form["tags[]"]
	}
	if ok {
		tags, err := formTags(values)
		if err != nil {
			return content.Patch{}, err
		}
		p.Tags = &tags
	}
	return p, nil
}

// formTags accepts repeated tag fields or a single JSON encoded array.
func formTags(values []string) ([]string, error) {
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		return content.ParseTags(values[0])
	}
	tags := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			tags = append(tags, v)
		}
	}
	return tags, nil
}

func first(form map[string][]string, key string) (string, bool) {
	values, ok := form[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// formUpload reads the "image" part of a parsed multipart form.
func formUpload(r *http.Request) (*media.Upload, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, decodeError(err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, decodeError(err)
	}
	return &media.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
