package testsupport

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-content-cache/content"
)

// Ptr returns a pointer to v.
func Ptr[V any](v V) *V { return &v }

// NotePatch returns a complete create payload for a note.
func NotePatch(title string) content.Patch {
	return content.Patch{
		Title:   Ptr(title),
		Content: Ptr("<p>" + title + "</p>"),
		ThemeID: Ptr(1),
	}
}

// PostPatch returns a complete create payload for a post with tags.
func PostPatch(title string, tags ...string) content.Patch {
	p := NotePatch(title)
	if tags == nil {
		tags = []string{}
	}
	p.Tags = &tags
	return p
}

// SeedRecord is one entry of a JSON seed fixture.
type SeedRecord struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	ThemeID int      `json:"themeId"`
	Tags    []string `json:"tags"`
}

// Patch converts the seed entry to a create payload.
func (s SeedRecord) Patch() content.Patch {
	p := content.Patch{
		Title:   Ptr(s.Title),
		Content: Ptr(s.Content),
		ThemeID: Ptr(s.ThemeID),
	}
	if s.Tags != nil {
		p.Tags = Ptr(append([]string(nil), s.Tags...))
	}
	return p
}

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
func LoadFixtureJSON(t *testing.T, path string, dest interface{}) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadSeed reads a JSON array of SeedRecord.
func LoadSeed(t *testing.T, path string) []SeedRecord {
	t.Helper()

	var records []SeedRecord
	LoadFixtureJSON(t, path, &records)
	if len(records) == 0 {
		t.Fatalf("seed fixture %s is empty", path)
	}
	return records
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// Gradient returns a w x h image with varying pixels so encoders cannot
// collapse it.
func Gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

// PNG encodes a w x h gradient.
func PNG(t *testing.T, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, Gradient(w, h)); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// JPEG encodes a w x h gradient.
func JPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gradient(w, h), nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}
