package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// EmptyRichText is what the editor submits for an empty document.
const EmptyRichText = "<p><br></p>"

const (
	MsgImageRequired = "Картинка обязательна для загрузки"
	MsgInvalidTags   = "Некорректный формат тегов"
)

func blankMessage(field string) string {
	return fmt.Sprintf("Поле %q не может быть пустым", field)
}

// BlankField is the error for a field that was sent without a usable
// value, such as a JSON null or a blank form value.
func BlankField(field string) *Error {
	return BadRequest(blankMessage(field))
}

func notBlank(msg string) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, ok := value.(*string)
		if !ok || s == nil {
			return nil
		}
		if strings.TrimSpace(*s) == "" {
			return errors.New(msg)
		}
		return nil
	})
}

func notEmptyRichText(msg string) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, ok := value.(*string)
		if !ok || s == nil {
			return nil
		}
		if strings.TrimSpace(*s) == EmptyRichText {
			return errors.New(msg)
		}
		return nil
	})
}

type fieldRules struct {
	value interface{}
	rules []validation.Rule
}

// ValidateCreate checks a create payload. Title, content and theme id are
// required; fields are checked in that order and the first failure wins.
func ValidateCreate(p Patch) error {
	return validateFields(
		fieldRules{p.Title, []validation.Rule{validation.NotNil.Error(blankMessage("title")), notBlank(blankMessage("title"))}},
		fieldRules{p.ThemeID, []validation.Rule{validation.NotNil.Error(blankMessage("themeId"))}},
		fieldRules{p.Content, []validation.Rule{validation.NotNil.Error(blankMessage("content")), notEmptyRichText(blankMessage("content"))}},
	)
}

// ValidateUpdate checks a partial update; only present fields are checked.
func ValidateUpdate(p Patch) error {
	return validateFields(
		fieldRules{p.Title, []validation.Rule{notBlank(blankMessage("title"))}},
		fieldRules{p.Content, []validation.Rule{notEmptyRichText(blankMessage("content"))}},
	)
}

func validateFields(fields ...fieldRules) error {
	for _, f := range fields {
		if err := validation.Validate(f.value, f.rules...); err != nil {
			return BadRequest(err.Error())
		}
	}
	return nil
}

// ParseTags decodes tags sent as a JSON encoded string, as multipart forms
// do.
func ParseTags(raw string) ([]string, error) {
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, Wrap(KindBadRequest, MsgInvalidTags, err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}
