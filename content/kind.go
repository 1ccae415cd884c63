package content

import "fmt"

// Kind describes what differs between content kinds: names, user facing
// messages and optional capabilities.
type Kind struct {
	// Singular names single record cache keys ("note:{id}").
	Singular string
	// Plural names the listing family and is the invalidation prefix.
	Plural string
	// Label is used in messages ("Note not found").
	Label string
	// UpdateFailed is reported when the store rejects an update.
	UpdateFailed string
	// TagSearch enables matching search tokens against tags.
	TagSearch bool
	// RequiresImage makes an image mandatory on create.
	RequiresImage bool
}

var (
	NoteKind = Kind{
		Singular:     "note",
		Plural:       "notes",
		Label:        "Note",
		UpdateFailed: "Ошибка при обновлении заметки",
	}
	PostKind = Kind{
		Singular:      "post",
		Plural:        "posts",
		Label:         "Post",
		UpdateFailed:  "Ошибка при обновлении поста",
		TagSearch:     true,
		RequiresImage: true,
	}
)

// NotFound is returned for missing or soft deleted records of the kind.
func (k Kind) NotFound() *Error {
	return NotFound(k.Label + " not found")
}

// NotDeleted is returned when restoring a live record.
func (k Kind) NotDeleted() *Error {
	return BadRequest(k.Label + " is not deleted")
}

// DeletedMessage is the message returned by a successful delete.
func (k Kind) DeletedMessage(id string) string {
	return fmt.Sprintf("%s %s deleted successfully", k.Label, id)
}
