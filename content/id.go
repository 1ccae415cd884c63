package content

import "github.com/google/uuid"

// ErrInvalidID is returned for identifiers that are not canonical UUIDs.
var ErrInvalidID = BadRequest("Invalid ID format")

// ParseID accepts only the canonical lowercase hyphenated form, so every
// record has exactly one valid spelling and one cache key.
func ParseID(raw string) (uuid.UUID, error) {
	if len(raw) != 36 {
		return uuid.Nil, ErrInvalidID
	}
	id, err := uuid.Parse(raw)
	if err != nil || id.String() != raw {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}
