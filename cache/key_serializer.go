package cache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = ":"

// MaxSegmentLength bounds string segments. Longer strings are replaced by
// their hash so keys stay short and safe for any backend.
const MaxSegmentLength = 64

// KeySerializer builds a cache key from a namespace and its arguments.
// Equal arguments must produce equal keys.
type KeySerializer interface {
	SerializeKey(namespace string, args ...any) string
}

type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return defaultKeySerializer{}
}

// SerializeKey joins the namespace and the serialized args with KeySeparator.
func (defaultKeySerializer) SerializeKey(namespace string, args ...any) string {
	if len(args) == 0 {
		return namespace
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, namespace)
	for _, arg := range args {
		parts = append(parts, serializeValue(arg))
	}
	return strings.Join(parts, KeySeparator)
}

func serializeValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return boundedString(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return boundedString(val.String())
	default:
		return boundedString(fmt.Sprintf("%v", val))
	}
}

func boundedString(s string) string {
	if len(s) <= MaxSegmentLength {
		return s
	}
	return "#" + strconv.FormatUint(xxhash.Sum64String(s), 16)
}
