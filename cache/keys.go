package cache

// deletedSegment marks the listing of soft deleted records.
const deletedSegment = "deleted"

// KeyBuilder derives the keys of one content family: listings under the
// plural name and single records under the singular name.
type KeyBuilder struct {
	Singular   string
	Plural     string
	Serializer KeySerializer
}

// NewKeyBuilder uses the default serializer.
func NewKeyBuilder(singular, plural string) KeyBuilder {
	return KeyBuilder{
		Singular:   singular,
		Plural:     plural,
		Serializer: NewDefaultKeySerializer(),
	}
}

func (b KeyBuilder) serializer() KeySerializer {
	if b.Serializer == nil {
		return NewDefaultKeySerializer()
	}
	return b.Serializer
}

// Listing returns {plural}:{skip}:{take}:{order}:{search}.
func (b KeyBuilder) Listing(skip, take int, order, search string) string {
	return b.serializer().SerializeKey(b.Plural, skip, take, order, search)
}

// DeletedListing returns {plural}:deleted:{skip}:{take}:{order}:{search}.
func (b KeyBuilder) DeletedListing(skip, take int, order, search string) string {
	return b.serializer().SerializeKey(b.Plural, deletedSegment, skip, take, order, search)
}

// Item returns {singular}:{id}.
func (b KeyBuilder) Item(id string) string {
	return b.serializer().SerializeKey(b.Singular, id)
}

// ListingPattern matches every listing key of the family, deleted ones
// included.
func (b KeyBuilder) ListingPattern() string {
	return b.Plural + KeySeparator + "*"
}
