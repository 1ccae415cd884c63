package content

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Item holds the fields shared by every content kind. It is embedded in the
// concrete models so bun flattens it into their tables.
type Item struct {
	ID        uuid.UUID  `bun:"id,pk,type:uuid" json:"id" msgpack:"id"`
	Title     string     `bun:"title,notnull" json:"title" msgpack:"title"`
	Content   string     `bun:"content,notnull" json:"content" msgpack:"content"`
	ThemeID   int        `bun:"theme_id,notnull" json:"themeId" msgpack:"themeId"`
	Views     int64      `bun:"views,notnull,default:0" json:"views" msgpack:"views"`
	CreatedAt time.Time  `bun:"created_at,notnull" json:"createdAt" msgpack:"createdAt"`
	DeletedAt *time.Time `bun:"deleted_at,nullzero" json:"deletedAt" msgpack:"deletedAt"`
}

// Live reports whether the item has not been soft deleted.
func (i *Item) Live() bool {
	return i.DeletedAt == nil
}

// Entity is implemented by the persisted content models. T is the model
// pointer type itself, which lets generic code clone and merge records
// without reflection.
type Entity[T any] interface {
	Core() *Item
	// Clone returns a deep copy safe to hand to another goroutine.
	Clone() T
	// Apply copies the non-nil fields of p into the record.
	Apply(p Patch)
	// MergeMutable copies the columns written by an update from src.
	MergeMutable(src T)
	// MutableColumns lists the columns written by an update.
	MutableColumns() []string
}

// Tagged is implemented by kinds whose records can be matched by tag.
type Tagged interface {
	TagList() []string
}

// Patch is a partial set of field values. Nil fields are left untouched.
type Patch struct {
	Title   *string
	Content *string
	ThemeID *int
	Tags    *[]string
	Image   *string
}

var baseColumns = []string{"title", "content", "theme_id"}

func (i *Item) apply(p Patch) {
	if p.Title != nil {
		i.Title = *p.Title
	}
	if p.Content != nil {
		i.Content = *p.Content
	}
	if p.ThemeID != nil {
		i.ThemeID = *p.ThemeID
	}
}

func (i *Item) mergeMutable(src *Item) {
	i.Title = src.Title
	i.Content = src.Content
	i.ThemeID = src.ThemeID
}

func (i Item) clone() Item {
	if i.DeletedAt != nil {
		at := *i.DeletedAt
		i.DeletedAt = &at
	}
	return i
}

// Note is a plain rich text note.
type Note struct {
	bun.BaseModel `bun:"table:notes,alias:n" json:"-" msgpack:"-"`
	Item
}

// Core returns the shared fields.
func (n *Note) Core() *Item { return &n.Item }

// Clone returns a deep copy of the note.
func (n *Note) Clone() *Note {
	return &Note{Item: n.Item.clone()}
}

// Apply copies the non-nil fields of p into the note.
func (n *Note) Apply(p Patch) { n.Item.apply(p) }

// MergeMutable copies title, content and theme id from src.
func (n *Note) MergeMutable(src *Note) { n.Item.mergeMutable(&src.Item) }

// MutableColumns lists the columns an update writes.
func (n *Note) MutableColumns() []string { return baseColumns }

// Post is an article with an illustration and tags.
type Post struct {
	bun.BaseModel `bun:"table:posts,alias:p" json:"-" msgpack:"-"`
	Item
	Tags  []string `bun:"tags,type:jsonb" json:"tags" msgpack:"tags"`
	Image string   `bun:"image" json:"image" msgpack:"image"`
}

// Core returns the shared fields.
func (p *Post) Core() *Item { return &p.Item }

// Clone returns a deep copy of the post, tags included.
func (p *Post) Clone() *Post {
	c := &Post{Item: p.Item.clone(), Image: p.Image}
	if p.Tags != nil {
		c.Tags = append([]string(nil), p.Tags...)
	}
	return c
}

// Apply copies the non-nil fields of patch into the post.
func (p *Post) Apply(patch Patch) {
	p.Item.apply(patch)
	if patch.Tags != nil {
		p.Tags = append([]string(nil), (*patch.Tags)...)
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
}

// MergeMutable copies the mutable columns from src.
func (p *Post) MergeMutable(src *Post) {
	p.Item.mergeMutable(&src.Item)
	p.Tags = append([]string(nil), src.Tags...)
	p.Image = src.Image
}

// MutableColumns lists the columns an update writes.
func (p *Post) MutableColumns() []string {
	return append(append([]string(nil), baseColumns...), "tags", "image")
}

// TagList returns the post tags for tag search.
func (p *Post) TagList() []string { return p.Tags }

var (
	_ Entity[*Note] = (*Note)(nil)
	_ Entity[*Post] = (*Post)(nil)
	_ Tagged        = (*Post)(nil)
)
