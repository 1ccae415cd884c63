package bunstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-content-cache/content"
	"github.com/goliatone/go-content-cache/store"
)

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, "file:"+filepath.Join(t.TempDir(), "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, CreateSchema(ctx, db))
	return db
}

func newPostStore(t *testing.T) *Store[*content.Post] {
	return New(openTestDB(t), func() *content.Post { return new(content.Post) })
}

func newNoteStore(t *testing.T) *Store[*content.Note] {
	return New(openTestDB(t), func() *content.Note { return new(content.Note) })
}

func seed(t *testing.T, s *Store[*content.Post]) []*content.Post {
	t.Helper()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	fixtures := []*content.Post{
		{Item: content.Item{Title: "Go generics", Content: "<p>type params</p>", ThemeID: 1, Views: 5, CreatedAt: base}, Tags: []string{"go"}, Image: "/uploads/a.jpg"},
		{Item: content.Item{Title: "Rust ownership", Content: "<p>borrowing</p>", ThemeID: 2, Views: 12, CreatedAt: base.Add(time.Hour)}, Tags: []string{"rust"}, Image: "/uploads/b.jpg"},
		{Item: content.Item{Title: "Caching", Content: "<p>read through in Go</p>", ThemeID: 1, Views: 1, CreatedAt: base.Add(2 * time.Hour)}, Tags: []string{"cache", "redis"}, Image: "/uploads/c.jpg"},
		{Item: content.Item{Title: "100% coverage", Content: "<p>tests</p>", ThemeID: 3, Views: 0, CreatedAt: base.Add(3 * time.Hour)}, Tags: []string{}, Image: "/uploads/d.jpg"},
	}
	var out []*content.Post
	for _, p := range fixtures {
		created, err := s.Create(context.Background(), p)
		require.NoError(t, err)
		out = append(out, created)
	}
	return out
}

func titles(posts []*content.Post) []string {
	out := []string{}
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}

func TestStore_CreateAndFindUnique(t *testing.T) {
	s := newNoteStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, &content.Note{Item: content.Item{Title: "Hello", Content: "<p>world</p>", ThemeID: 4}})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	found, err := s.FindUnique(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", found.Title)
	assert.Equal(t, 4, found.ThemeID)
	assert.Equal(t, int64(0), found.Views)
	assert.True(t, found.Live())

	_, err = s.FindUnique(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_FindManyAndCount(t *testing.T) {
	s := newPostStore(t)
	seed(t, s)
	ctx := context.Background()

	tests := []struct {
		name  string
		query content.Query
		want  []string
	}{
		{
			name:  "newest",
			query: content.Compose(content.PostKind, content.StateLive, 0, 10, content.OrderNewest, "", 0),
			want:  []string{"100% coverage", "Caching", "Rust ownership", "Go generics"},
		},
		{
			name:  "oldest paged",
			query: content.Compose(content.PostKind, content.StateLive, 1, 2, content.OrderOldest, "", 0),
			want:  []string{"Rust ownership", "Caching"},
		},
		{
			name:  "popular",
			query: content.Compose(content.PostKind, content.StateLive, 0, 2, content.OrderPopular, "", 0),
			want:  []string{"Rust ownership", "Go generics"},
		},
		{
			name:  "case insensitive substring",
			query: content.Compose(content.PostKind, content.StateLive, 0, 10, content.OrderNewest, "GO", 0),
			want:  []string{"Caching", "Go generics"},
		},
		{
			name:  "tags",
			query: content.Compose(content.PostKind, content.StateLive, 0, 10, content.OrderNewest, "redis rust", 0),
			want:  []string{"Caching", "Rust ownership"},
		},
		{
			name:  "like wildcards are literal",
			query: content.Compose(content.PostKind, content.StateLive, 0, 10, content.OrderNewest, "100%", 0),
			want:  []string{"100% coverage"},
		},
		{
			name:  "no match",
			query: content.Compose(content.PostKind, content.StateLive, 0, 10, content.OrderNewest, "haskell", 0),
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindMany(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))

			total, err := s.Count(ctx, tt.query.Filter)
			require.NoError(t, err)
			if tt.query.Skip == 0 && tt.query.Take >= 10 {
				assert.Equal(t, len(tt.want), total)
			}
		})
	}
}

func TestStore_SoftDeleteAndRestore(t *testing.T) {
	s := newPostStore(t)
	posts := seed(t, s)
	ctx := context.Background()

	at := time.Now().UTC()
	deleted, err := s.SetDeletedAt(ctx, posts[0].ID, &at)
	require.NoError(t, err)
	require.NotNil(t, deleted.DeletedAt)

	live, err := s.FindMany(ctx, content.Compose(content.PostKind, content.StateLive, 0, 10, content.OrderNewest, "", 0))
	require.NoError(t, err)
	assert.NotContains(t, titles(live), "Go generics")

	gone, err := s.FindMany(ctx, content.Compose(content.PostKind, content.StateDeleted, 0, 10, content.OrderNewest, "", 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"Go generics"}, titles(gone))

	restored, err := s.SetDeletedAt(ctx, posts[0].ID, nil)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)

	_, err = s.SetDeletedAt(ctx, uuid.New(), &at)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_UpdateKeepsDeletionAndViews(t *testing.T) {
	s := newPostStore(t)
	posts := seed(t, s)
	ctx := context.Background()

	stale := posts[1].Clone()

	at := time.Now().UTC()
	_, err := s.SetDeletedAt(ctx, stale.ID, &at)
	require.NoError(t, err)
	_, err = s.Increment(ctx, stale.ID, content.FieldViews)
	require.NoError(t, err)

	stale.Title = "Rust lifetimes"
	stale.Tags = []string{"rust", "lifetimes"}
	updated, err := s.Update(ctx, stale)
	require.NoError(t, err)

	assert.Equal(t, "Rust lifetimes", updated.Title)
	assert.Equal(t, []string{"rust", "lifetimes"}, updated.Tags)
	assert.NotNil(t, updated.DeletedAt)
	assert.Equal(t, int64(13), updated.Views)

	_, err = s.Update(ctx, &content.Post{Item: content.Item{ID: uuid.New()}})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_Increment(t *testing.T) {
	s := newNoteStore(t)
	ctx := context.Background()

	note, err := s.Create(ctx, &content.Note{Item: content.Item{Title: "t", Content: "c", ThemeID: 1}})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Increment(ctx, note.ID, content.FieldViews)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.FindUnique(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), got.Views)

	_, err = s.Increment(ctx, note.ID, content.Field("likes"))
	assert.Error(t, err)
	_, err = s.Increment(ctx, uuid.New(), content.FieldViews)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "")
	assert.Error(t, err)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\dir`, escapeLike(`c:\dir`))
}

func TestStore_SearchFoldsNonASCII(t *testing.T) {
	s := newNoteStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, &content.Note{Item: content.Item{Title: "Привет мир", Content: "<p>Заметка</p>", ThemeID: 1}})
	require.NoError(t, err)
	_, err = s.Create(ctx, &content.Note{Item: content.Item{Title: "Hello", Content: "<p>world</p>", ThemeID: 1}})
	require.NoError(t, err)

	for _, search := range []string{"привет", "ПРИВЕТ", "заметка", "Мир"} {
		q := content.Compose(content.NoteKind, content.StateLive, 0, 10, content.OrderNewest, search, 0)

		notes, err := s.FindMany(ctx, q)
		require.NoError(t, err, search)
		require.Len(t, notes, 1, search)
		assert.Equal(t, "Привет мир", notes[0].Title)

		total, err := s.Count(ctx, q.Filter)
		require.NoError(t, err)
		assert.Equal(t, 1, total, search)
	}
}
