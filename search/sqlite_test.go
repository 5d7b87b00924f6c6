package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/storyline/database"
	"github.com/eringen/storyline/post"
)

func setupTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	idx, err := NewSQLiteIndex(db)
	require.NoError(t, err)
	return idx
}

func TestSQLiteIndexAddSearchRemove(t *testing.T) {
	ctx := context.Background()
	idx := setupTestIndex(t)

	golang := &post.Post{ID: "go-tips", Title: "Go Concurrency Tips", Content: "Channels and goroutines.", Status: post.StatusPublished, Tags: []string{"golang"}}
	cafe := &post.Post{ID: "cafe", Title: "Café Reviews", Content: "Espresso everywhere.", Status: post.StatusPublished}
	require.NoError(t, idx.Add(ctx, golang.ID, NewDocument(golang), PostsCollection))
	require.NoError(t, idx.Add(ctx, cafe.ID, NewDocument(cafe), PostsCollection))

	hits, err := idx.Search(ctx, "gorout", PostsCollection)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "go-tips", hits[0].ID)
	require.NotNil(t, hits[0].Post)
	assert.Equal(t, "Go Concurrency Tips", hits[0].Post.Title)

	hits, err = idx.Search(ctx, "cafe", PostsCollection)
	require.NoError(t, err)
	require.Len(t, hits, 1, "diacritics are folded")
	assert.Equal(t, "cafe", hits[0].ID)

	hits, err = idx.Search(ctx, "go espresso", PostsCollection)
	require.NoError(t, err)
	assert.Empty(t, hits, "every term must match")

	hits, err = idx.Search(ctx, "gorout", "other")
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, idx.Remove(ctx, "go-tips", PostsCollection))
	require.NoError(t, idx.Remove(ctx, "go-tips", PostsCollection), "removing twice is fine")
	n, err := idx.count(ctx, PostsCollection)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteIndexIgnoresOperators(t *testing.T) {
	ctx := context.Background()
	idx := setupTestIndex(t)

	p := &post.Post{ID: "a", Title: "NOT a problem", Status: post.StatusPublished}
	require.NoError(t, idx.Add(ctx, p.ID, NewDocument(p), PostsCollection))

	hits, err := idx.Search(ctx, `NOT "problem" (`, PostsCollection)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = idx.Search(ctx, `  *** `, PostsCollection)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMatchExpr(t *testing.T) {
	assert.Equal(t, `"go"* "web"*`, matchExpr("go, web!"))
	assert.Equal(t, "", matchExpr(`"" *`))
}
