// Package search keeps a full-text index in step with the published posts
// and answers queries from it, falling back to a substring scan whenever the
// index is missing or failing.
package search

import (
	"context"
	"strings"

	"github.com/eringen/storyline/post"
)

// PostsCollection is the collection every post document is stored in.
const PostsCollection = "posts"

// Document is the denormalized record sent to the index. Text is the single
// field queries match against.
type Document struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Subtitle     string     `json:"subtitle"`
	Excerpt      string     `json:"excerpt"`
	Tags         []string   `json:"tags"`
	AuthorName   string     `json:"authorName"`
	AuthorHandle string     `json:"authorHandle"`
	Text         string     `json:"text"`
	Post         *post.Post `json:"post,omitempty"`
}

// Hit is one search result. Post is the snapshot taken when the document was
// indexed, nil when the backend only returns keys.
type Hit struct {
	ID   string
	Post *post.Post
}

// Index is a full-text backend. Removing an absent id is not an error.
type Index interface {
	Add(ctx context.Context, id string, doc Document, collection string) error
	Remove(ctx context.Context, id, collection string) error
	Search(ctx context.Context, query, collection string) ([]Hit, error)
}

// NewDocument flattens p into a Document.
func NewDocument(p *post.Post) Document {
	parts := []string{
		p.Title,
		p.Subtitle,
		p.Excerpt,
		p.Content,
		strings.Join(p.Tags, " "),
		p.Author.Name,
		p.Author.Handle,
	}
	return Document{
		ID:           p.ID,
		Title:        p.Title,
		Subtitle:     p.Subtitle,
		Excerpt:      p.Excerpt,
		Tags:         append([]string(nil), p.Tags...),
		AuthorName:   p.Author.Name,
		AuthorHandle: p.Author.Handle,
		Text:         strings.Join(strings.Fields(strings.Join(parts, " ")), " "),
		Post:         p.Clone(),
	}
}

// Matches is the in-memory fallback: a case-insensitive substring match over
// title, subtitle, excerpt and tags, plus author name when withAuthor is set.
// An empty query matches everything.
func Matches(p *post.Post, query string, withAuthor bool) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	fields := []string{p.Title, p.Subtitle, p.Excerpt}
	fields = append(fields, p.Tags...)
	if withAuthor {
		fields = append(fields, p.Author.Name)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
