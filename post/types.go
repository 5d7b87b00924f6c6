// Package post owns the Post record: its computed fields, the plain-text
// document format it is stored in, and the directory-backed store that keeps
// drafts and published stories apart on disk.
package post

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
)

// ParseStatus maps s case-insensitively onto a known status. Anything that
// is not published or scheduled is a draft.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(StatusPublished):
		return StatusPublished
	case string(StatusScheduled):
		return StatusScheduled
	default:
		return StatusDraft
	}
}

// ValidStatus reports whether s names a status exactly, ignoring case and
// surrounding space. ParseStatus stays lenient for files on disk; requests
// are checked with ValidStatus first.
func ValidStatus(s string) bool {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPublished, StatusDraft, StatusScheduled:
		return true
	}
	return false
}

// Author identifies who wrote a post or comment.
type Author struct {
	Name   string  `json:"name"`
	Handle string  `json:"handle"`
	Avatar *string `json:"avatar"`
	Bio    *string `json:"bio"`
}

// Stats are the engagement counters of a post.
type Stats struct {
	Views     int `json:"views"`
	Claps     int `json:"claps"`
	Bookmarks int `json:"bookmarks"`
	Comments  int `json:"comments"`
}

// SEO carries per-post metadata for the <head> of a rendered story.
type SEO struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	CanonicalURL string `json:"canonicalUrl"`
}

// Post is a story with its derived fields already computed.
type Post struct {
	ID              string     `json:"id"`
	Slug            string     `json:"slug"`
	Title           string     `json:"title"`
	Subtitle        string     `json:"subtitle"`
	Content         string     `json:"content"`
	Excerpt         string     `json:"excerpt"`
	CoverImage      *string    `json:"coverImage"`
	Tags            []string   `json:"tags"`
	TagSlugs        []string   `json:"tagSlugs"`
	Author          Author     `json:"author"`
	Status          Status     `json:"status"`
	PublishedAt     *time.Time `json:"publishedAt"`
	ScheduledFor    *time.Time `json:"scheduledFor"`
	ReadTimeMinutes int        `json:"readTimeMinutes"`
	Stats           Stats      `json:"stats"`
	SEO             SEO        `json:"seo"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// IsPublished reports whether the post is visible to readers.
func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}

// Freshness is the timestamp reader-facing lists sort by:
// publishedAt, then updatedAt, then createdAt.
func (p *Post) Freshness() time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	if !p.UpdatedAt.IsZero() {
		return p.UpdatedAt
	}
	return p.CreatedAt
}

// Clone returns a deep copy so callers can mutate it freely.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	c.CoverImage = cloneString(p.CoverImage)
	c.Tags = append([]string(nil), p.Tags...)
	c.TagSlugs = append([]string(nil), p.TagSlugs...)
	c.Author.Avatar = cloneString(p.Author.Avatar)
	c.Author.Bio = cloneString(p.Author.Bio)
	c.PublishedAt = cloneTime(p.PublishedAt)
	c.ScheduledFor = cloneTime(p.ScheduledFor)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// AuthorInput is the loose author shape accepted from callers: a bare name,
// a partial object, or nothing at all.
type AuthorInput struct {
	Name   string  `json:"name"`
	Handle string  `json:"handle"`
	Avatar *string `json:"avatar"`
	Bio    *string `json:"bio"`
}

// UnmarshalJSON accepts either a JSON string (the author name) or an object.
func (a *AuthorInput) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*a = AuthorInput{Name: name}
		return nil
	}
	type plain AuthorInput
	var obj plain
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*a = AuthorInput(obj)
	return nil
}

// TagList decodes tags from a JSON array or a comma-separated string.
// Non-string array entries are dropped.
type TagList []string

func (t *TagList) UnmarshalJSON(b []byte) error {
	var csv string
	if err := json.Unmarshal(b, &csv); err == nil {
		*t = strings.Split(csv, ",")
		return nil
	}
	var raw []any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	*t = out
	return nil
}

// Input is the payload for creating a post.
type Input struct {
	Title        string       `json:"title"`
	Subtitle     string       `json:"subtitle"`
	Content      string       `json:"content"`
	Slug         string       `json:"slug"`
	CoverImage   *string      `json:"coverImage"`
	Tags         TagList      `json:"tags"`
	Author       *AuthorInput `json:"author"`
	Status       string       `json:"status"`
	PublishedAt  *time.Time   `json:"publishedAt"`
	ScheduledFor *time.Time   `json:"scheduledFor"`
	SEO          *SEO         `json:"seo"`

	// Stats is only honoured for seeded sample posts.
	Stats Stats `json:"-"`
}

// Validate checks the fields required to create a post.
func (in Input) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if strings.TrimSpace(in.Content) == "" {
		return &ValidationError{Field: "content", Message: "content is required"}
	}
	if strings.TrimSpace(in.Status) != "" && !ValidStatus(in.Status) {
		return invalidStatus(in.Status)
	}
	if ParseStatus(in.Status) == StatusScheduled && in.ScheduledFor == nil {
		return errScheduleWithoutTime()
	}
	return nil
}

func invalidStatus(s string) error {
	return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", s)}
}

func errScheduleWithoutTime() error {
	return &ValidationError{Field: "scheduledFor", Message: "scheduledFor is required to schedule a post"}
}
