package post

import (
	"strings"
	"time"
)

// Patch is a partial update. Nil fields are left as they are; an empty
// CoverImage clears the cover.
type Patch struct {
	Title        *string      `json:"title"`
	Subtitle     *string      `json:"subtitle"`
	Content      *string      `json:"content"`
	Slug         *string      `json:"slug"`
	CoverImage   *string      `json:"coverImage"`
	Tags         *TagList     `json:"tags"`
	Author       *AuthorInput `json:"author"`
	Status       *string      `json:"status"`
	PublishedAt  *time.Time   `json:"publishedAt"`
	ScheduledFor *time.Time   `json:"scheduledFor"`
	SEO          *SEO         `json:"seo"`
}

// Validate rejects blanking a required field.
func (pt Patch) Validate() error {
	if pt.Title != nil && strings.TrimSpace(*pt.Title) == "" {
		return &ValidationError{Field: "title", Message: "title cannot be empty"}
	}
	if pt.Content != nil && strings.TrimSpace(*pt.Content) == "" {
		return &ValidationError{Field: "content", Message: "content cannot be empty"}
	}
	if pt.Slug != nil && strings.TrimSpace(*pt.Slug) != "" && ToSlug(*pt.Slug) == "" {
		return &ValidationError{Field: "slug", Message: "slug has no usable characters"}
	}
	if pt.Status != nil && !ValidStatus(*pt.Status) {
		return invalidStatus(*pt.Status)
	}
	return nil
}

// Empty reports whether the patch sets nothing.
func (pt Patch) Empty() bool {
	return pt == Patch{}
}

// Apply is a Mutator. SEO fields still equal to the defaults derived from
// the old title, excerpt or slug are cleared so they follow the new values.
func (pt Patch) Apply(p *Post) (bool, error) {
	if pt.Empty() {
		return false, nil
	}
	oldTitle, oldExcerpt, oldSlug := p.Title, p.Excerpt, p.Slug

	if pt.Title != nil {
		p.Title = *pt.Title
	}
	if pt.Subtitle != nil {
		p.Subtitle = *pt.Subtitle
	}
	if pt.Content != nil {
		p.Content = *pt.Content
		p.Excerpt = BuildExcerpt(p.Content, ExcerptLength)
	}
	if pt.Slug != nil && strings.TrimSpace(*pt.Slug) != "" {
		p.Slug = ToSlug(*pt.Slug)
	}
	if pt.CoverImage != nil {
		p.CoverImage = nonEmpty(pt.CoverImage)
	}
	if pt.Tags != nil {
		p.Tags = []string(*pt.Tags)
	}
	if pt.Author != nil {
		p.Author = NormalizeAuthor(pt.Author)
	}
	if pt.Status != nil {
		p.Status = ParseStatus(*pt.Status)
	}
	if pt.PublishedAt != nil {
		p.PublishedAt = cloneTime(pt.PublishedAt)
	}
	if pt.ScheduledFor != nil {
		p.ScheduledFor = cloneTime(pt.ScheduledFor)
	}
	if p.Status == StatusScheduled && p.ScheduledFor == nil {
		return false, errScheduleWithoutTime()
	}

	if pt.SEO != nil {
		p.SEO = *pt.SEO
	} else {
		if p.SEO.Title == oldTitle {
			p.SEO.Title = ""
		}
		if p.SEO.Description == oldExcerpt {
			p.SEO.Description = ""
		}
		if p.SEO.CanonicalURL == canonicalPath(oldSlug) {
			p.SEO.CanonicalURL = ""
		}
	}
	return true, nil
}
