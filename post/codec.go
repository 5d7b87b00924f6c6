package post

import (
	"strconv"
	"strings"
	"time"
)

const (
	storyMarker = "Story:"

	publishedLayout = "2006/01/02"
	scheduleLayout  = "2006/01/02 15:04"
	isoLayout       = "2006-01-02T15:04:05.000Z07:00"
)

// Header labels, in the order they are written. Other tools read these files
// directly, so the labels must not change.
const (
	hdrTitle     = "Title"
	hdrSubtitle  = "Subtitle"
	hdrAuthor    = "Author"
	hdrTags      = "Tags"
	hdrCover     = "Cover Image URL"
	hdrSlug      = "Slug"
	hdrStatus    = "Status"
	hdrPublished = "Published"
	hdrSchedule  = "Schedule"
	hdrCreated   = "Created"
	hdrUpdated   = "Updated"
	hdrClaps     = "Claps"
	hdrBookmarks = "Bookmarks"
	hdrViews     = "Views"
	hdrComments  = "Comments"

	// Extension headers, only written when they add information.
	hdrAuthorHandle = "Author Handle"
	hdrAuthorAvatar = "Author Avatar"
	hdrAuthorBio    = "Author Bio"
	hdrSEOTitle     = "SEO Title"
	hdrSEODesc      = "SEO Description"
	hdrCanonical    = "Canonical URL"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006/01/02 15:04",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006-01-02",
}

// FileMeta is what the filesystem knows about a post file. Zero times mean
// the value is unavailable.
type FileMeta struct {
	ModTime   time.Time
	BirthTime time.Time
}

// Hint carries the context a file was read in: its id (filename stem), the
// status implied by the directory it lives in, its metadata, and the time to
// use as a last-resort fallback.
type Hint struct {
	ID   string
	Dir  Status
	Meta FileMeta
	Now  time.Time
}

// Marshal renders p in the on-disk document format.
func Marshal(p *Post) []byte {
	var b strings.Builder
	header := func(label, value string) {
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(oneLine(value))
		b.WriteByte('\n')
	}

	header(hdrTitle, p.Title)
	header(hdrSubtitle, p.Subtitle)
	header(hdrAuthor, p.Author.Name)
	header(hdrTags, strings.Join(p.Tags, ", "))
	header(hdrCover, deref(p.CoverImage))
	header(hdrSlug, p.Slug)
	header(hdrStatus, string(p.Status))
	header(hdrPublished, formatTime(p.PublishedAt, publishedLayout))
	header(hdrSchedule, formatTime(p.ScheduledFor, scheduleLayout))
	header(hdrCreated, formatTime(&p.CreatedAt, isoLayout))
	header(hdrUpdated, formatTime(&p.UpdatedAt, isoLayout))
	header(hdrClaps, strconv.Itoa(p.Stats.Claps))
	header(hdrBookmarks, strconv.Itoa(p.Stats.Bookmarks))
	header(hdrViews, strconv.Itoa(p.Stats.Views))
	header(hdrComments, strconv.Itoa(p.Stats.Comments))

	if p.Author.Handle != "" && p.Author.Handle != ToSlug(p.Author.Name) {
		header(hdrAuthorHandle, p.Author.Handle)
	}
	if p.Author.Avatar != nil {
		header(hdrAuthorAvatar, *p.Author.Avatar)
	}
	if p.Author.Bio != nil {
		header(hdrAuthorBio, *p.Author.Bio)
	}
	if p.SEO.Title != "" && p.SEO.Title != p.Title {
		header(hdrSEOTitle, p.SEO.Title)
	}
	if p.SEO.Description != "" && p.SEO.Description != p.Excerpt {
		header(hdrSEODesc, p.SEO.Description)
	}
	if p.SEO.CanonicalURL != "" && p.SEO.CanonicalURL != canonicalPath(p.Slug) {
		header(hdrCanonical, p.SEO.CanonicalURL)
	}

	b.WriteString("\n")
	b.WriteString(storyMarker)
	b.WriteString("\n\n")
	body := normalizeNewlines(p.Content)
	b.WriteString(body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// Parse rebuilds a post from a document. Parsing never fails: unknown
// headers are ignored and unreadable values count as absent.
func Parse(data []byte, hint Hint) *Post {
	headers, body := splitDocument(normalizeNewlines(string(data)))

	p := &Post{
		ID:       hint.ID,
		Title:    headers["title"],
		Subtitle: headers["subtitle"],
		Content:  body,
		Slug:     headers["slug"],
		Tags:     NormalizeTags(strings.Split(headers["tags"], ",")),
		Author: NormalizeAuthor(&AuthorInput{
			Name:   headers["author"],
			Handle: headers["author handle"],
			Avatar: optional(headers["author avatar"]),
			Bio:    optional(headers["author bio"]),
		}),
		CoverImage: optional(headers["cover image url"]),
		Stats: Stats{
			Claps:     parseCount(headers["claps"]),
			Bookmarks: parseCount(headers["bookmarks"]),
			Views:     parseCount(headers["views"]),
			Comments:  parseCount(headers["comments"]),
		},
		SEO: SEO{
			Title:        headers["seo title"],
			Description:  headers["seo description"],
			CanonicalURL: headers["canonical url"],
		},
		PublishedAt:  parseDate(headers["published"]),
		ScheduledFor: parseDate(headers["schedule"]),
	}
	if p.Slug == "" {
		p.Slug = p.ID
	}

	if v := headers["status"]; v != "" {
		p.Status = ParseStatus(v)
	} else if hint.Dir == StatusPublished {
		p.Status = StatusPublished
	} else {
		p.Status = StatusDraft
	}

	now := hint.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	switch p.Status {
	case StatusPublished:
		if p.PublishedAt == nil {
			t := firstTime(hint.Meta.ModTime, now)
			p.PublishedAt = &t
		}
	case StatusDraft:
		p.PublishedAt = nil
	}

	if created := parseDate(headers["created"]); created != nil {
		p.CreatedAt = *created
	} else if p.PublishedAt != nil {
		p.CreatedAt = *p.PublishedAt
	} else {
		p.CreatedAt = firstTime(hint.Meta.BirthTime, now)
	}

	if updated := parseDate(headers["updated"]); updated != nil {
		p.UpdatedAt = *updated
	} else {
		p.UpdatedAt = firstTime(hint.Meta.ModTime, p.CreatedAt)
	}

	derive(p)
	return p
}

// splitDocument separates the header block from the story body.
func splitDocument(text string) (map[string]string, string) {
	lines := strings.Split(text, "\n")
	headerLines := lines
	body := ""
	for i, line := range lines {
		if strings.ToLower(strings.TrimSpace(line)) != "story:" {
			continue
		}
		headerLines = lines[:i]
		rest := lines[i+1:]
		if len(rest) > 0 && strings.TrimSpace(rest[0]) == "" {
			rest = rest[1:]
		}
		body = strings.TrimRight(strings.Join(rest, "\n"), "\n")
		break
	}

	headers := make(map[string]string, len(headerLines))
	for _, line := range headerLines {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers, body
}

// derive recomputes every field that is a pure function of the others.
func derive(p *Post) {
	p.Excerpt = BuildExcerpt(p.Content, ExcerptLength)
	p.ReadTimeMinutes = EstimateReadTime(p.Content)
	p.TagSlugs = make([]string, len(p.Tags))
	for i, t := range p.Tags {
		p.TagSlugs[i] = TagSlug(t)
	}
	if p.SEO.Title == "" {
		p.SEO.Title = p.Title
	}
	if p.SEO.Description == "" {
		p.SEO.Description = p.Excerpt
	}
	if p.SEO.CanonicalURL == "" {
		p.SEO.CanonicalURL = canonicalPath(p.Slug)
	}
}

func canonicalPath(slug string) string {
	return "/posts/" + slug
}

func parseDate(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func parseCount(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func formatTime(t *time.Time, layout string) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(layout)
}

func firstTime(ts ...time.Time) time.Time {
	for _, t := range ts {
		if !t.IsZero() {
			return t.UTC()
		}
	}
	return time.Time{}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
