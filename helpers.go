package storyline

import (
	"encoding/json"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/eringen/storyline/post"
)

// BuildURL joins a base URL with path segments.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join("/", u.Path, path.Join(pathSegments...))
	return u.String()
}

// PostURL is the public address of p under base.
func PostURL(base string, p *post.Post) string {
	return BuildURL(base, "posts", p.Slug)
}

// PostJSONLD returns a schema.org BlogPosting for p.
func PostJSONLD(p *post.Post, cfg SiteConfig) string {
	postURL := PostURL(cfg.URL, p)
	data := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      p.Title,
		"description":   p.Excerpt,
		"url":           postURL,
		"dateModified":  p.UpdatedAt.Format(time.RFC3339),
		"timeRequired":  "PT" + strconv.Itoa(p.ReadTimeMinutes) + "M",
		"author":        map[string]string{"@type": "Person", "name": p.Author.Name},
		"publisher":     map[string]string{"@type": "Organization", "name": cfg.Name},
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if p.PublishedAt != nil {
		data["datePublished"] = p.PublishedAt.Format(time.RFC3339)
	}
	if p.CoverImage != nil {
		data["image"] = *p.CoverImage
	}
	if len(p.Tags) > 0 {
		data["keywords"] = p.Tags
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
