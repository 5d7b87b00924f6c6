package storyline

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/storyline/post"
)

const rssItemLimit = 50

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Author      string   `xml:"author,omitempty"`
	Categories  []string `xml:"category"`
	PubDate     string   `xml:"pubDate,omitempty"`
	GUID        string   `xml:"guid"`
}

func (a *App) handleRSS(c echo.Context) error {
	posts, err := a.Blog.Published(c.Request().Context())
	if err != nil {
		return err
	}
	title := a.Config.Name
	if s, err := a.Settings.Get(); err == nil && s.Title != "" {
		title = s.Title
	}
	return writeXML(c, buildRSS(title, a.Config.URL, a.Config.Description, posts))
}

// buildRSS renders the newest published posts as an RSS 2.0 channel.
// posts must already be ordered newest first.
func buildRSS(title, base, description string, posts []*post.Post) rssXML {
	if len(posts) > rssItemLimit {
		posts = posts[:rssItemLimit]
	}
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		link := PostURL(base, p)
		item := rssItem{
			Title:       p.Title,
			Link:        link,
			Description: p.Excerpt,
			Author:      p.Author.Name,
			Categories:  p.Tags,
			GUID:        link,
		}
		if p.PublishedAt != nil {
			item.PubDate = p.PublishedAt.UTC().Format(time.RFC1123Z)
		}
		items = append(items, item)
	}
	ch := rssChannel{
		Title:       title,
		Link:        BuildURL(base),
		Description: description,
		Items:       items,
	}
	if len(posts) > 0 {
		ch.LastBuildDate = posts[0].Freshness().UTC().Format(time.RFC1123Z)
	}
	return rssXML{Version: "2.0", Channel: ch}
}

func writeXML(c echo.Context, v any) error {
	contentType := "application/xml; charset=utf-8"
	if _, ok := v.(rssXML); ok {
		contentType = "application/rss+xml; charset=utf-8"
	}
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(v)
}
