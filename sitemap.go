package storyline

import (
	"encoding/xml"

	"github.com/labstack/echo/v4"

	"github.com/eringen/storyline/feed"
	"github.com/eringen/storyline/post"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Blog.Published(c.Request().Context())
	if err != nil {
		return err
	}
	return writeXML(c, buildSitemap(a.Config.URL, posts, feed.CountTags(posts)))
}

// buildSitemap lists the home page, every published post and every tag page.
func buildSitemap(base string, posts []*post.Post, tags []feed.TagCount) sitemapURLSet {
	urls := make([]sitemapURL, 0, 1+len(posts)+len(tags))
	urls = append(urls, sitemapURL{Loc: BuildURL(base)})
	for _, p := range posts {
		urls = append(urls, sitemapURL{
			Loc:     PostURL(base, p),
			LastMod: p.UpdatedAt.UTC().Format("2006-01-02"),
		})
	}
	for _, t := range tags {
		urls = append(urls, sitemapURL{Loc: BuildURL(base, "tags", t.Slug)})
	}
	return sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
}
