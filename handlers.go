package storyline

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"

	"github.com/eringen/storyline/blog"
	"github.com/eringen/storyline/comment"
	"github.com/eringen/storyline/markdown"
	"github.com/eringen/storyline/post"
	"github.com/eringen/storyline/settings"
)

const relatedLimit = 3

func (a *App) setupRoutes() {
	e := a.Echo
	w := a.writeGuard()

	e.GET("/healthz", a.handleHealth)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: a.Registry}))
	e.GET("/feed.xml", a.handleRSS)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.Static("/uploads", a.Config.UploadsDir)

	api := e.Group("/api")
	api.GET("/posts", a.handleListPosts)
	api.POST("/posts", a.handleCreatePost, w...)
	api.GET("/posts/:id", a.handleGetPost)
	api.PATCH("/posts/:id", a.handleUpdatePost, w...)
	api.DELETE("/posts/:id", a.handleDeletePost, w...)
	api.POST("/posts/:id/publish", a.handlePublish, w...)
	api.POST("/posts/:id/clap", a.handleClap, w...)
	api.POST("/posts/:id/bookmark", a.handleBookmark, w...)
	api.GET("/posts/:id/comments", a.handleListComments)
	api.POST("/posts/:id/comments", a.handleAddComment, w...)
	api.PATCH("/posts/:id/comments/:commentId", a.handleUpdateComment, w...)
	api.GET("/tags", a.handleTags)
	api.GET("/search", a.handleSearch)
	api.GET("/feed/home", a.handleHome)
	api.GET("/settings", a.handleGetSettings)
	api.PUT("/settings", a.handleSaveSettings, w...)
	api.POST("/uploads/cover", a.handleCoverUpload, w...)
}

func (a *App) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := a.db.PingContext(ctx); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
	}
	return Render(c, map[string]string{"status": "ok", "version": Version})
}

type listMeta struct {
	Count int `json:"count"`
}

func (a *App) handleListPosts(c echo.Context) error {
	f := blog.ListFilter{
		Status: c.QueryParam("status"),
		Tag:    c.QueryParam("tag"),
		Author: c.QueryParam("author"),
		Query:  c.QueryParam("q"),
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return &post.ValidationError{Field: "limit", Message: "limit must be a non-negative integer"}
		}
		f.Limit = n
	}
	posts, err := a.Blog.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return RenderStatus(c, http.StatusOK, posts, listMeta{Count: len(posts)})
}

// postView is a single post with its rendered body.
type postView struct {
	*post.Post
	ContentHTML string `json:"contentHtml"`
}

type postMeta struct {
	Related []*post.Post `json:"related"`
	JSONLD  string       `json:"jsonLd"`
}

func (a *App) handleGetPost(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := a.Blog.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	related, err := a.Blog.Related(ctx, p, relatedLimit)
	if err != nil {
		return err
	}
	body, err := markdown.RenderString(ctx, markdown.Component(p.Content))
	if err != nil {
		return err
	}
	return RenderStatus(c, http.StatusOK,
		postView{Post: p, ContentHTML: body},
		postMeta{Related: related, JSONLD: PostJSONLD(p, a.Config)},
	)
}

func (a *App) handleCreatePost(c echo.Context) error {
	var in post.Input
	if err := c.Bind(&in); err != nil {
		return err
	}
	p, err := a.Blog.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return RenderStatus(c, http.StatusCreated, p, nil)
}

func (a *App) handleUpdatePost(c echo.Context) error {
	var patch post.Patch
	if err := c.Bind(&patch); err != nil {
		return err
	}
	p, err := a.Blog.Update(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	return Render(c, p)
}

func (a *App) handleDeletePost(c echo.Context) error {
	if err := a.Blog.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handlePublish(c echo.Context) error {
	var req blog.PublishRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	p, err := a.Blog.Publish(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	return Render(c, p)
}

type clapRequest struct {
	Amount int `json:"amount"`
}

func (a *App) handleClap(c echo.Context) error {
	var req clapRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	p, err := a.Blog.Clap(c.Request().Context(), c.Param("id"), req.Amount)
	if err != nil {
		return err
	}
	return Render(c, p)
}

func (a *App) handleBookmark(c echo.Context) error {
	p, err := a.Blog.Bookmark(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return Render(c, p)
}

func (a *App) handleListComments(c echo.Context) error {
	comments, err := a.Blog.Comments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return RenderStatus(c, http.StatusOK, comments, listMeta{Count: len(comments)})
}

func (a *App) handleAddComment(c echo.Context) error {
	var in comment.Input
	if err := c.Bind(&in); err != nil {
		return err
	}
	cm, err := a.Blog.AddComment(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return err
	}
	return RenderStatus(c, http.StatusCreated, cm, nil)
}

func (a *App) handleUpdateComment(c echo.Context) error {
	var patch comment.Patch
	if err := c.Bind(&patch); err != nil {
		return err
	}
	cm, err := a.Blog.UpdateComment(c.Request().Context(), c.Param("id"), c.Param("commentId"), patch)
	if err != nil {
		return err
	}
	return Render(c, cm)
}

func (a *App) handleTags(c echo.Context) error {
	tags, err := a.Blog.Tags(c.Request().Context())
	if err != nil {
		return err
	}
	return RenderStatus(c, http.StatusOK, tags, listMeta{Count: len(tags)})
}

type searchMeta struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

func (a *App) handleSearch(c echo.Context) error {
	q := c.QueryParam("q")
	posts, err := a.Blog.Search(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return RenderStatus(c, http.StatusOK, posts, searchMeta{Query: q, Count: len(posts)})
}

func (a *App) handleHome(c echo.Context) error {
	home, err := a.Blog.Home(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, home)
}

func (a *App) handleGetSettings(c echo.Context) error {
	s, err := a.Settings.Get()
	if err != nil {
		return err
	}
	return Render(c, s)
}

func (a *App) handleSaveSettings(c echo.Context) error {
	var next settings.Settings
	if err := c.Bind(&next); err != nil {
		return err
	}
	saved, err := a.Settings.Save(next)
	if err != nil {
		return err
	}
	return Render(c, saved)
}
