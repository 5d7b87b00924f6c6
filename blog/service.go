// Package blog is the application core: it runs every reader and author
// operation against the post store and keeps the feed cache and search index
// in step with each write.
package blog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eringen/storyline/comment"
	"github.com/eringen/storyline/feed"
	"github.com/eringen/storyline/metrics"
	"github.com/eringen/storyline/post"
	"github.com/eringen/storyline/search"
)

const (
	// MinClaps and MaxClaps bound the amount of a single clap request.
	MinClaps = 1
	MaxClaps = 50

	// StatusAll lists posts in every status.
	StatusAll = "all"
)

// PostStore is the file-backed post store.
type PostStore interface {
	ListAll() ([]*post.Post, error)
	Get(id string) (*post.Post, error)
	Create(in post.Input) (*post.Post, error)
	UpdateWith(id string, fn post.Mutator) (*post.Post, error)
	Patch(id string, patch post.Patch) (*post.Post, error)
	Remove(id string) (bool, error)
	Repair() ([]string, error)
}

// CommentStore persists comments.
type CommentStore interface {
	Create(ctx context.Context, postID string, in comment.Input) (*comment.Comment, error)
	List(ctx context.Context, postID string) ([]comment.Comment, error)
	Update(ctx context.Context, postID, id string, patch comment.Patch) (*comment.Comment, error)
}

// Deps are the collaborators of a Service. Posts, Comments, Feed and Search
// are required.
type Deps struct {
	Posts    PostStore
	Comments CommentStore
	Feed     *feed.Aggregator
	Search   *search.Sync
	Logger   *zap.Logger
	Metrics  metrics.MetricsCollector
	Clock    func() time.Time
}

// Service implements the blog operations.
type Service struct {
	posts    PostStore
	comments CommentStore
	feed     *feed.Aggregator
	search   *search.Sync
	log      *zap.Logger
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// New creates a Service from d.
func New(d Deps) *Service {
	s := &Service{
		posts:    d.Posts,
		comments: d.Comments,
		feed:     d.Feed,
		search:   d.Search,
		log:      d.Logger,
		metrics:  d.Metrics,
		now:      d.Clock,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ListFilter narrows List. Status defaults to published; StatusAll returns
// every post.
type ListFilter struct {
	Status string
	Tag    string
	Author string
	Query  string
	Limit  int
}

// List returns posts matching f. Published posts come freshest first,
// drafts most recently updated first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*post.Post, error) {
	all, err := s.posts.ListAll()
	if err != nil {
		return nil, err
	}

	status := strings.ToLower(strings.TrimSpace(f.Status))
	if status == "" {
		status = string(post.StatusPublished)
	}
	tag := strings.ToLower(strings.TrimSpace(f.Tag))
	author := strings.ToLower(strings.TrimSpace(f.Author))

	var out []*post.Post
	for _, p := range all {
		if status != StatusAll && string(p.Status) != status {
			continue
		}
		if tag != "" && !hasTag(p, tag) {
			continue
		}
		if author != "" && strings.ToLower(p.Author.Handle) != author && strings.ToLower(p.Author.Name) != author {
			continue
		}
		if !search.Matches(p, f.Query, true) {
			continue
		}
		out = append(out, p)
	}

	if status == string(post.StatusPublished) || status == StatusAll {
		out = feed.SortLatest(out)
	} else {
		feed.SortDrafts(out)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	if out == nil {
		out = []*post.Post{}
	}
	return out, nil
}

func hasTag(p *post.Post, tag string) bool {
	for _, t := range p.Tags {
		if strings.ToLower(t) == tag || post.TagSlug(t) == tag {
			return true
		}
	}
	return false
}

// Lookup resolves key as an id, then as a slug, without side effects.
func (s *Service) Lookup(ctx context.Context, key string) (*post.Post, error) {
	p, err := s.posts.Get(key)
	if !errors.Is(err, post.ErrNotFound) {
		return p, err
	}
	all, err := s.posts.ListAll()
	if err != nil {
		return nil, err
	}
	slug := post.ToSlug(key)
	for _, p := range all {
		if p.Slug == key || (slug != "" && p.Slug == slug) {
			return p, nil
		}
	}
	return nil, post.ErrNotFound
}

// Get returns the post for key and counts a view. View counts do not
// invalidate the feed; its staleness is bounded by the cache TTL.
func (s *Service) Get(ctx context.Context, key string) (*post.Post, error) {
	p, err := s.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	viewed, err := s.posts.UpdateWith(p.ID, func(p *post.Post) (bool, error) {
		p.Stats.Views++
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return viewed, nil
}

// Create validates in and stores a new post.
func (s *Service) Create(ctx context.Context, in post.Input) (*post.Post, error) {
	p, err := s.posts.Create(in)
	if err != nil {
		return nil, err
	}
	s.written(ctx, p, "create")
	s.log.Info("post created", zap.String("id", p.ID), zap.String("status", string(p.Status)))
	return p, nil
}

// Update applies a partial update to the post for key.
func (s *Service) Update(ctx context.Context, key string, patch post.Patch) (*post.Post, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.ScheduledFor != nil && !patch.ScheduledFor.After(s.now()) &&
		(patch.Status == nil || post.ParseStatus(*patch.Status) == post.StatusScheduled) {
		return nil, &post.ValidationError{Field: "scheduledFor", Message: "scheduledFor must be in the future"}
	}
	cur, err := s.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	p, err := s.posts.Patch(cur.ID, patch)
	if err != nil {
		return nil, err
	}
	s.written(ctx, p, "update")
	return p, nil
}

// Delete removes the post for key.
func (s *Service) Delete(ctx context.Context, key string) error {
	cur, err := s.Lookup(ctx, key)
	if err != nil {
		return err
	}
	found, err := s.posts.Remove(cur.ID)
	if err != nil {
		return err
	}
	if !found {
		return post.ErrNotFound
	}
	s.search.Delete(ctx, cur.ID)
	s.feed.Invalidate(ctx)
	s.metrics.RecordPostWrite("delete")
	s.log.Info("post deleted", zap.String("id", cur.ID))
	return nil
}

// PublishRequest moves a post through its lifecycle. An empty Status means
// publish now.
type PublishRequest struct {
	Status       string     `json:"status"`
	ScheduledFor *time.Time `json:"scheduledFor"`
}

// Publish publishes, schedules or unpublishes the post for key. Scheduling
// needs a time in the future.
func (s *Service) Publish(ctx context.Context, key string, req PublishRequest) (*post.Post, error) {
	status := post.StatusPublished
	if strings.TrimSpace(req.Status) != "" {
		if !post.ValidStatus(req.Status) {
			return nil, &post.ValidationError{Field: "status", Message: "status must be published, scheduled or draft"}
		}
		status = post.ParseStatus(req.Status)
	}
	if status == post.StatusScheduled {
		if req.ScheduledFor == nil {
			return nil, &post.ValidationError{Field: "scheduledFor", Message: "scheduledFor is required to schedule a post"}
		}
		if !req.ScheduledFor.After(s.now()) {
			return nil, &post.ValidationError{Field: "scheduledFor", Message: "scheduledFor must be in the future"}
		}
	}

	cur, err := s.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	p, err := s.posts.UpdateWith(cur.ID, func(p *post.Post) (bool, error) {
		p.Status = status
		if status == post.StatusScheduled {
			when := req.ScheduledFor.UTC()
			p.ScheduledFor = &when
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.written(ctx, p, "publish")
	s.log.Info("post status changed", zap.String("id", p.ID), zap.String("status", string(p.Status)))
	return p, nil
}

// ClampClaps bounds a requested clap amount to [MinClaps, MaxClaps].
func ClampClaps(amount int) int {
	return min(max(amount, MinClaps), MaxClaps)
}

// Clap adds ClampClaps(amount) claps to the post for key. There is no
// per-reader ceiling.
func (s *Service) Clap(ctx context.Context, key string, amount int) (*post.Post, error) {
	n := ClampClaps(amount)
	p, err := s.bump(ctx, key, "clap", func(st *post.Stats) { st.Claps += n })
	if err != nil {
		return nil, err
	}
	s.metrics.RecordClaps(n)
	return p, nil
}

// Bookmark adds one bookmark to the post for key. Repeat calls accumulate.
func (s *Service) Bookmark(ctx context.Context, key string) (*post.Post, error) {
	return s.bump(ctx, key, "bookmark", func(st *post.Stats) { st.Bookmarks++ })
}

func (s *Service) bump(ctx context.Context, key, op string, fn func(*post.Stats)) (*post.Post, error) {
	cur, err := s.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	p, err := s.posts.UpdateWith(cur.ID, func(p *post.Post) (bool, error) {
		fn(&p.Stats)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.feed.Invalidate(ctx)
	s.metrics.RecordPostWrite(op)
	return p, nil
}

// Comments lists the comments on the post for key.
func (s *Service) Comments(ctx context.Context, key string) ([]comment.Comment, error) {
	p, err := s.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.comments.List(ctx, p.ID)
}

// AddComment stores a comment and counts it on the post.
func (s *Service) AddComment(ctx context.Context, key string, in comment.Input) (*comment.Comment, error) {
	p, err := s.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	c, err := s.comments.Create(ctx, p.ID, in)
	if err != nil {
		return nil, err
	}
	if _, err := s.posts.UpdateWith(p.ID, func(p *post.Post) (bool, error) {
		p.Stats.Comments++
		return true, nil
	}); err != nil {
		// The comment itself is stored; only the counter lags.
		s.log.Error("comment count update failed", zap.String("post", p.ID), zap.Error(err))
	}
	s.feed.Invalidate(ctx)
	s.metrics.RecordPostWrite("comment")
	return c, nil
}

// UpdateComment edits the body or status of a comment. The post's comment
// count is left alone.
func (s *Service) UpdateComment(ctx context.Context, key, commentID string, patch comment.Patch) (*comment.Comment, error) {
	p, err := s.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	c, err := s.comments.Update(ctx, p.ID, commentID, patch)
	if err != nil {
		return nil, err
	}
	s.feed.Invalidate(ctx)
	return c, nil
}

// Tags counts every tag across published posts, most used first.
func (s *Service) Tags(ctx context.Context) ([]feed.TagCount, error) {
	published, err := s.published()
	if err != nil {
		return nil, err
	}
	return feed.CountTags(published), nil
}

// Search runs a full-text query over published posts.
func (s *Service) Search(ctx context.Context, query string) ([]*post.Post, error) {
	if strings.TrimSpace(query) == "" {
		return []*post.Post{}, nil
	}
	return s.search.Search(ctx, query)
}

// Home returns the cached home feed.
func (s *Service) Home(ctx context.Context) (*feed.Home, error) {
	return s.feed.Home(ctx)
}

// Published returns every published post, freshest first.
func (s *Service) Published(ctx context.Context) ([]*post.Post, error) {
	published, err := s.published()
	if err != nil {
		return nil, err
	}
	return feed.SortLatest(published), nil
}

func (s *Service) published() ([]*post.Post, error) {
	all, err := s.posts.ListAll()
	if err != nil {
		return nil, err
	}
	var out []*post.Post
	for _, p := range all {
		if p.IsPublished() {
			out = append(out, p)
		}
	}
	return out, nil
}

// Related returns up to limit published posts sharing a tag with p, most
// shared tags first, then freshest.
func (s *Service) Related(ctx context.Context, p *post.Post, limit int) ([]*post.Post, error) {
	published, err := s.Published(ctx)
	if err != nil {
		return nil, err
	}
	return FilterRelatedPosts(p, published, limit), nil
}

// FilterRelatedPosts picks from candidates (already ordered) the posts that
// share at least one tag with p.
func FilterRelatedPosts(p *post.Post, candidates []*post.Post, limit int) []*post.Post {
	tags := make(map[string]struct{}, len(p.Tags))
	for _, t := range p.TagSlugs {
		tags[t] = struct{}{}
	}
	type scored struct {
		p      *post.Post
		shared int
	}
	var matches []scored
	for _, c := range candidates {
		if c.ID == p.ID {
			continue
		}
		n := 0
		for _, t := range c.TagSlugs {
			if _, ok := tags[t]; ok {
				n++
			}
		}
		if n > 0 {
			matches = append(matches, scored{c, n})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].shared > matches[j].shared
	})
	out := make([]*post.Post, 0, min(len(matches), limit))
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, m.p)
	}
	return out
}

// PublishDue publishes every scheduled post whose time has come and returns
// their ids. The post's publishedAt becomes its scheduled time.
func (s *Service) PublishDue(ctx context.Context, now time.Time) ([]string, error) {
	all, err := s.posts.ListAll()
	if err != nil {
		return nil, err
	}
	var done []string
	for _, p := range all {
		if p.Status != post.StatusScheduled || p.ScheduledFor == nil || p.ScheduledFor.After(now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return done, err
		}
		updated, err := s.posts.UpdateWith(p.ID, func(p *post.Post) (bool, error) {
			if p.Status != post.StatusScheduled || p.ScheduledFor == nil || p.ScheduledFor.After(now) {
				return false, nil
			}
			when := *p.ScheduledFor
			p.Status = post.StatusPublished
			p.PublishedAt = &when
			return true, nil
		})
		if err != nil {
			return done, err
		}
		if updated.Status != post.StatusPublished {
			continue
		}
		s.written(ctx, updated, "publish")
		done = append(done, updated.ID)
		s.log.Info("scheduled post published", zap.String("id", updated.ID))
	}
	return done, nil
}

// Reindex rebuilds the search index from the store.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	return s.search.Reindex(ctx)
}

// Repair resolves posts left in both directories by an interrupted move.
func (s *Service) Repair(ctx context.Context) ([]string, error) {
	fixed, err := s.posts.Repair()
	if err != nil {
		return fixed, err
	}
	if len(fixed) > 0 {
		s.feed.Invalidate(ctx)
		if _, err := s.search.Reindex(ctx); err != nil {
			s.log.Warn("reindex after repair failed", zap.Error(err))
		}
	}
	return fixed, nil
}

// written runs the follow-up every persisted post write needs.
func (s *Service) written(ctx context.Context, p *post.Post, op string) {
	s.search.Upsert(ctx, p)
	s.feed.Invalidate(ctx)
	s.metrics.RecordPostWrite(op)
}
