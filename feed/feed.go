// Package feed builds the home page read model from the full post set and
// keeps it in a short-lived cache.
package feed

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/eringen/storyline/cache"
	"github.com/eringen/storyline/metrics"
	"github.com/eringen/storyline/post"
)

const (
	// CacheKey is the single key the home feed is cached under.
	CacheKey = "feed:home"
	// DefaultTTL is how long a built feed is served before rebuilding.
	DefaultTTL = 60 * time.Second

	latestLimit   = 6
	trendingLimit = 5
	tagLimit      = 10
	draftLimit    = 6
)

// TagCount is a tag with the number of published posts carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
	Slug  string `json:"slug"`
}

// Counts summarizes the whole collection.
type Counts struct {
	Published int `json:"published"`
	Drafts    int `json:"drafts"`
	Total     int `json:"total"`
}

// Home is the landing page view.
type Home struct {
	Featured    *post.Post   `json:"featured"`
	Latest      []*post.Post `json:"latest"`
	Trending    []*post.Post `json:"trending"`
	Tags        []TagCount   `json:"tags"`
	Drafts      []*post.Post `json:"drafts"`
	Counts      Counts       `json:"counts"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// Source lists every post regardless of status.
type Source interface {
	ListAll() ([]*post.Post, error)
}

// Aggregator serves Home through a read-through cache. A nil cache means
// every call rebuilds.
type Aggregator struct {
	src     Source
	cache   cache.Cache
	ttl     time.Duration
	log     *zap.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCache sets the cache backend.
func WithCache(c cache.Cache) Option {
	return func(a *Aggregator) { a.cache = c }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(a *Aggregator) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

func WithMetrics(m metrics.MetricsCollector) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates an Aggregator over src.
func NewAggregator(src Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		src:     src,
		ttl:     DefaultTTL,
		log:     zap.NewNop(),
		metrics: metrics.Nop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Home returns the cached feed when it is still fresh and rebuilds it
// otherwise. Cache failures are logged and treated as a miss.
func (a *Aggregator) Home(ctx context.Context) (*Home, error) {
	if h, ok := a.cached(ctx); ok {
		a.metrics.RecordFeedCache(true)
		return h, nil
	}
	a.metrics.RecordFeedCache(false)

	start := time.Now()
	posts, err := a.src.ListAll()
	if err != nil {
		return nil, err
	}
	h := Build(posts, a.now())
	a.metrics.RecordFeedBuild(time.Since(start))

	if a.cache != nil {
		if data, err := json.Marshal(h); err != nil {
			a.log.Warn("feed encode failed", zap.Error(err))
		} else if err := a.cache.Put(ctx, CacheKey, data, a.ttl); err != nil {
			a.log.Warn("feed cache put failed", zap.Error(err))
		}
	}
	return h, nil
}

func (a *Aggregator) cached(ctx context.Context) (*Home, bool) {
	if a.cache == nil {
		return nil, false
	}
	e, ok, err := a.cache.Get(ctx, CacheKey)
	if err != nil {
		a.log.Warn("feed cache get failed", zap.Error(err))
		return nil, false
	}
	if !ok || e.Expired(a.now()) {
		return nil, false
	}
	var h Home
	if err := json.Unmarshal(e.Value, &h); err != nil {
		a.log.Warn("feed cache entry unreadable", zap.Error(err))
		return nil, false
	}
	return &h, true
}

// Invalidate drops the cached feed so the next Home rebuilds it.
func (a *Aggregator) Invalidate(ctx context.Context) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Delete(ctx, CacheKey); err != nil {
		a.log.Warn("feed cache invalidate failed", zap.Error(err))
	}
}

// Build computes the feed from posts. It does not modify posts.
func Build(posts []*post.Post, now time.Time) *Home {
	var published, drafts []*post.Post
	for _, p := range posts {
		if p.IsPublished() {
			published = append(published, p)
		} else {
			drafts = append(drafts, p)
		}
	}

	latest := SortLatest(published)
	trending := SortTrending(published)
	SortDrafts(drafts)

	h := &Home{
		Latest:   head(latest, latestLimit),
		Trending: head(trending, trendingLimit),
		Tags:     head(CountTags(published), tagLimit),
		Drafts:   head(drafts, draftLimit),
		Counts: Counts{
			Published: len(published),
			Drafts:    len(drafts),
			Total:     len(posts),
		},
		GeneratedAt: now.UTC(),
	}
	if len(trending) > 0 {
		h.Featured = trending[0]
	}
	return h
}

// TrendingScore weighs engagement: claps*3 + bookmarks*2 + views.
func TrendingScore(p *post.Post) int {
	return p.Stats.Claps*3 + p.Stats.Bookmarks*2 + p.Stats.Views
}

// SortLatest returns a copy of posts ordered by freshness, newest first.
func SortLatest(posts []*post.Post) []*post.Post {
	out := append([]*post.Post(nil), posts...)
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i], out[j])
	})
	return out
}

// SortTrending returns a copy of posts ordered by TrendingScore, ties broken
// by freshness.
func SortTrending(posts []*post.Post) []*post.Post {
	out := append([]*post.Post(nil), posts...)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := TrendingScore(out[i]), TrendingScore(out[j])
		if si != sj {
			return si > sj
		}
		return newer(out[i], out[j])
	})
	return out
}

// SortDrafts orders posts in place by last update, newest first, then id.
func SortDrafts(posts []*post.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
}

// CountTags tallies tags across posts, most used first, then by name.
func CountTags(posts []*post.Post) []TagCount {
	counts := make(map[string]int)
	for _, p := range posts {
		for _, t := range p.Tags {
			counts[t]++
		}
	}
	out := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, TagCount{Tag: tag, Count: n, Slug: post.TagSlug(tag)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

func newer(a, b *post.Post) bool {
	fa, fb := a.Freshness(), b.Freshness()
	if !fa.Equal(fb) {
		return fa.After(fb)
	}
	return a.ID < b.ID
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	if s == nil {
		return []T{}
	}
	return s
}
