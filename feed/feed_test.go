package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eringen/storyline/cache"
	"github.com/eringen/storyline/post"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func published(id string, day int, stats post.Stats, tags ...string) *post.Post {
	at := base.AddDate(0, 0, day)
	return &post.Post{
		ID:          id,
		Status:      post.StatusPublished,
		PublishedAt: &at,
		Stats:       stats,
		Tags:        tags,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func draft(id string, updated time.Time) *post.Post {
	return &post.Post{ID: id, Status: post.StatusDraft, CreatedAt: base, UpdatedAt: updated}
}

func ids(posts []*post.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestTrendingOrder(t *testing.T) {
	posts := []*post.Post{
		published("a", 1, post.Stats{Claps: 10}),
		published("b", 2, post.Stats{Bookmarks: 5}),
		published("c", 3, post.Stats{Views: 100}),
	}
	assert.Equal(t, 30, TrendingScore(posts[0]))
	assert.Equal(t, 10, TrendingScore(posts[1]))
	assert.Equal(t, 100, TrendingScore(posts[2]))

	h := Build(posts, base)
	assert.Equal(t, []string{"c", "a", "b"}, ids(h.Trending))
	require.NotNil(t, h.Featured)
	assert.Equal(t, "c", h.Featured.ID)
	assert.Equal(t, []string{"c", "b", "a"}, ids(h.Latest))
}

func TestTrendingTieBreaksByFreshness(t *testing.T) {
	posts := []*post.Post{
		published("old", 1, post.Stats{Claps: 1}),
		published("new", 5, post.Stats{Views: 3}),
	}
	assert.Equal(t, []string{"new", "old"}, ids(SortTrending(posts)))
}

func TestBuildLimitsAndCounts(t *testing.T) {
	var posts []*post.Post
	for i := range 8 {
		posts = append(posts, published(fmt.Sprintf("p%d", i), i, post.Stats{Views: i}))
	}
	for i := range 8 {
		posts = append(posts, draft(fmt.Sprintf("d%d", i), base.Add(time.Duration(i)*time.Hour)))
	}
	sched := draft("s", base.Add(100*time.Hour))
	sched.Status = post.StatusScheduled
	posts = append(posts, sched)

	h := Build(posts, base)
	assert.Len(t, h.Latest, 6)
	assert.Equal(t, "p7", h.Latest[0].ID)
	assert.Len(t, h.Trending, 5)
	assert.Len(t, h.Drafts, 6)
	assert.Equal(t, []string{"s", "d7", "d6", "d5", "d4", "d3"}, ids(h.Drafts))
	assert.Equal(t, Counts{Published: 8, Drafts: 9, Total: 17}, h.Counts)
}

func TestBuildTags(t *testing.T) {
	posts := []*post.Post{
		published("a", 1, post.Stats{}, "Go", "Web Dev"),
		published("b", 2, post.Stats{}, "Go"),
		published("c", 3, post.Stats{}, "Design", "Web Dev", "Go"),
		{ID: "d", Status: post.StatusDraft, Tags: []string{"Secret"}},
	}
	h := Build(posts, base)
	assert.Equal(t, []TagCount{
		{Tag: "Go", Count: 3, Slug: "go"},
		{Tag: "Web Dev", Count: 2, Slug: "web-dev"},
		{Tag: "Design", Count: 1, Slug: "design"},
	}, h.Tags, "draft tags are not counted")
}

func TestBuildEmpty(t *testing.T) {
	h := Build(nil, base)
	assert.Nil(t, h.Featured)
	assert.NotNil(t, h.Latest)
	assert.Empty(t, h.Trending)
	assert.Empty(t, h.Tags)
	assert.Equal(t, Counts{}, h.Counts)
}

type countingSource struct {
	mu    sync.Mutex
	posts []*post.Post
	calls int
	err   error
}

func (s *countingSource) ListAll() ([]*post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*post.Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = p.Clone()
	}
	return out, nil
}

func TestHomeIsCached(t *testing.T) {
	ctx := context.Background()
	now := base
	src := &countingSource{posts: []*post.Post{published("a", 1, post.Stats{Claps: 1})}}
	a := NewAggregator(src,
		WithCache(cache.NewMemory()),
		WithClock(func() time.Time { return now }),
		WithLogger(zaptest.NewLogger(t)),
	)

	_, err := a.Home(ctx)
	require.NoError(t, err)
	h, err := a.Home(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, "a", h.Featured.ID)

	src.posts[0].Stats.Claps = 7
	h, err = a.Home(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Featured.Stats.Claps, "stale until invalidated")

	a.Invalidate(ctx)
	h, err = a.Home(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 7, h.Featured.Stats.Claps)
}

func TestHomeExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := func() time.Time { return now }
	src := &countingSource{}
	// The cache runs on wall time; the aggregator checks expiry on its own clock.
	a := NewAggregator(src, WithCache(cache.NewMemory()), WithClock(clock), WithTTL(time.Hour))

	_, err := a.Home(ctx)
	require.NoError(t, err)
	_, err = a.Home(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	now = now.AddDate(1, 0, 0)
	_, err = a.Home(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestHomeWithoutCacheAlwaysRebuilds(t *testing.T) {
	src := &countingSource{}
	a := NewAggregator(src)

	for range 3 {
		_, err := a.Home(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, src.calls)
	a.Invalidate(context.Background())
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (cache.Entry, bool, error) {
	return cache.Entry{}, false, errors.New("connection refused")
}
func (brokenCache) Put(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (brokenCache) Delete(context.Context, string) error { return errors.New("connection refused") }

func TestHomeSurvivesBrokenCache(t *testing.T) {
	src := &countingSource{posts: []*post.Post{published("a", 1, post.Stats{})}}
	a := NewAggregator(src, WithCache(brokenCache{}), WithLogger(zaptest.NewLogger(t)))

	h, err := a.Home(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", h.Featured.ID)
	a.Invalidate(context.Background())
}

func TestHomePropagatesSourceError(t *testing.T) {
	src := &countingSource{err: errors.New("disk gone")}
	a := NewAggregator(src, WithCache(cache.NewMemory()))

	_, err := a.Home(context.Background())
	assert.EqualError(t, err, "disk gone")
}
