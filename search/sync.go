package search

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/eringen/storyline/metrics"
	"github.com/eringen/storyline/post"
)

// Source is the post store as seen by Sync.
type Source interface {
	ListAll() ([]*post.Post, error)
	Get(id string) (*post.Post, error)
}

// Sync mirrors published posts into an Index. Index failures on the write
// path are logged and counted but never returned: the post mutation that
// triggered them has already succeeded.
type Sync struct {
	index   Index
	src     Source
	log     *zap.Logger
	metrics metrics.MetricsCollector
}

// NewSync creates a Sync. index may be nil, in which case every query takes
// the in-memory path.
func NewSync(index Index, src Source, log *zap.Logger, m metrics.MetricsCollector) *Sync {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Sync{index: index, src: src, log: log, metrics: m}
}

// Enabled reports whether an index backend is configured.
func (s *Sync) Enabled() bool {
	return s.index != nil
}

// Upsert drops any existing entry for p and re-adds it if p is published.
func (s *Sync) Upsert(ctx context.Context, p *post.Post) {
	if s.index == nil || p == nil {
		return
	}
	if err := s.index.Remove(ctx, p.ID, PostsCollection); err != nil {
		s.failed("remove", p.ID, err)
	}
	if !p.IsPublished() {
		return
	}
	if err := s.index.Add(ctx, p.ID, NewDocument(p), PostsCollection); err != nil {
		s.failed("add", p.ID, err)
	}
}

// Delete removes id from the index.
func (s *Sync) Delete(ctx context.Context, id string) {
	if s.index == nil {
		return
	}
	if err := s.index.Remove(ctx, id, PostsCollection); err != nil {
		s.failed("remove", id, err)
	}
}

func (s *Sync) failed(op, id string, err error) {
	s.metrics.RecordIndexFailure(op)
	s.log.Warn("search index sync failed",
		zap.String("op", op),
		zap.String("id", id),
		zap.Error(err),
	)
}

// Search returns published posts matching query. The index is tried first;
// if it is absent or returns an error the posts are scanned in memory.
func (s *Sync) Search(ctx context.Context, query string) ([]*post.Post, error) {
	if s.index != nil {
		hits, err := s.index.Search(ctx, query, PostsCollection)
		if err == nil {
			return s.resolve(hits)
		}
		s.metrics.RecordIndexFailure("search")
		s.log.Warn("search index query failed, scanning posts", zap.String("query", query), zap.Error(err))
	}
	return s.scan(query)
}

// resolve loads the current record for every hit. The index snapshot can lag
// behind the store when a sync write failed, so status and stats always come
// from src.
func (s *Sync) resolve(hits []Hit) ([]*post.Post, error) {
	out := make([]*post.Post, 0, len(hits))
	for _, h := range hits {
		p, err := s.src.Get(h.ID)
		if errors.Is(err, post.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if p.IsPublished() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Sync) scan(query string) ([]*post.Post, error) {
	posts, err := s.src.ListAll()
	if err != nil {
		return nil, err
	}
	var out []*post.Post
	for _, p := range posts {
		if p.IsPublished() && Matches(p, query, false) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Freshness().After(out[j].Freshness())
	})
	return out, nil
}

// Reindex rebuilds the index from every post in the store and returns how
// many published posts were added.
func (s *Sync) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	posts, err := s.src.ListAll()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range posts {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := s.index.Remove(ctx, p.ID, PostsCollection); err != nil {
			return n, err
		}
		if !p.IsPublished() {
			continue
		}
		if err := s.index.Add(ctx, p.ID, NewDocument(p), PostsCollection); err != nil {
			return n, err
		}
		n++
	}
	s.log.Info("search index rebuilt", zap.Int("documents", n))
	return n, nil
}
