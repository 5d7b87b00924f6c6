package blog

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultScheduleInterval is how often scheduled posts are checked.
const DefaultScheduleInterval = time.Minute

// Publisher publishes scheduled posts that are due.
type Publisher interface {
	PublishDue(ctx context.Context, now time.Time) ([]string, error)
}

// Scheduler periodically publishes scheduled posts whose time has come.
type Scheduler struct {
	publisher Publisher
	log       *zap.Logger
	now       func() time.Time
}

// NewScheduler creates a Scheduler. A nil logger discards output.
func NewScheduler(p Publisher, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{publisher: p, log: log, now: time.Now}
}

// Start runs one cycle immediately and then one per interval until ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultScheduleInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("publish scheduler started", zap.Duration("interval", interval))

	if err := s.RunOnce(ctx); err != nil {
		s.log.Error("publish cycle failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("publish scheduler stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.log.Error("publish cycle failed", zap.Error(err))
			}
		}
	}
}

// RunOnce publishes every due post.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ids, err := s.publisher.PublishDue(ctx, s.now())
	if len(ids) > 0 {
		s.log.Info("published scheduled posts", zap.Strings("ids", ids))
	}
	return err
}
