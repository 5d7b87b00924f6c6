package blog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakePublisher struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (f *fakePublisher) PublishDue(_ context.Context, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return []string{"due"}, f.err
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSchedulerRunOnce(t *testing.T) {
	pub := &fakePublisher{}
	s := NewScheduler(pub, zaptest.NewLogger(t))
	s.now = func() time.Time { return testNow }

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []time.Time{testNow}, pub.calls)

	pub.err = errors.New("disk gone")
	assert.EqualError(t, s.RunOnce(context.Background()), "disk gone")
}

func TestSchedulerStartRunsImmediatelyAndStops(t *testing.T) {
	pub := &fakePublisher{}
	s := NewScheduler(pub, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return pub.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestSchedulerPublishesDuePosts(t *testing.T) {
	e := setupService(t, false)
	ctx := context.Background()
	p := e.create(t, "Timed", "draft")
	when := testNow.Add(time.Minute)
	_, err := e.svc.Publish(ctx, p.ID, PublishRequest{Status: "scheduled", ScheduledFor: &when})
	require.NoError(t, err)

	s := NewScheduler(e.svc, zaptest.NewLogger(t))
	s.now = func() time.Time { return testNow.Add(2 * time.Minute) }
	require.NoError(t, s.RunOnce(ctx))

	got, err := e.svc.Lookup(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPublished())
}
