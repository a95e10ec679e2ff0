package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"brewlog/internal/achievement"
	"brewlog/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeQueue struct {
	mu      sync.Mutex
	jobs    []*Job
	done    []uint64
	failed  map[uint64]string
	retried map[uint64]time.Time
}

func newFakeQueue(jobs ...*Job) *fakeQueue {
	return &fakeQueue{jobs: jobs, failed: map[uint64]string{}, retried: map[uint64]time.Time{}}
}

func (q *fakeQueue) Claim(context.Context, string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, nil
	}
	j := q.jobs[0]
	q.jobs = q.jobs[1:]
	return j, nil
}

func (q *fakeQueue) MarkDone(_ context.Context, id uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.done = append(q.done, id)
	return nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, id uint64, msg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[id] = msg
	return nil
}

func (q *fakeQueue) RetryLater(_ context.Context, id uint64, _ int, runAt time.Time, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retried[id] = runAt
	return nil
}

type fakeUnlocks map[string]time.Time

func (f fakeUnlocks) UnlockedAt(_ context.Context, _ uint64, id string) (time.Time, error) {
	at, ok := f[id]
	if !ok {
		return time.Time{}, ErrGone
	}
	return at, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.UnlockEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev notify.UnlockEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

var unlockedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func notifyJob(id uint64, achievementID string, attempts int) *Job {
	b, _ := json.Marshal(achievementPayload{AchievementID: achievementID})
	return &Job{ID: id, UserID: 9, Type: TypeAchievementNotify, Payload: b, Attempts: attempts, MaxAttempts: 8}
}

func newWorker(t *testing.T, q Queue, pub notify.Publisher) *Worker {
	t.Helper()
	cat, err := achievement.Default()
	require.NoError(t, err)
	return &Worker{
		ID:        "test",
		Queue:     q,
		Unlocks:   fakeUnlocks{"first_record": unlockedAt},
		Publisher: pub,
		Catalog:   cat,
		Log:       zap.NewNop(),
		Interval:  time.Millisecond,
		Now:       func() time.Time { return unlockedAt },
	}
}

func TestWorkerPublishesUnlock(t *testing.T) {
	q := newFakeQueue(notifyJob(1, "first_record", 0))
	pub := &recordingPublisher{}
	w := newWorker(t, q, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.done) == 1
	}, time.Second, time.Millisecond)
	cancel()
	<-done

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, notify.EventID(9, "first_record"), ev.ID)
	assert.Equal(t, uint64(9), ev.UserID)
	assert.Equal(t, unlockedAt, ev.UnlockedAt)
	assert.NotEmpty(t, ev.Name)
	assert.NotEmpty(t, ev.Rarity)
}

func TestWorkerDropsGoneUnlock(t *testing.T) {
	q := newFakeQueue()
	pub := &recordingPublisher{}
	w := newWorker(t, q, pub)

	w.handle(context.Background(), notifyJob(2, "records_10", 0))
	assert.Equal(t, []uint64{2}, q.done)
	assert.Empty(t, pub.events)
}

func TestWorkerRetriesPublishFailure(t *testing.T) {
	q := newFakeQueue()
	w := newWorker(t, q, &recordingPublisher{err: errors.New("broker down")})

	w.handle(context.Background(), notifyJob(3, "first_record", 2))
	require.Contains(t, q.retried, uint64(3))
	assert.Equal(t, unlockedAt.Add(8*time.Second), q.retried[3])
	assert.Empty(t, q.done)

	w.handle(context.Background(), notifyJob(4, "first_record", 7))
	assert.Equal(t, "broker down", q.failed[4])
}

func TestWorkerFailsBadJobs(t *testing.T) {
	q := newFakeQueue()
	w := newWorker(t, q, &recordingPublisher{})

	w.handle(context.Background(), &Job{ID: 5, Type: "REMINDER_DISPATCH"})
	w.handle(context.Background(), &Job{ID: 6, Type: TypeAchievementNotify, Payload: []byte(`{}`)})
	assert.Equal(t, "unknown job type", q.failed[5])
	assert.Equal(t, "bad payload", q.failed[6])
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, Backoff(1))
	assert.Equal(t, 64*time.Second, Backoff(6))
	assert.Equal(t, 10*time.Minute, Backoff(20))
}
