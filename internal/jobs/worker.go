package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"brewlog/internal/achievement"
	"brewlog/internal/notify"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrGone means the subject of a job no longer exists; the job is dropped.
var ErrGone = errors.New("job subject gone")

// Queue is the job storage the worker drives. *Repo implements it.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*Job, error)
	MarkDone(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64, errMsg string) error
	RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error
}

// Unlocks looks up when an achievement was committed for a user.
type Unlocks interface {
	UnlockedAt(ctx context.Context, userID uint64, achievementID string) (time.Time, error)
}

type Worker struct {
	ID        string
	Queue     Queue
	Unlocks   Unlocks
	Publisher notify.Publisher
	Catalog   achievement.Catalog
	Log       *zap.Logger
	Interval  time.Duration
	Now       func() time.Time
}

func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := w.Queue.Claim(ctx, w.ID)
			if err != nil {
				if ctx.Err() == nil {
					w.Log.Warn("worker claim failed", zap.Error(err))
				}
				continue
			}
			if job == nil {
				continue
			}
			w.handle(ctx, job)
		}
	}
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	var err error
	switch job.Type {
	case TypeAchievementNotify:
		err = w.handleAchievementNotify(ctx, job)
	default:
		w.fail(ctx, job, "unknown job type")
		return
	}

	switch {
	case err == nil, errors.Is(err, ErrGone):
		w.done(ctx, job)
	case errors.Is(err, errBadPayload):
		w.fail(ctx, job, err.Error())
	default:
		w.Log.Warn("job failed", zap.Uint64("job_id", job.ID), zap.String("type", job.Type), zap.Error(err))
		w.retry(ctx, job, err.Error())
	}
}

var errBadPayload = errors.New("bad payload")

func (w *Worker) handleAchievementNotify(ctx context.Context, job *Job) error {
	var p achievementPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil || p.AchievementID == "" {
		return errBadPayload
	}

	at, err := w.Unlocks.UnlockedAt(ctx, job.UserID, p.AchievementID)
	if err != nil {
		return err
	}

	ev := notify.UnlockEvent{
		ID:            notify.EventID(job.UserID, p.AchievementID),
		UserID:        job.UserID,
		AchievementID: p.AchievementID,
		UnlockedAt:    at,
	}
	// a definition retired from the catalog is still announced, by id only
	if def, ok := w.Catalog.Find(p.AchievementID); ok {
		ev.Name = def.Name
		ev.Rarity = def.Rarity.String()
		ev.Points = def.Points
	}
	return w.Publisher.Publish(ctx, ev)
}

func (w *Worker) done(ctx context.Context, job *Job) {
	if err := w.Queue.MarkDone(ctx, job.ID); err != nil {
		w.Log.Warn("mark job done", zap.Uint64("job_id", job.ID), zap.Error(err))
	}
}

func (w *Worker) fail(ctx context.Context, job *Job, errMsg string) {
	if err := w.Queue.MarkFailed(ctx, job.ID, errMsg); err != nil {
		w.Log.Warn("mark job failed", zap.Uint64("job_id", job.ID), zap.Error(err))
	}
}

func (w *Worker) retry(ctx context.Context, job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		w.fail(ctx, job, errMsg)
		return
	}

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if err := w.Queue.RetryLater(ctx, job.ID, attempts, now().Add(Backoff(attempts)), errMsg); err != nil {
		w.Log.Warn("reschedule job", zap.Uint64("job_id", job.ID), zap.Error(err))
	}
}

// Backoff is 2^attempts seconds, capped at ten minutes.
func Backoff(attempts int) time.Duration {
	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	return time.Duration(sec) * time.Second
}

type unlockRow struct {
	UserID        uint64    `gorm:"column:user_id"`
	AchievementID string    `gorm:"column:achievement_id"`
	UnlockedAt    time.Time `gorm:"column:unlocked_at"`
}

func (unlockRow) TableName() string { return "user_achievements" }

// DBUnlocks reads committed unlocks from Postgres.
type DBUnlocks struct {
	DB *gorm.DB
}

func (u DBUnlocks) UnlockedAt(ctx context.Context, userID uint64, achievementID string) (time.Time, error) {
	var row unlockRow
	err := u.DB.WithContext(ctx).
		Where("user_id=? AND achievement_id=?", userID, achievementID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, ErrGone
	}
	if err != nil {
		return time.Time{}, err
	}
	return row.UnlockedAt, nil
}
