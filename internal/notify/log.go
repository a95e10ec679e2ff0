package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher is used when no broker is configured.
type LogPublisher struct {
	Log *zap.Logger
}

func (p LogPublisher) Publish(_ context.Context, ev UnlockEvent) error {
	p.Log.Info("achievement unlocked",
		zap.Stringer("event_id", ev.ID),
		zap.Uint64("user_id", ev.UserID),
		zap.String("achievement", ev.AchievementID),
		zap.String("rarity", ev.Rarity),
		zap.Int("points", ev.Points),
	)
	return nil
}

func (LogPublisher) Close() error { return nil }
