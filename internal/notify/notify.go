// Package notify fans achievement unlocks out to other systems.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// UnlockEvent is published once per committed unlock. ID is derived from
// the user and achievement, so redelivery carries the same ID.
type UnlockEvent struct {
	ID            uuid.UUID `json:"id"`
	UserID        uint64    `json:"userId"`
	AchievementID string    `json:"achievementId"`
	Name          string    `json:"name"`
	Rarity        string    `json:"rarity"`
	Points        int       `json:"points"`
	UnlockedAt    time.Time `json:"unlockedAt"`
}

var eventSpace = uuid.MustParse("6f1c3a52-4f0e-4b8e-9a55-2d6b8f0c1e77")

func EventID(userID uint64, achievementID string) uuid.UUID {
	return uuid.NewSHA1(eventSpace, []byte(strconv.FormatUint(userID, 10)+":"+achievementID))
}

type Publisher interface {
	Publish(ctx context.Context, ev UnlockEvent) error
	Close() error
}

func encode(ev UnlockEvent) (key, value []byte, err error) {
	value, err = json.Marshal(ev)
	if err != nil {
		return nil, nil, fmt.Errorf("encode unlock event: %w", err)
	}
	return []byte(strconv.FormatUint(ev.UserID, 10)), value, nil
}
