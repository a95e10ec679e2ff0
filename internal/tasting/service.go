package tasting

import (
	"context"
	"errors"
	"strings"
	"time"

	"brewlog/internal/achievement"
	"brewlog/internal/draft"
	"brewlog/internal/jobs"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	DB      *gorm.DB
	Catalog achievement.Catalog
	// Location decides calendar days for streaks and early/late records.
	Location *time.Location
	Now      func() time.Time
}

type FinalizeResult struct {
	Record        Record                 `json:"record"`
	NewlyUnlocked []achievement.Progress `json:"newlyUnlocked"`
	// Duplicate is set when the draft had already been finalized.
	Duplicate bool `json:"duplicate,omitempty"`
}

type ListFilter struct {
	Mode   string
	Flavor string
	Query  string
	Limit  int
}

// Finalize stores a finished draft as a record and commits every
// achievement it unlocks, in one transaction. Each unlock enqueues a
// notify job in the same transaction. Finalizing the same draft twice
// returns the stored record.
func (s *Service) Finalize(ctx context.Context, userID uint64, d draft.Draft) (FinalizeResult, error) {
	now := s.now()
	rec, err := RecordFromDraft(userID, d, now)
	if err != nil {
		return FinalizeResult{}, err
	}

	var res FinalizeResult
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Record
		err := tx.Where("user_id=? AND draft_id=?", userID, d.ID).First(&existing).Error
		switch {
		case err == nil:
			res = FinalizeResult{Record: existing, Duplicate: true, NewlyUnlocked: []achievement.Progress{}}
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		unlocked, err := s.commitUnlocks(tx, userID, now)
		if err != nil {
			return err
		}
		res = FinalizeResult{Record: rec, NewlyUnlocked: unlocked}
		return nil
	})
	return res, err
}

// Share marks a record shared and commits any social achievements it unlocks.
func (s *Service) Share(ctx context.Context, userID, recordID uint64) ([]achievement.Progress, error) {
	now := s.now()
	var unlocked []achievement.Progress
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r Record
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id=? AND user_id=?", recordID, userID).
			First(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !r.Shared {
			if err := tx.Model(&Record{}).
				Where("id=? AND user_id=?", recordID, userID).
				Updates(map[string]any{"shared": true, "shared_at": now, "updated_at": now}).Error; err != nil {
				return err
			}
		}

		var err error
		unlocked, err = s.commitUnlocks(tx, userID, now)
		return err
	})
	return unlocked, err
}

// commitUnlocks evaluates the user's current stats and persists entries
// that crossed their target. The user's achievement rows are locked so
// concurrent finalizations cannot both announce the same unlock.
func (s *Service) commitUnlocks(tx *gorm.DB, userID uint64, now time.Time) ([]achievement.Progress, error) {
	st, err := s.stats(tx, userID, now)
	if err != nil {
		return nil, err
	}
	return persistUnlocks(s.Catalog, st, txUnlocks{tx: tx, userID: userID}, now)
}

// unlockStore is one user's achievement rows inside a transaction.
type unlockStore interface {
	// Committed reads unlocks and holds them until the transaction ends.
	Committed() (achievement.Unlocked, error)
	// Insert reports false when the row already existed.
	Insert(ua UserAchievement) (bool, error)
	EnqueueNotify(achievementID string, at time.Time) error
}

// persistUnlocks commits every newly unlocked entry and enqueues one notify
// job per row actually inserted. Entries another writer committed first are
// left out of the result.
func persistUnlocks(cat achievement.Catalog, st achievement.Stats, store unlockStore, now time.Time) ([]achievement.Progress, error) {
	unlocked, err := store.Committed()
	if err != nil {
		return nil, err
	}

	res := achievement.Evaluate(cat.Achievements, st, unlocked)
	out := make([]achievement.Progress, 0, len(res.NewlyUnlocked))
	for _, p := range res.NewlyUnlocked {
		inserted, err := store.Insert(UserAchievement{
			AchievementID:  p.AchievementID,
			UnlockedAt:     now,
			CatalogVersion: cat.Version,
		})
		if err != nil {
			return nil, err
		}
		if !inserted {
			continue
		}
		if err := store.EnqueueNotify(p.AchievementID, now); err != nil {
			return nil, err
		}
		at := now
		p.IsUnlocked, p.CanUnlock, p.UnlockedAt = true, false, &at
		out = append(out, p)
	}
	return out, nil
}

type txUnlocks struct {
	tx     *gorm.DB
	userID uint64
}

func (u txUnlocks) Committed() (achievement.Unlocked, error) {
	return loadUnlocked(u.tx.Clauses(clause.Locking{Strength: "UPDATE"}), u.userID)
}

func (u txUnlocks) Insert(ua UserAchievement) (bool, error) {
	ua.UserID = u.userID
	res := u.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ua)
	return res.RowsAffected > 0, res.Error
}

func (u txUnlocks) EnqueueNotify(achievementID string, at time.Time) error {
	return jobs.EnqueueAchievementNotify(u.tx, u.userID, achievementID, at)
}

func (s *Service) List(ctx context.Context, userID uint64, f ListFilter) ([]Record, error) {
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := s.DB.WithContext(ctx).Where("user_id=?", userID)
	if f.Mode != "" {
		q = q.Where("mode=?", f.Mode)
	}
	if f.Flavor != "" {
		q = q.Where("? = any(flavors)", f.Flavor)
	}
	if qs := strings.TrimSpace(f.Query); qs != "" {
		like := "%" + qs + "%"
		q = q.Where("coffee_name ILIKE ? OR cafe_name ILIKE ? OR roastery ILIKE ?", like, like, like)
	}

	var out []Record
	err := q.Order("tasted_at desc, id desc").Limit(limit).Find(&out).Error
	return out, err
}

func (s *Service) Get(ctx context.Context, userID, recordID uint64) (Record, error) {
	var r Record
	err := s.DB.WithContext(ctx).Where("id=? AND user_id=?", recordID, userID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	return r, err
}

// Delete removes a record. Achievements it helped unlock stay unlocked.
func (s *Service) Delete(ctx context.Context, userID, recordID uint64) error {
	res := s.DB.WithContext(ctx).Where("id=? AND user_id=?", recordID, userID).Delete(&Record{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) Stats(ctx context.Context, userID uint64) (achievement.Stats, error) {
	return s.stats(s.DB.WithContext(ctx), userID, s.now())
}

// Progress evaluates every achievement without committing anything.
func (s *Service) Progress(ctx context.Context, userID uint64) ([]achievement.Progress, error) {
	db := s.DB.WithContext(ctx)
	st, err := s.stats(db, userID, s.now())
	if err != nil {
		return nil, err
	}
	unlocked, err := loadUnlocked(db, userID)
	if err != nil {
		return nil, err
	}
	return achievement.Evaluate(s.Catalog.Achievements, st, unlocked).Progress, nil
}

// TakeNotifications returns unlocks the user has not been shown yet and
// marks them shown. Each unlock is returned at most once.
func (s *Service) TakeNotifications(ctx context.Context, userID uint64) ([]UserAchievement, error) {
	now := s.now()
	var out []UserAchievement
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("user_id=? AND notified_at is null", userID).
			Order("unlocked_at asc").
			Find(&out).Error; err != nil {
			return err
		}
		if len(out) == 0 {
			return nil
		}
		ids := make([]string, len(out))
		for i := range out {
			ids[i] = out[i].AchievementID
			out[i].NotifiedAt = &now
		}
		return tx.Model(&UserAchievement{}).
			Where("user_id=? AND achievement_id IN ?", userID, ids).
			Update("notified_at", now).Error
	})
	return out, err
}

func (s *Service) stats(db *gorm.DB, userID uint64, now time.Time) (achievement.Stats, error) {
	var recs []Record
	if err := db.
		Select("mode", "cafe_name", "roastery", "origin", "brew_method", "flavors",
			"sensory_expressions", "notes", "rating", "shared", "tasted_at").
		Where("user_id=?", userID).
		Find(&recs).Error; err != nil {
		return achievement.Stats{}, err
	}
	return ComputeStats(recs, now, s.Location), nil
}

func loadUnlocked(db *gorm.DB, userID uint64) (achievement.Unlocked, error) {
	var rows []UserAchievement
	if err := db.Where("user_id=?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	u := make(achievement.Unlocked, len(rows))
	for _, r := range rows {
		u[r.AchievementID] = r.UnlockedAt
	}
	return u, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
