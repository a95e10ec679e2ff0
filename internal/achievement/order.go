package achievement

import (
	"cmp"
	"slices"
)

// NextUp returns up to n locked achievements closest to unlocking:
// percentage descending, then more common first, then id.
func NextUp(ps []Progress, n int) []Progress {
	out := make([]Progress, 0, len(ps))
	for _, p := range ps {
		if !p.IsUnlocked && !p.Malformed {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, byProgress)
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Grid orders the full list for display: unlocked first, most recent
// unlock first (uncommitted unlocks lead), then locked by progress.
func Grid(ps []Progress) []Progress {
	out := slices.Clone(ps)
	slices.SortStableFunc(out, func(a, b Progress) int {
		if a.IsUnlocked != b.IsUnlocked {
			if a.IsUnlocked {
				return -1
			}
			return 1
		}
		if a.IsUnlocked {
			return compareRecency(a, b)
		}
		return byProgress(a, b)
	})
	return out
}

func byProgress(a, b Progress) int {
	return cmp.Or(
		cmp.Compare(b.Percentage, a.Percentage),
		cmp.Compare(a.Rarity, b.Rarity),
		cmp.Compare(a.AchievementID, b.AchievementID),
	)
}

func compareRecency(a, b Progress) int {
	switch {
	case a.UnlockedAt == nil && b.UnlockedAt == nil:
	case a.UnlockedAt == nil:
		return -1
	case b.UnlockedAt == nil:
		return 1
	default:
		if c := b.UnlockedAt.Compare(*a.UnlockedAt); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.AchievementID, b.AchievementID)
}

type Summary struct {
	Unlocked int `json:"unlocked"`
	Total    int `json:"total"`
	Points   int `json:"points"`
	Level    int `json:"level"`
	// NextLevelAt is the point total that reaches the next level.
	NextLevelAt int `json:"nextLevelAt"`
}

const pointsPerLevel = 100

func Summarize(ps []Progress) Summary {
	s := Summary{Total: len(ps)}
	for _, p := range ps {
		if p.IsUnlocked {
			s.Unlocked++
			s.Points += p.Points
		}
	}
	s.Level = s.Points/pointsPerLevel + 1
	s.NextLevelAt = s.Level * pointsPerLevel
	return s
}
