package achievement

import (
	"math"
	"time"
)

// Progress is the derived state of one achievement for one user.
type Progress struct {
	AchievementID string     `json:"achievementId"`
	Current       float64    `json:"current"`
	Target        float64    `json:"target"`
	Percentage    float64    `json:"percentage"`
	IsUnlocked    bool       `json:"isUnlocked"`
	CanUnlock     bool       `json:"canUnlock"`
	UnlockedAt    *time.Time `json:"unlockedAt,omitempty"`

	Category  Category `json:"category"`
	Rarity    Rarity   `json:"rarity"`
	Points    int      `json:"points"`
	Malformed bool     `json:"malformed,omitempty"`
}

// Unlocked maps achievement id to the time the unlock was committed.
type Unlocked map[string]time.Time

type Result struct {
	Progress []Progress
	// NewlyUnlocked holds the entries that crossed their target in this
	// evaluation and have not been committed yet.
	NewlyUnlocked []Progress
}

// Evaluate computes progress for every definition. Committed unlocks are
// never revoked, whatever the stats say now. A definition whose requirement
// cannot be resolved reports zero progress instead of failing the batch.
func Evaluate(defs []Definition, st Stats, unlocked Unlocked) Result {
	res := Result{Progress: make([]Progress, 0, len(defs))}
	for _, d := range defs {
		p := evaluateOne(d, st, unlocked)
		res.Progress = append(res.Progress, p)
		if p.CanUnlock {
			res.NewlyUnlocked = append(res.NewlyUnlocked, p)
		}
	}
	return res
}

func evaluateOne(d Definition, st Stats, unlocked Unlocked) Progress {
	p := Progress{
		AchievementID: d.ID,
		Target:        d.Requirement.Target,
		Category:      d.Category,
		Rarity:        d.Rarity,
		Points:        d.Points,
	}

	at, committed := unlocked[d.ID]
	if committed {
		p.IsUnlocked = true
		t := at
		p.UnlockedAt = &t
	}

	if !d.Requirement.wellFormed() {
		p.Malformed = true
		return p
	}

	cur, _ := d.Requirement.Field.Resolve(st)
	if math.IsNaN(cur) || math.IsInf(cur, 0) {
		cur = 0
	}
	p.Current = cur
	p.Percentage = percentage(cur, d.Requirement.Target)

	reached := cur >= d.Requirement.Target
	if reached && !committed {
		p.CanUnlock = true
		p.IsUnlocked = true
	}
	return p
}

func percentage(current, target float64) float64 {
	if target <= 0 {
		return 0
	}
	v := current / target * 100
	return math.Max(0, math.Min(100, v))
}
