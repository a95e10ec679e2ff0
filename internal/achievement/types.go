// Package achievement evaluates gamified progress from a user's tasting statistics.
package achievement

import (
	"fmt"
	"strings"
)

type Category string

const (
	CategoryMilestone   Category = "milestone"
	CategoryExploration Category = "exploration"
	CategoryConsistency Category = "consistency"
	CategoryExpertise   Category = "expertise"
	CategorySocial      Category = "social"
	CategorySpecial     Category = "special"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryMilestone, CategoryExploration, CategoryConsistency,
		CategoryExpertise, CategorySocial, CategorySpecial:
		return true
	}
	return false
}

type RequirementType string

const (
	TypeCount   RequirementType = "count"
	TypeStreak  RequirementType = "streak"
	TypeUnique  RequirementType = "unique"
	TypeRating  RequirementType = "rating"
	TypeSocial  RequirementType = "social"
	TypeSpecial RequirementType = "special"
)

// Rarity is ordered: Common < Uncommon < Rare < Epic < Legendary.
type Rarity int

const (
	Common Rarity = iota
	Uncommon
	Rare
	Epic
	Legendary
)

var rarityNames = [...]string{"common", "uncommon", "rare", "epic", "legendary"}

func (r Rarity) String() string {
	if r < Common || r > Legendary {
		return fmt.Sprintf("rarity(%d)", int(r))
	}
	return rarityNames[r]
}

func (r Rarity) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Rarity) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for i, n := range rarityNames {
		if n == s {
			*r = Rarity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown rarity %q", s)
}

// Requirement is what a user must reach to unlock an achievement.
type Requirement struct {
	Type   RequirementType `json:"type"`
	Target float64         `json:"target"`
	Field  Stat            `json:"field"`
}

type Definition struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Icon        string      `json:"icon,omitempty"`
	Category    Category    `json:"category"`
	Rarity      Rarity      `json:"rarity"`
	Points      int         `json:"points"`
	Requirement Requirement `json:"requirement"`
}

// wellFormed reports whether the requirement can be resolved at all.
func (r Requirement) wellFormed() bool {
	return r.Target > 0 && r.Field.accepts(r.Type)
}
