package tasting

import (
	"time"

	"brewlog/internal/draft"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Record is a finalized tasting. Everything but the share flag is fixed at creation.
// DraftID makes finalization idempotent per user.
type Record struct {
	ID      uint64 `gorm:"primaryKey" json:"id"`
	UserID  uint64 `gorm:"index;not null" json:"userId"`
	DraftID string `gorm:"type:text;not null" json:"draftId"`
	Mode    string `gorm:"type:text;not null" json:"mode"`

	CoffeeName string `gorm:"type:text;not null" json:"coffeeName"`
	CafeName   string `gorm:"type:text;not null;default:''" json:"cafeName,omitempty"`
	Roastery   string `gorm:"type:text;not null;default:''" json:"roastery,omitempty"`
	Origin     string `gorm:"type:text;not null;default:''" json:"origin,omitempty"`
	BrewMethod string `gorm:"type:text;not null;default:''" json:"brewMethod,omitempty"`

	CoffeeInfo datatypes.JSONType[draft.CoffeeInfo] `gorm:"type:jsonb;not null" json:"coffeeInfo"`
	BrewSetup  datatypes.JSON                       `gorm:"type:jsonb" json:"brewSetup,omitempty"`

	Flavors            pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"flavors"`
	SensoryExpressions pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"sensoryExpressions"`

	// mouthfeel, nil when the step was skipped
	Body       *int `gorm:"type:smallint" json:"body,omitempty"`
	Acidity    *int `gorm:"type:smallint" json:"acidity,omitempty"`
	Sweetness  *int `gorm:"type:smallint" json:"sweetness,omitempty"`
	Finish     *int `gorm:"type:smallint" json:"finish,omitempty"`
	Bitterness *int `gorm:"type:smallint" json:"bitterness,omitempty"`
	Balance    *int `gorm:"type:smallint" json:"balance,omitempty"`
	CleanCup   *int `gorm:"type:smallint" json:"cleanCup,omitempty"`

	Notes  string `gorm:"type:text;not null;default:''" json:"notes"`
	Rating int    `gorm:"not null;default:0" json:"rating"`

	Shared   bool       `gorm:"not null;default:false" json:"shared"`
	SharedAt *time.Time `gorm:"type:timestamptz" json:"sharedAt,omitempty"`

	StartedAt time.Time `gorm:"not null" json:"startedAt"`
	TastedAt  time.Time `gorm:"index;not null" json:"tastedAt"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updatedAt"`
}

// UserAchievement is a committed unlock. Rows are never deleted.
type UserAchievement struct {
	UserID         uint64     `gorm:"primaryKey"`
	AchievementID  string     `gorm:"primaryKey;type:text"`
	UnlockedAt     time.Time  `gorm:"not null;default:now()"`
	NotifiedAt     *time.Time `gorm:"type:timestamptz"`
	CatalogVersion int        `gorm:"not null;default:0"`
}
