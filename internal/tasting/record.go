package tasting

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"brewlog/internal/draft"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrIncomplete = errors.New("draft is not complete")
)

// RecordFromDraft builds the record a finished draft produces.
func RecordFromDraft(userID uint64, d draft.Draft, now time.Time) (Record, error) {
	if d.CurrentStep != draft.StepResult {
		return Record{}, fmt.Errorf("%w: at step %s", ErrIncomplete, d.CurrentStep)
	}
	if d.CoffeeInfo == nil || strings.TrimSpace(d.CoffeeInfo.CoffeeName) == "" {
		return Record{}, fmt.Errorf("%w: missing coffee", ErrIncomplete)
	}
	if d.Mode == draft.ModeHomeCafe && d.BrewSetup == nil {
		return Record{}, fmt.Errorf("%w: missing brew setup", ErrIncomplete)
	}

	ci := *d.CoffeeInfo
	r := Record{
		UserID:             userID,
		DraftID:            d.ID,
		Mode:               string(d.Mode),
		CoffeeName:         strings.TrimSpace(ci.CoffeeName),
		Roastery:           strings.TrimSpace(ci.Roastery),
		Origin:             strings.TrimSpace(ci.Origin),
		CoffeeInfo:         datatypes.NewJSONType(ci),
		Flavors:            pq.StringArray(nonNil(d.Flavors)),
		SensoryExpressions: pq.StringArray(nonNil(d.SensoryExpressions)),
		StartedAt:          d.StartedAt,
		TastedAt:           now,
	}
	if d.Mode == draft.ModeCafe {
		r.CafeName = strings.TrimSpace(ci.CafeName)
	}
	if d.BrewSetup != nil {
		b, err := json.Marshal(d.BrewSetup)
		if err != nil {
			return Record{}, err
		}
		r.BrewSetup = datatypes.JSON(b)
		r.BrewMethod = strings.TrimSpace(d.BrewSetup.Method)
	}
	if rt := d.Ratings; rt != nil {
		r.Body, r.Acidity, r.Sweetness = ptr(rt.Body), ptr(rt.Acidity), ptr(rt.Sweetness)
		r.Finish, r.Bitterness, r.Balance = ptr(rt.Finish), ptr(rt.Bitterness), ptr(rt.Balance)
		r.CleanCup = ptr(rt.CleanCup)
	}
	if n := d.PersonalNotes; n != nil {
		r.Notes = strings.TrimSpace(n.Text)
		r.Rating = n.Rating
	}
	return r, nil
}

// Ratings reassembles the mouthfeel scores, nil when they were skipped.
func (r Record) Ratings() *draft.Ratings {
	if r.Body == nil {
		return nil
	}
	return &draft.Ratings{
		Body: deref(r.Body), Acidity: deref(r.Acidity), Sweetness: deref(r.Sweetness),
		Finish: deref(r.Finish), Bitterness: deref(r.Bitterness), Balance: deref(r.Balance),
		CleanCup: deref(r.CleanCup),
	}
}

func ptr(v int) *int { return &v }

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
