package draft

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

var (
	ErrNoDraft      = errors.New("no draft")
	ErrDraftExpired = fmt.Errorf("%w: draft expired", ErrNoDraft)
	ErrNotPersisted = errors.New("draft not persisted")
	ErrValidation   = errors.New("invalid draft input")
	ErrFlowComplete = errors.New("tasting flow already complete")
)

type CoffeeInfo struct {
	CoffeeName  string `json:"coffeeName"`
	CafeName    string `json:"cafeName,omitempty"`
	Roastery    string `json:"roastery,omitempty"`
	Origin      string `json:"origin,omitempty"`
	Variety     string `json:"variety,omitempty"`
	Process     string `json:"process,omitempty"`
	Altitude    string `json:"altitude,omitempty"`
	RoastLevel  string `json:"roastLevel,omitempty"`
	Temperature string `json:"temperature,omitempty"` // hot | iced
}

type BrewSetup struct {
	Method          string  `json:"method"`
	Grinder         string  `json:"grinder,omitempty"`
	GrindSize       string  `json:"grindSize,omitempty"`
	DoseGrams       float64 `json:"doseGrams,omitempty"`
	WaterGrams      float64 `json:"waterGrams,omitempty"`
	WaterTempC      float64 `json:"waterTempC,omitempty"`
	BrewTimeSeconds int     `json:"brewTimeSeconds,omitempty"`
}

// Ratio is water per gram of coffee, 0 when unknown.
func (b BrewSetup) Ratio() float64 {
	if b.DoseGrams <= 0 {
		return 0
	}
	return math.Round(b.WaterGrams/b.DoseGrams*10) / 10
}

// Ratings are the seven mouthfeel scores, each 0..5.
type Ratings struct {
	Body       int `json:"body"`
	Acidity    int `json:"acidity"`
	Sweetness  int `json:"sweetness"`
	Finish     int `json:"finish"`
	Bitterness int `json:"bitterness"`
	Balance    int `json:"balance"`
	CleanCup   int `json:"cleanCup"`
}

func (r Ratings) fields() map[string]int {
	return map[string]int{
		"body": r.Body, "acidity": r.Acidity, "sweetness": r.Sweetness, "finish": r.Finish,
		"bitterness": r.Bitterness, "balance": r.Balance, "cleanCup": r.CleanCup,
	}
}

type PersonalNotes struct {
	Text string `json:"text"`
	// Rating is the overall score, 1..5; 0 means not rated.
	Rating int `json:"rating,omitempty"`
}

// Draft is one in-progress tasting session.
type Draft struct {
	ID          string    `json:"id"`
	Mode        Mode      `json:"mode"`
	CurrentStep Step      `json:"currentStep"`
	StartedAt   time.Time `json:"startedAt"`
	LastSavedAt time.Time `json:"lastSavedAt"`

	CoffeeInfo         *CoffeeInfo    `json:"coffeeInfo,omitempty"`
	BrewSetup          *BrewSetup     `json:"brewSetup,omitempty"`
	Flavors            []string       `json:"flavors,omitempty"`
	SensoryExpressions []string       `json:"sensoryExpressions,omitempty"`
	Ratings            *Ratings       `json:"ratings,omitempty"`
	PersonalNotes      *PersonalNotes `json:"personalNotes,omitempty"`

	// Skipped lists optional steps the user moved past without answering.
	Skipped []Step `json:"skipped,omitempty"`
}

// Patch is a partial step payload. Nil fields are left untouched.
type Patch struct {
	CoffeeInfo         *CoffeeInfo    `json:"coffeeInfo,omitempty"`
	BrewSetup          *BrewSetup     `json:"brewSetup,omitempty"`
	Flavors            []string       `json:"flavors,omitempty"`
	SensoryExpressions []string       `json:"sensoryExpressions,omitempty"`
	Ratings            *Ratings       `json:"ratings,omitempty"`
	PersonalNotes      *PersonalNotes `json:"personalNotes,omitempty"`
}

// Empty reports whether the patch carries no answer. An empty but non-nil
// list is an answer: it clears the field.
func (p Patch) Empty() bool {
	return p.CoffeeInfo == nil && p.BrewSetup == nil && p.Flavors == nil &&
		p.SensoryExpressions == nil && p.Ratings == nil && p.PersonalNotes == nil
}

// Merge overlays q on p field by field; q wins where both are set.
func (p Patch) Merge(q Patch) Patch {
	if q.CoffeeInfo != nil {
		p.CoffeeInfo = q.CoffeeInfo
	}
	if q.BrewSetup != nil {
		p.BrewSetup = q.BrewSetup
	}
	if q.Flavors != nil {
		p.Flavors = q.Flavors
	}
	if q.SensoryExpressions != nil {
		p.SensoryExpressions = q.SensoryExpressions
	}
	if q.Ratings != nil {
		p.Ratings = q.Ratings
	}
	if q.PersonalNotes != nil {
		p.PersonalNotes = q.PersonalNotes
	}
	return p
}

// validate checks the values a patch carries, independent of flow position.
func (p Patch) validate(m Mode) error {
	if p.CoffeeInfo != nil && strings.TrimSpace(p.CoffeeInfo.CoffeeName) == "" {
		return fmt.Errorf("%w: coffeeInfo.coffeeName is required", ErrValidation)
	}
	if p.BrewSetup != nil {
		if m != ModeHomeCafe {
			return fmt.Errorf("%w: brewSetup only applies to homecafe mode", ErrValidation)
		}
		b := p.BrewSetup
		if strings.TrimSpace(b.Method) == "" {
			return fmt.Errorf("%w: brewSetup.method is required", ErrValidation)
		}
		if b.DoseGrams < 0 || b.WaterGrams < 0 || b.WaterTempC < 0 || b.BrewTimeSeconds < 0 {
			return fmt.Errorf("%w: brewSetup values must not be negative", ErrValidation)
		}
	}
	if p.Ratings != nil {
		for name, v := range p.Ratings.fields() {
			if v < 0 || v > 5 {
				return fmt.Errorf("%w: ratings.%s must be between 0 and 5", ErrValidation, name)
			}
		}
	}
	if p.PersonalNotes != nil && (p.PersonalNotes.Rating < 0 || p.PersonalNotes.Rating > 5) {
		return fmt.Errorf("%w: personalNotes.rating must be between 0 and 5", ErrValidation)
	}
	for _, l := range [][]string{p.Flavors, p.SensoryExpressions} {
		for _, v := range l {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("%w: empty descriptor", ErrValidation)
			}
		}
	}
	return nil
}

// apply merges a patch into a copy of d. Fields the patch does not carry are kept.
func (d Draft) apply(p Patch) Draft {
	if p.CoffeeInfo != nil {
		v := *p.CoffeeInfo
		d.CoffeeInfo = &v
	}
	if p.BrewSetup != nil {
		v := *p.BrewSetup
		d.BrewSetup = &v
	}
	if p.Flavors != nil {
		d.Flavors = slices.Clone(p.Flavors)
	}
	if p.SensoryExpressions != nil {
		d.SensoryExpressions = slices.Clone(p.SensoryExpressions)
	}
	if p.Ratings != nil {
		v := *p.Ratings
		d.Ratings = &v
	}
	if p.PersonalNotes != nil {
		v := *p.PersonalNotes
		d.PersonalNotes = &v
	}

	// answering a skipped step un-skips it
	d.Skipped = slices.DeleteFunc(slices.Clone(d.Skipped), d.Populated)
	return d
}

// Populated reports whether the step's payload field holds an answer.
func (d Draft) Populated(s Step) bool {
	switch s {
	case StepCoffeeInfo:
		return d.CoffeeInfo != nil
	case StepBrewSetup:
		return d.BrewSetup != nil
	case StepFlavorSelection:
		return len(d.Flavors) > 0
	case StepSensoryExpression:
		return len(d.SensoryExpressions) > 0
	case StepSensoryMouthFeel:
		return d.Ratings != nil
	case StepPersonalNotes:
		return d.PersonalNotes != nil
	}
	return false
}

func (d Draft) skipped(s Step) bool {
	return slices.Contains(d.Skipped, s)
}

// checkRequired reports the first required step before stop that has no answer.
func (d Draft) checkRequired(stop Step) error {
	for _, s := range Steps(d.Mode) {
		if s == stop {
			return nil
		}
		if !s.hasPayload() || s.Optional() || d.Populated(s) {
			continue
		}
		return fmt.Errorf("%w: step %s requires an answer", ErrValidation, s)
	}
	return nil
}

// Metadata is the summary shown when offering to resume a draft.
type Metadata struct {
	DraftID           string    `json:"draftId"`
	Mode              Mode      `json:"mode"`
	CurrentStep       Step      `json:"currentStep"`
	CompletionPercent int       `json:"completionPercent"`
	CompletedSteps    int       `json:"completedSteps"`
	ExpectedSteps     int       `json:"expectedSteps"`
	LastSavedAt       time.Time `json:"lastSavedAt"`
	CoffeeName        string    `json:"coffeeName,omitempty"`
	ExpiresAt         time.Time `json:"expiresAt,omitempty"`
	// SaveFailures counts consecutive failed durable writes; non-zero means
	// recent answers exist only in memory.
	SaveFailures int `json:"saveFailures,omitempty"`
}

// Metadata projects the draft. Skipped steps count in neither the
// numerator nor the denominator of the completion percentage.
func (d Draft) Metadata() Metadata {
	md := Metadata{
		DraftID:     d.ID,
		Mode:        d.Mode,
		CurrentStep: d.CurrentStep,
		LastSavedAt: d.LastSavedAt,
	}
	if d.CoffeeInfo != nil {
		md.CoffeeName = d.CoffeeInfo.CoffeeName
	}
	for _, s := range dataSteps(d.Mode) {
		if d.skipped(s) {
			continue
		}
		md.ExpectedSteps++
		if d.Populated(s) {
			md.CompletedSteps++
		}
	}
	if md.ExpectedSteps > 0 {
		md.CompletionPercent = int(math.Round(float64(md.CompletedSteps) * 100 / float64(md.ExpectedSteps)))
	}
	return md
}
