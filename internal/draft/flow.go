// Package draft keeps the in-progress tasting session: an ordered,
// mode-dependent sequence of steps whose partial answers are persisted after
// every step and can be resumed within a validity window.
package draft

import (
	"fmt"
	"slices"
)

type Mode string

const (
	ModeCafe     Mode = "cafe"
	ModeHomeCafe Mode = "homecafe"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeCafe, ModeHomeCafe:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrValidation, s)
}

type Step string

const (
	StepModeSelect        Step = "ModeSelect"
	StepCoffeeInfo        Step = "CoffeeInfo"
	StepBrewSetup         Step = "BrewSetup"
	StepFlavorSelection   Step = "FlavorSelection"
	StepSensoryExpression Step = "SensoryExpression"
	StepSensoryMouthFeel  Step = "SensoryMouthFeel"
	StepPersonalNotes     Step = "PersonalNotes"
	StepResult            Step = "Result"
)

var (
	cafeSteps = []Step{
		StepModeSelect, StepCoffeeInfo, StepFlavorSelection, StepSensoryExpression,
		StepSensoryMouthFeel, StepPersonalNotes, StepResult,
	}
	homeCafeSteps = []Step{
		StepModeSelect, StepCoffeeInfo, StepBrewSetup, StepFlavorSelection, StepSensoryExpression,
		StepSensoryMouthFeel, StepPersonalNotes, StepResult,
	}
)

// Steps is the ordered step sequence for a mode.
func Steps(m Mode) []Step {
	if m == ModeHomeCafe {
		return slices.Clone(homeCafeSteps)
	}
	return slices.Clone(cafeSteps)
}

// dataSteps are the steps that carry a payload, in flow order.
func dataSteps(m Mode) []Step {
	var out []Step
	for _, s := range Steps(m) {
		if s.hasPayload() {
			out = append(out, s)
		}
	}
	return out
}

func (s Step) hasPayload() bool {
	return s != StepModeSelect && s != StepResult
}

// Optional steps may be left without a payload. Leaving one empty records it as skipped.
func (s Step) Optional() bool {
	switch s {
	case StepSensoryExpression, StepSensoryMouthFeel, StepPersonalNotes:
		return true
	}
	return false
}

func (s Step) in(m Mode) bool {
	return slices.Contains(Steps(m), s)
}

func next(m Mode, s Step) (Step, bool) {
	seq := Steps(m)
	i := slices.Index(seq, s)
	if i < 0 || i == len(seq)-1 {
		return "", false
	}
	return seq[i+1], true
}

func prev(m Mode, s Step) (Step, bool) {
	seq := Steps(m)
	i := slices.Index(seq, s)
	// ModeSelect is not re-entered; a new mode means a new draft
	if i <= 1 {
		return "", false
	}
	return seq[i-1], true
}
