package taxonomy

import (
	"fmt"
	"slices"
)

// Choice is one selected (level1, level2) pair. Level3 holds the specific
// descriptors; an empty Level3 means the group itself is selected.
type Choice struct {
	Level1 string   `json:"level1"`
	Level2 string   `json:"level2"`
	Level3 []string `json:"level3,omitempty"`
}

// Selection enforces the selection rules against one taxonomy.
// Undoing a toggle restores the same set of choices; a re-added entry or
// descriptor goes to the end, so order is not part of that guarantee.
type Selection struct {
	tax     *Taxonomy
	choices []Choice
	// pairs that were group-only before their first descriptor was added
	grouped map[[2]string]struct{}
}

func NewSelection(t *Taxonomy) *Selection {
	return &Selection{tax: t, grouped: map[[2]string]struct{}{}}
}

// Apply rebuilds a selection from submitted choices through the same rules.
// Entries past a category cap are dropped.
func Apply(t *Taxonomy, choices []Choice) (*Selection, error) {
	s := NewSelection(t)
	for _, c := range choices {
		if len(c.Level3) == 0 {
			if s.find(c.Level1, c.Level2) >= 0 {
				continue
			}
			if _, err := s.ToggleLevel2(c.Level1, c.Level2); err != nil {
				return nil, err
			}
			continue
		}
		for _, d := range c.Level3 {
			if s.hasLevel3(c.Level1, c.Level2, d) {
				continue
			}
			if _, err := s.ToggleLevel3(c.Level1, c.Level2, d); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// ToggleLevel2 adds or removes a group-only entry. It is a no-op while the
// group has descriptors selected, or when the category is at its cap.
func (s *Selection) ToggleLevel2(level1, level2 string) (bool, error) {
	if !s.tax.hasGroup(level1, level2) {
		return false, fmt.Errorf("%w: %s > %s", ErrUnknownDescriptor, level1, level2)
	}

	i := s.find(level1, level2)
	if i >= 0 {
		if len(s.choices[i].Level3) > 0 {
			return false, nil
		}
		s.choices = slices.Delete(s.choices, i, i+1)
		return true, nil
	}

	if s.atCap(level1) {
		return false, nil
	}
	s.choices = append(s.choices, Choice{Level1: level1, Level2: level2})
	return true, nil
}

// ToggleLevel3 adds or removes one descriptor. Adding to a group-only entry
// supersedes the group. Removing the last descriptor drops the pair, or
// restores the group-only entry it superseded.
func (s *Selection) ToggleLevel3(level1, level2, level3 string) (bool, error) {
	if !s.tax.hasDescriptor(level1, level2, level3) {
		return false, fmt.Errorf("%w: %s > %s > %s", ErrUnknownDescriptor, level1, level2, level3)
	}

	i := s.find(level1, level2)
	if i >= 0 {
		c := &s.choices[i]
		if j := slices.Index(c.Level3, level3); j >= 0 {
			c.Level3 = slices.Delete(c.Level3, j, j+1)
			if len(c.Level3) > 0 {
				return true, nil
			}
			key := [2]string{level1, level2}
			if _, ok := s.grouped[key]; ok {
				delete(s.grouped, key)
				c.Level3 = nil
				return true, nil
			}
			s.choices = slices.Delete(s.choices, i, i+1)
			return true, nil
		}
		if len(c.Level3) == 0 {
			// a group-only entry already counts toward the cap
			s.grouped[[2]string{level1, level2}] = struct{}{}
		} else if s.atCap(level1) {
			return false, nil
		}
		c.Level3 = append(c.Level3, level3)
		return true, nil
	}

	if s.atCap(level1) {
		return false, nil
	}
	s.choices = append(s.choices, Choice{Level1: level1, Level2: level2, Level3: []string{level3}})
	return true, nil
}

// Level2Disabled reports whether the group toggle is superseded by selected descriptors.
func (s *Selection) Level2Disabled(level1, level2 string) bool {
	i := s.find(level1, level2)
	return i >= 0 && len(s.choices[i].Level3) > 0
}

// Count is the number of selections under a category.
func (s *Selection) Count(level1 string) int {
	n := 0
	for _, c := range s.choices {
		if c.Level1 != level1 {
			continue
		}
		n += max(1, len(c.Level3))
	}
	return n
}

func (s *Selection) Len() int { return len(s.choices) }

func (s *Selection) Choices() []Choice {
	out := make([]Choice, 0, len(s.choices))
	for _, c := range s.choices {
		c.Level3 = slices.Clone(c.Level3)
		out = append(out, c)
	}
	return out
}

// Flatten projects the selection into descriptor labels for storage.
// Group-only entries contribute the group label. Duplicates are dropped.
func (s *Selection) Flatten() []string {
	out := []string{}
	seen := map[string]struct{}{}
	add := func(v string) {
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, c := range s.choices {
		if len(c.Level3) == 0 {
			add(c.Level2)
			continue
		}
		for _, d := range c.Level3 {
			add(d)
		}
	}
	return out
}

func (s *Selection) find(level1, level2 string) int {
	return slices.IndexFunc(s.choices, func(c Choice) bool {
		return c.Level1 == level1 && c.Level2 == level2
	})
}

func (s *Selection) hasLevel3(level1, level2, level3 string) bool {
	i := s.find(level1, level2)
	return i >= 0 && slices.Contains(s.choices[i].Level3, level3)
}

func (s *Selection) atCap(level1 string) bool {
	return s.tax.MaxPerLevel1 > 0 && s.Count(level1) >= s.tax.MaxPerLevel1
}
