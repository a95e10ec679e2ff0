package taxonomy

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedCatalogs(t *testing.T) {
	assert.Equal(t, 85, Flavors().Size())
	assert.Equal(t, 0, Flavors().MaxPerLevel1)

	assert.Equal(t, 44, Sensory().Size())
	assert.Len(t, Sensory().Categories, 6)
	assert.Equal(t, 3, Sensory().MaxPerLevel1)

	tax, ok := ByName("sensory")
	require.True(t, ok)
	assert.Same(t, Sensory(), tax)
	_, ok = ByName("aroma")
	assert.False(t, ok)
}

func TestParseRejectsDuplicates(t *testing.T) {
	_, err := Parse([]byte(`
name: x
categories:
  - name: A
    groups: [{name: B}, {name: B}]
`))
	assert.Error(t, err)

	_, err = Parse([]byte(`categories: []`))
	assert.Error(t, err)
}

func TestCheckLabels(t *testing.T) {
	assert.NoError(t, Flavors().CheckLabels(nil))
	assert.NoError(t, Flavors().CheckLabels([]string{"Blackberry", "Berry", "Vanilla"}))
	assert.ErrorIs(t, Flavors().CheckLabels([]string{"Honey", "Durian"}), ErrUnknownDescriptor)
	assert.ErrorIs(t, Flavors().CheckLabels([]string{"Fruity"}), ErrUnknownDescriptor, "categories are not labels")
	assert.ErrorIs(t, Sensory().CheckLabels([]string{"Honey"}), ErrUnknownDescriptor)

	// whatever a selection flattens to passes
	s := NewSelection(Flavors())
	_, _ = s.ToggleLevel2("Fruity", "Berry")
	_, _ = s.ToggleLevel3("Sweet", "Brown Sugar", "Maple Syrup")
	assert.NoError(t, Flavors().CheckLabels(s.Flatten()))
}

func TestToggleLevel3CreatesAndDropsEntry(t *testing.T) {
	s := NewSelection(Flavors())

	changed, err := s.ToggleLevel3("Fruity", "Berry", "Blackberry")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []Choice{{Level1: "Fruity", Level2: "Berry", Level3: []string{"Blackberry"}}}, s.Choices())
	assert.True(t, s.Level2Disabled("Fruity", "Berry"))

	changed, err = s.ToggleLevel3("Fruity", "Berry", "Blackberry")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Level2Disabled("Fruity", "Berry"))
}

func TestToggleLevel2DisabledWhileChildrenSelected(t *testing.T) {
	s := NewSelection(Flavors())
	_, err := s.ToggleLevel3("Sweet", "Brown Sugar", "Honey")
	require.NoError(t, err)

	before := s.Choices()
	changed, err := s.ToggleLevel2("Sweet", "Brown Sugar")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, before, s.Choices())
}

func TestToggleLevel2Only(t *testing.T) {
	s := NewSelection(Flavors())

	changed, err := s.ToggleLevel2("Sweet", "Vanilla")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"Vanilla"}, s.Flatten())

	changed, err = s.ToggleLevel2("Sweet", "Vanilla")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, s.Flatten())
}

func TestLevel3SupersedesGroupOnlyEntry(t *testing.T) {
	s := NewSelection(Flavors())
	_, _ = s.ToggleLevel2("Fruity", "Berry")
	_, err := s.ToggleLevel3("Fruity", "Berry", "Raspberry")
	require.NoError(t, err)

	assert.Equal(t, []Choice{{Level1: "Fruity", Level2: "Berry", Level3: []string{"Raspberry"}}}, s.Choices())
	assert.Equal(t, []string{"Raspberry"}, s.Flatten())
}

func TestUnknownDescriptor(t *testing.T) {
	s := NewSelection(Flavors())

	_, err := s.ToggleLevel3("Fruity", "Berry", "Durian")
	assert.ErrorIs(t, err, ErrUnknownDescriptor)
	_, err = s.ToggleLevel2("Fruity", "Tropical")
	assert.ErrorIs(t, err, ErrUnknownDescriptor)
	// groups without descriptors only accept the group toggle
	_, err = s.ToggleLevel3("Sweet", "Vanilla", "Vanilla")
	assert.ErrorIs(t, err, ErrUnknownDescriptor)
	assert.Equal(t, 0, s.Len())
}

func TestSensoryCapPerCategory(t *testing.T) {
	s := NewSelection(Sensory())
	for _, e := range []string{"싱그러운", "상큼한", "밝은"} {
		changed, err := s.ToggleLevel2("산미", e)
		require.NoError(t, err)
		require.True(t, changed)
	}

	before := s.Choices()
	changed, err := s.ToggleLevel2("산미", "새콤한")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, before, s.Choices())
	assert.Equal(t, 3, s.Count("산미"))

	// other categories are independent
	changed, err = s.ToggleLevel2("바디", "실키한")
	require.NoError(t, err)
	assert.True(t, changed)

	// freeing a slot re-enables additions
	_, _ = s.ToggleLevel2("산미", "밝은")
	changed, err = s.ToggleLevel2("산미", "새콤한")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestCapCountsDescriptors(t *testing.T) {
	tax, err := Parse([]byte(`
name: capped
max_per_level1: 2
categories:
  - name: A
    groups:
      - name: G
        descriptors: [x, y, z]
      - name: H
`))
	require.NoError(t, err)

	s := NewSelection(tax)
	_, _ = s.ToggleLevel3("A", "G", "x")
	_, _ = s.ToggleLevel3("A", "G", "y")
	changed, err := s.ToggleLevel3("A", "G", "z")
	require.NoError(t, err)
	assert.False(t, changed)
	changed, _ = s.ToggleLevel2("A", "H")
	assert.False(t, changed)
	assert.Equal(t, []string{"x", "y"}, s.Flatten())
}

func TestFlattenDedupesAndKeepsOrder(t *testing.T) {
	s := NewSelection(Flavors())
	_, _ = s.ToggleLevel3("Fruity", "Berry", "Blackberry")
	_, _ = s.ToggleLevel2("Floral", "Black Tea")
	_, _ = s.ToggleLevel3("Sweet", "Brown Sugar", "Honey")
	_, _ = s.ToggleLevel3("Fruity", "Berry", "Blueberry")

	assert.Equal(t, []string{"Blackberry", "Blueberry", "Black Tea", "Honey"}, s.Flatten())
}

func TestApply(t *testing.T) {
	s, err := Apply(Sensory(), []Choice{
		{Level1: "산미", Level2: "싱그러운"},
		{Level1: "산미", Level2: "싱그러운"},
		{Level1: "산미", Level2: "상큼한"},
		{Level1: "산미", Level2: "밝은"},
		{Level1: "산미", Level2: "새콤한"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"싱그러운", "상큼한", "밝은"}, s.Flatten())

	_, err = Apply(Flavors(), []Choice{{Level1: "Fruity", Level2: "Berry", Level3: []string{"Kiwi"}}})
	assert.ErrorIs(t, err, ErrUnknownDescriptor)
}

func TestChoicesReturnsCopy(t *testing.T) {
	s := NewSelection(Flavors())
	_, _ = s.ToggleLevel3("Fruity", "Berry", "Blackberry")

	c := s.Choices()
	c[0].Level3[0] = "mutated"
	assert.Equal(t, []string{"Blackberry"}, s.Flatten())
}

func TestRemovingLastDescriptorRestoresGroupOnlyEntry(t *testing.T) {
	s := NewSelection(Flavors())
	_, _ = s.ToggleLevel3("Sweet", "Brown Sugar", "Honey")
	_, _ = s.ToggleLevel2("Fruity", "Berry")
	before := s.Choices()

	_, err := s.ToggleLevel3("Fruity", "Berry", "Blackberry")
	require.NoError(t, err)
	_, err = s.ToggleLevel3("Fruity", "Berry", "Raspberry")
	require.NoError(t, err)
	assert.Equal(t, []string{"Honey", "Blackberry", "Raspberry"}, s.Flatten())
	assert.Equal(t, 2, s.Count("Fruity"))

	_, _ = s.ToggleLevel3("Fruity", "Berry", "Blackberry")
	_, _ = s.ToggleLevel3("Fruity", "Berry", "Raspberry")
	assert.Equal(t, before, s.Choices())
	assert.Equal(t, []string{"Honey", "Berry"}, s.Flatten())

	// the group-only memory is spent once restored
	_, _ = s.ToggleLevel2("Fruity", "Berry")
	_, _ = s.ToggleLevel3("Fruity", "Berry", "Blueberry")
	_, _ = s.ToggleLevel3("Fruity", "Berry", "Blueberry")
	assert.Equal(t, []string{"Honey"}, s.Flatten())
}

func TestUndoRestoresMembershipNotOrder(t *testing.T) {
	s := NewSelection(Flavors())
	_, _ = s.ToggleLevel3("Fruity", "Berry", "Blackberry")
	_, _ = s.ToggleLevel3("Fruity", "Berry", "Raspberry")
	_, _ = s.ToggleLevel3("Fruity", "Citrus Fruit", "Lemon")
	before := s.Choices()

	_, _ = s.ToggleLevel3("Fruity", "Berry", "Blackberry")
	_, _ = s.ToggleLevel3("Fruity", "Berry", "Blackberry")

	assert.True(t, slicesEqualSet(before, s.Choices()))
	assert.Equal(t, []string{"Raspberry", "Blackberry", "Lemon"}, s.Flatten(), "a re-added descriptor goes last")
}

func TestGroupOnlyRestoreRespectsCap(t *testing.T) {
	tax, err := Parse([]byte(`
name: capped
max_per_level1: 2
categories:
  - name: A
    groups:
      - name: G
        descriptors: [x, y, z]
      - name: H
`))
	require.NoError(t, err)

	s := NewSelection(tax)
	_, _ = s.ToggleLevel2("A", "G")
	_, _ = s.ToggleLevel2("A", "H")
	require.Equal(t, 2, s.Count("A"))

	// superseding the group keeps the count
	changed, err := s.ToggleLevel3("A", "G", "x")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, _ = s.ToggleLevel3("A", "G", "y")
	assert.False(t, changed)

	_, _ = s.ToggleLevel3("A", "G", "x")
	assert.Equal(t, []Choice{{Level1: "A", Level2: "G"}, {Level1: "A", Level2: "H"}}, s.Choices())
}

// Toggling a descriptor or a group twice from any state leaves the same
// set of choices behind.
func TestToggleRoundTripProperty(t *testing.T) {
	type node struct{ l1, l2, l3 string }
	var leaves, groups []node
	for _, c := range Flavors().Categories {
		for _, g := range c.Groups {
			groups = append(groups, node{c.Name, g.Name, ""})
			for _, d := range g.Descriptors {
				leaves = append(leaves, node{c.Name, g.Name, d})
			}
		}
	}
	pick := func(rng *rand.Rand) node {
		if rng.Intn(3) == 0 {
			return groups[rng.Intn(len(groups))]
		}
		return leaves[rng.Intn(len(leaves))]
	}
	toggle := func(s *Selection, n node) error {
		if n.l3 == "" {
			_, err := s.ToggleLevel2(n.l1, n.l2)
			return err
		}
		_, err := s.ToggleLevel3(n.l1, n.l2, n.l3)
		return err
	}

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 500; round++ {
		s := NewSelection(Flavors())
		n := rng.Intn(16)
		for i := 0; i < n; i++ {
			require.NoError(t, toggle(s, pick(rng)))
		}

		before := s.Choices()
		l := pick(rng)
		require.NoError(t, toggle(s, l))
		require.NoError(t, toggle(s, l))

		after := s.Choices()
		if !slicesEqualSet(before, after) {
			t.Fatalf("round %d: toggle %v changed membership: %s", round, l, cmp.Diff(before, after))
		}
		// without a prior entry, or on a group-only entry, the pair must
		// come back exactly
		if !containsPair(before, l.l1, l.l2) || (l.l3 != "" && isGroupOnly(before, l.l1, l.l2)) {
			if diff := cmp.Diff(before, after, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("round %d: residual change after round trip (-before +after):\n%s", round, diff)
			}
		}
	}
}

func isGroupOnly(cs []Choice, l1, l2 string) bool {
	for _, c := range cs {
		if c.Level1 == l1 && c.Level2 == l2 {
			return len(c.Level3) == 0
		}
	}
	return false
}

func containsPair(cs []Choice, l1, l2 string) bool {
	for _, c := range cs {
		if c.Level1 == l1 && c.Level2 == l2 {
			return true
		}
	}
	return false
}

// slicesEqualSet compares descriptor membership per pair, ignoring descriptor order.
func slicesEqualSet(a, b []Choice) bool {
	key := func(cs []Choice) map[string]map[string]bool {
		out := map[string]map[string]bool{}
		for _, c := range cs {
			k := c.Level1 + "\x00" + c.Level2
			out[k] = map[string]bool{}
			for _, d := range c.Level3 {
				out[k][d] = true
			}
		}
		return out
	}
	return cmp.Equal(key(a), key(b))
}
