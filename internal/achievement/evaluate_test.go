package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func def(id string, typ RequirementType, target float64, field Stat) Definition {
	return Definition{
		ID:          id,
		Category:    CategoryMilestone,
		Points:      10,
		Requirement: Requirement{Type: typ, Target: target, Field: field},
	}
}

func TestFirstRecordScenario(t *testing.T) {
	defs := []Definition{def("first_record", TypeCount, 1, StatTotalRecords)}

	res := Evaluate(defs, Stats{TotalRecords: 0}, nil)
	require.Len(t, res.Progress, 1)
	p := res.Progress[0]
	assert.False(t, p.CanUnlock)
	assert.False(t, p.IsUnlocked)
	assert.Equal(t, 0.0, p.Percentage)
	assert.Empty(t, res.NewlyUnlocked)

	res = Evaluate(defs, Stats{TotalRecords: 1}, Unlocked{})
	p = res.Progress[0]
	assert.True(t, p.CanUnlock)
	assert.True(t, p.IsUnlocked)
	assert.Equal(t, 100.0, p.Percentage)
	require.Len(t, res.NewlyUnlocked, 1)
	assert.Equal(t, "first_record", res.NewlyUnlocked[0].AchievementID)

	// once committed it is no longer newly unlocked
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	res = Evaluate(defs, Stats{TotalRecords: 2}, Unlocked{"first_record": at})
	p = res.Progress[0]
	assert.False(t, p.CanUnlock)
	assert.True(t, p.IsUnlocked)
	require.NotNil(t, p.UnlockedAt)
	assert.Equal(t, at, *p.UnlockedAt)
	assert.Empty(t, res.NewlyUnlocked)
}

func TestUnlockIsMonotonic(t *testing.T) {
	defs := []Definition{def("rating_avg_4", TypeRating, 4, StatAverageRating)}
	at := time.Now()

	res := Evaluate(defs, Stats{AverageRating: 3.2}, Unlocked{"rating_avg_4": at})
	p := res.Progress[0]
	assert.True(t, p.IsUnlocked)
	assert.False(t, p.CanUnlock)
	assert.InDelta(t, 80.0, p.Percentage, 1e-9)
}

func TestPercentageClamped(t *testing.T) {
	defs := []Definition{
		def("records_100", TypeCount, 100, StatTotalRecords),
		def("streak_7", TypeStreak, 7, StatCurrentStreak),
	}
	for _, st := range []Stats{
		{TotalRecords: 150, CurrentStreak: 3},
		{TotalRecords: 0, CurrentStreak: 70},
		{TotalRecords: -5, CurrentStreak: -1},
		{TotalRecords: 99, CurrentStreak: 7},
	} {
		for _, p := range Evaluate(defs, st, nil).Progress {
			assert.GreaterOrEqual(t, p.Percentage, 0.0)
			assert.LessOrEqual(t, p.Percentage, 100.0)
		}
	}

	p := Evaluate(defs[:1], Stats{TotalRecords: 150}, nil).Progress[0]
	assert.Equal(t, 100.0, p.Percentage)
	assert.Equal(t, 150.0, p.Current)
}

func TestMalformedDefinitionsDegrade(t *testing.T) {
	defs := []Definition{
		def("bad_type", RequirementType("karma"), 1, StatTotalRecords),
		def("bad_field", TypeCount, 1, StatUnknown),
		def("mismatch", TypeStreak, 1, StatTotalRecords),
		def("zero_target", TypeCount, 0, StatTotalRecords),
		def("ok", TypeCount, 1, StatTotalRecords),
	}

	res := Evaluate(defs, Stats{TotalRecords: 10, CurrentStreak: 10}, Unlocked{"mismatch": time.Now()})
	require.Len(t, res.Progress, 5)

	for _, p := range res.Progress[:4] {
		assert.True(t, p.Malformed, p.AchievementID)
		assert.Equal(t, 0.0, p.Current, p.AchievementID)
		assert.Equal(t, 0.0, p.Percentage, p.AchievementID)
		assert.False(t, p.CanUnlock, p.AchievementID)
	}
	// malformed but already committed stays unlocked
	assert.True(t, res.Progress[2].IsUnlocked)
	assert.False(t, res.Progress[0].IsUnlocked)

	require.Len(t, res.NewlyUnlocked, 1)
	assert.Equal(t, "ok", res.NewlyUnlocked[0].AchievementID)
}

func TestEveryStatResolves(t *testing.T) {
	for s := StatUnknown + 1; s < statCount; s++ {
		_, ok := s.Resolve(Stats{})
		assert.True(t, ok, s.String())
		assert.Equal(t, s, ParseStat(s.String()))
	}
	_, ok := StatUnknown.Resolve(Stats{})
	assert.False(t, ok)
	assert.Equal(t, StatUnknown, ParseStat("totalLikes"))
	assert.Equal(t, StatUnknown, ParseStat("unknown"))
}

func TestEvaluateDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(c.Achievements), 25)
	assert.LessOrEqual(t, len(c.Achievements), 30)

	res := Evaluate(c.Achievements, Stats{}, nil)
	for _, p := range res.Progress {
		assert.False(t, p.Malformed, "catalog entry %s is malformed", p.AchievementID)
	}

	d, ok := c.Find("first_record")
	require.True(t, ok)
	assert.Equal(t, StatTotalRecords, d.Requirement.Field)
	assert.Equal(t, TypeCount, d.Requirement.Type)
	assert.Equal(t, Common, d.Rarity)
}

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte(`
version: 1
achievements:
  - id: a
    category: special
    rarity: epic
    requirement: {type: special, target: 2, criteria: {field: likesReceived}}
`))
	require.NoError(t, err)
	require.Len(t, c.Achievements, 1)
	assert.Equal(t, StatUnknown, c.Achievements[0].Requirement.Field)
	assert.Equal(t, Epic, c.Achievements[0].Rarity)

	_, err = ParseCatalog([]byte(`
achievements:
  - {id: a, category: special}
  - {id: a, category: special}
`))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte(`achievements: [{id: a, category: gossip}]`))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte(`achievements: [{id: a, category: special, rarity: mythic}]`))
	assert.Error(t, err)
}

func TestRarityOrder(t *testing.T) {
	assert.Less(t, Common, Uncommon)
	assert.Less(t, Uncommon, Rare)
	assert.Less(t, Rare, Epic)
	assert.Less(t, Epic, Legendary)

	var r Rarity
	require.NoError(t, r.UnmarshalText([]byte("Legendary")))
	assert.Equal(t, Legendary, r)
	b, _ := r.MarshalText()
	assert.Equal(t, "legendary", string(b))
}
