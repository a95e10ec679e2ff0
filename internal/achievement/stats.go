package achievement

import "fmt"

// Stats is the cumulative snapshot achievements are evaluated against.
type Stats struct {
	TotalRecords      int     `json:"totalRecords"`
	CafeRecords       int     `json:"cafeRecords"`
	HomeCafeRecords   int     `json:"homeCafeRecords"`
	CurrentStreak     int     `json:"currentStreak"`
	LongestStreak     int     `json:"longestStreak"`
	UniqueFlavors     int     `json:"uniqueFlavors"`
	UniqueSensory     int     `json:"uniqueSensory"`
	UniqueOrigins     int     `json:"uniqueOrigins"`
	UniqueCafes       int     `json:"uniqueCafes"`
	UniqueRoasteries  int     `json:"uniqueRoasteries"`
	UniqueBrewMethods int     `json:"uniqueBrewMethods"`
	AverageRating     float64 `json:"averageRating"`
	PerfectScores     int     `json:"perfectScores"`
	SharedRecords     int     `json:"sharedRecords"`
	DetailedNotes     int     `json:"detailedNotes"`
	EarlyRecords      int     `json:"earlyRecords"`
	LateRecords       int     `json:"lateRecords"`
}

// Stat names one field of Stats. StatUnknown marks a criteria field the
// catalog referenced but this build does not know.
type Stat int

const (
	StatUnknown Stat = iota
	StatTotalRecords
	StatCafeRecords
	StatHomeCafeRecords
	StatCurrentStreak
	StatLongestStreak
	StatUniqueFlavors
	StatUniqueSensory
	StatUniqueOrigins
	StatUniqueCafes
	StatUniqueRoasteries
	StatUniqueBrewMethods
	StatAverageRating
	StatPerfectScores
	StatSharedRecords
	StatDetailedNotes
	StatEarlyRecords
	StatLateRecords

	statCount
)

var statNames = [statCount]string{
	StatUnknown:           "unknown",
	StatTotalRecords:      "totalRecords",
	StatCafeRecords:       "cafeRecords",
	StatHomeCafeRecords:   "homeCafeRecords",
	StatCurrentStreak:     "currentStreak",
	StatLongestStreak:     "longestStreak",
	StatUniqueFlavors:     "uniqueFlavors",
	StatUniqueSensory:     "uniqueSensory",
	StatUniqueOrigins:     "uniqueOrigins",
	StatUniqueCafes:       "uniqueCafes",
	StatUniqueRoasteries:  "uniqueRoasteries",
	StatUniqueBrewMethods: "uniqueBrewMethods",
	StatAverageRating:     "averageRating",
	StatPerfectScores:     "perfectScores",
	StatSharedRecords:     "sharedRecords",
	StatDetailedNotes:     "detailedNotes",
	StatEarlyRecords:      "earlyRecords",
	StatLateRecords:       "lateRecords",
}

// ParseStat maps a criteria field name to its Stat; unknown names give StatUnknown.
func ParseStat(name string) Stat {
	for i, n := range statNames {
		if i != int(StatUnknown) && n == name {
			return Stat(i)
		}
	}
	return StatUnknown
}

func (s Stat) String() string {
	if s < 0 || s >= statCount {
		return fmt.Sprintf("stat(%d)", int(s))
	}
	return statNames[s]
}

func (s Stat) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stat) UnmarshalText(b []byte) error {
	*s = ParseStat(string(b))
	return nil
}

// Resolve reads the stat from a snapshot. ok is false for StatUnknown.
func (s Stat) Resolve(st Stats) (v float64, ok bool) {
	switch s {
	case StatTotalRecords:
		return float64(st.TotalRecords), true
	case StatCafeRecords:
		return float64(st.CafeRecords), true
	case StatHomeCafeRecords:
		return float64(st.HomeCafeRecords), true
	case StatCurrentStreak:
		return float64(st.CurrentStreak), true
	case StatLongestStreak:
		return float64(st.LongestStreak), true
	case StatUniqueFlavors:
		return float64(st.UniqueFlavors), true
	case StatUniqueSensory:
		return float64(st.UniqueSensory), true
	case StatUniqueOrigins:
		return float64(st.UniqueOrigins), true
	case StatUniqueCafes:
		return float64(st.UniqueCafes), true
	case StatUniqueRoasteries:
		return float64(st.UniqueRoasteries), true
	case StatUniqueBrewMethods:
		return float64(st.UniqueBrewMethods), true
	case StatAverageRating:
		return st.AverageRating, true
	case StatPerfectScores:
		return float64(st.PerfectScores), true
	case StatSharedRecords:
		return float64(st.SharedRecords), true
	case StatDetailedNotes:
		return float64(st.DetailedNotes), true
	case StatEarlyRecords:
		return float64(st.EarlyRecords), true
	case StatLateRecords:
		return float64(st.LateRecords), true
	}
	return 0, false
}

// accepts reports whether a requirement of type t may reference this stat.
// Special achievements may reference any known stat.
func (s Stat) accepts(t RequirementType) bool {
	if s <= StatUnknown || s >= statCount {
		return false
	}
	switch t {
	case TypeSpecial:
		return true
	case TypeCount:
		switch s {
		case StatTotalRecords, StatCafeRecords, StatHomeCafeRecords,
			StatPerfectScores, StatDetailedNotes, StatEarlyRecords, StatLateRecords:
			return true
		}
	case TypeStreak:
		return s == StatCurrentStreak || s == StatLongestStreak
	case TypeUnique:
		switch s {
		case StatUniqueFlavors, StatUniqueSensory, StatUniqueOrigins,
			StatUniqueCafes, StatUniqueRoasteries, StatUniqueBrewMethods:
			return true
		}
	case TypeRating:
		return s == StatAverageRating
	case TypeSocial:
		return s == StatSharedRecords
	}
	return false
}
