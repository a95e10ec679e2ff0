package tasting

import (
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"brewlog/internal/achievement"
	"brewlog/internal/draft"
)

const (
	earlyBefore      = 7  // records before 07:00 count as early
	lateFrom         = 21 // records from 21:00 count as late
	detailedNotesMin = 50 // runes
	perfectRating    = 5
)

// ComputeStats folds a user's records into the snapshot achievements are
// evaluated against. Days and hours are taken in loc; a nil loc means UTC.
// The current streak stays alive until a full day without a record passes.
func ComputeStats(records []Record, now time.Time, loc *time.Location) achievement.Stats {
	if loc == nil {
		loc = time.UTC
	}

	var st achievement.Stats
	flavors := map[string]struct{}{}
	sensory := map[string]struct{}{}
	origins := map[string]struct{}{}
	cafes := map[string]struct{}{}
	roasteries := map[string]struct{}{}
	methods := map[string]struct{}{}
	days := map[int]struct{}{}

	ratingSum, rated := 0, 0
	for _, r := range records {
		st.TotalRecords++
		switch draft.Mode(r.Mode) {
		case draft.ModeCafe:
			st.CafeRecords++
			add(cafes, r.CafeName)
		case draft.ModeHomeCafe:
			st.HomeCafeRecords++
		}
		for _, f := range r.Flavors {
			add(flavors, f)
		}
		for _, s := range r.SensoryExpressions {
			add(sensory, s)
		}
		add(origins, r.Origin)
		add(roasteries, r.Roastery)
		add(methods, r.BrewMethod)

		if r.Rating > 0 {
			ratingSum += r.Rating
			rated++
		}
		if r.Rating == perfectRating {
			st.PerfectScores++
		}
		if r.Shared {
			st.SharedRecords++
		}
		if utf8.RuneCountInString(strings.TrimSpace(r.Notes)) >= detailedNotesMin {
			st.DetailedNotes++
		}

		t := r.TastedAt.In(loc)
		switch h := t.Hour(); {
		case h < earlyBefore:
			st.EarlyRecords++
		case h >= lateFrom:
			st.LateRecords++
		}
		days[dayNumber(t)] = struct{}{}
	}

	st.UniqueFlavors = len(flavors)
	st.UniqueSensory = len(sensory)
	st.UniqueOrigins = len(origins)
	st.UniqueCafes = len(cafes)
	st.UniqueRoasteries = len(roasteries)
	st.UniqueBrewMethods = len(methods)
	if rated > 0 {
		st.AverageRating = math.Round(float64(ratingSum)/float64(rated)*100) / 100
	}
	st.CurrentStreak, st.LongestStreak = streaks(days, dayNumber(now.In(loc)))
	return st
}

func streaks(days map[int]struct{}, today int) (current, longest int) {
	if len(days) == 0 {
		return 0, 0
	}
	sorted := make([]int, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	slices.Sort(sorted)

	run := 0
	for i, d := range sorted {
		if i > 0 && d == sorted[i-1]+1 {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}

	last := sorted[len(sorted)-1]
	if last == today || last == today-1 {
		current = run
	}
	return current, longest
}

// dayNumber counts calendar days in t's location, so DST shifts do not
// break a streak.
func dayNumber(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

func add(set map[string]struct{}, v string) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return
	}
	set[v] = struct{}{}
}
