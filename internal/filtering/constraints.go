package filtering

import (
	"strings"
	"time"

	"github.com/spigell/roommate-matcher/internal/profile"
)

// MinTimingOverlap is the share of the longer stay two profiles must have in common.
const MinTimingOverlap = 0.75

// ConstraintReport tells which hard constraints a pair satisfies.
type ConstraintReport struct {
	Gender      bool `json:"gender"`
	Region      bool `json:"region"`
	Timing      bool `json:"timing"`
	Budget      bool `json:"budget"`
	Roommates   bool `json:"roommates"`
	Preferences bool `json:"preferences"`
	// TimingOverlap is the overlap of the two stays as a percentage of the longer one.
	TimingOverlap float64 `json:"timingOverlap"`
}

// Passed reports whether every constraint holds.
func (r ConstraintReport) Passed() bool {
	return r.Gender && r.Region && r.Timing && r.Budget && r.Roommates && r.Preferences
}

// Failed lists the names of violated constraints.
func (r ConstraintReport) Failed() []string {
	var failed []string
	checks := []struct {
		name string
		ok   bool
	}{
		{"gender", r.Gender},
		{"region", r.Region},
		{"timing", r.Timing},
		{"budget", r.Budget},
		{"roommates", r.Roommates},
		{"preferences", r.Preferences},
	}
	for _, check := range checks {
		if !check.ok {
			failed = append(failed, check.name)
		}
	}
	return failed
}

// Passes reports whether two profiles can be matched at all.
func Passes(user, candidate *profile.Profile) bool {
	if user == nil || candidate == nil {
		return false
	}
	return Detail(user, candidate).Passed()
}

// Detail evaluates every hard constraint for the pair. The result does not depend on argument order.
func Detail(user, candidate *profile.Profile) ConstraintReport {
	fraction, _ := TimingOverlap(user, candidate)

	return ConstraintReport{
		Gender:        genderCompatible(user, candidate),
		Region:        user.HousingRegion == candidate.HousingRegion,
		Timing:        fraction >= MinTimingOverlap,
		Budget:        budgetsIntersect(user, candidate),
		Roommates:     roommatesCompatible(user.DesiredRoommates, candidate.DesiredRoommates),
		Preferences:   !PreferencesConflict(user, candidate),
		TimingOverlap: fraction * 100,
	}
}

// TimingOverlap returns the shared part of both stays divided by the longer stay.
// Stays are counted in calendar days including both ends.
func TimingOverlap(a, b *profile.Profile) (float64, bool) {
	aStart, aEnd := day(a.StartDate), day(a.EndDate)
	bStart, bEnd := day(b.StartDate), day(b.EndDate)

	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if end.Before(start) {
		return 0, false
	}

	overlap := days(start, end)
	longest := days(aStart, aEnd)
	if other := days(bStart, bEnd); other > longest {
		longest = other
	}
	if longest <= 0 {
		return 0, false
	}

	fraction := float64(overlap) / float64(longest)
	if fraction > 1 {
		fraction = 1
	}
	return fraction, true
}

// PreferencesConflict reports a shared item that one side must have and the other refuses.
func PreferencesConflict(a, b *profile.Profile) bool {
	theirs := b.PreferenceMap()
	for item, mine := range a.PreferenceMap() {
		other, ok := theirs[item]
		if ok && IsHardClash(mine, other) {
			return true
		}
	}
	return false
}

// IsHardClash is true for a must have against a deal breaker.
func IsHardClash(a, b profile.Strength) bool {
	return (a == profile.MustHave && b == profile.DealBreaker) ||
		(a == profile.DealBreaker && b == profile.MustHave)
}

func genderCompatible(a, b *profile.Profile) bool {
	if strings.EqualFold(strings.TrimSpace(a.Gender), strings.TrimSpace(b.Gender)) {
		return true
	}
	return a.RoomWithDifferentGender && b.RoomWithDifferentGender
}

// Ranges touching at a boundary still intersect.
func budgetsIntersect(a, b *profile.Profile) bool {
	low := max(a.MinBudget, b.MinBudget)
	high := min(a.MaxBudget, b.MaxBudget)
	return low <= high
}

func roommatesCompatible(a, b profile.RoommateCount) bool {
	extremes := (a == profile.OneRoommate && b == profile.FourPlusRoommates) ||
		(a == profile.FourPlusRoommates && b == profile.OneRoommate)
	return !extremes
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func days(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}
