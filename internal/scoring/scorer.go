// Package scoring computes the deterministic compatibility score of two profiles.
package scoring

import (
	"maps"
	"math"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/roommate-matcher/internal/filtering"
	"github.com/spigell/roommate-matcher/internal/profile"
)

// Factor weights, in percent of the final score.
const (
	WeightLocation    = 30
	WeightBudget      = 25
	WeightTiming      = 25
	WeightPreferences = 20
)

const (
	// PreferenceShare and RoommateShare split the preferences weight.
	PreferenceShare = 0.8
	RoommateShare   = 0.2

	// CompanyBonusRate is the share of the remaining distance to 100 granted to coworkers.
	CompanyBonusRate = 0.4

	locationBase    = 0.7
	locationShared  = 0.3
	hardClashAdjust = -12
)

var roommateScores = []float64{1.0, 0.8, 0.6}

// Subscores holds the per-factor results as percentages.
type Subscores struct {
	Location    float64 `json:"location"`
	Budget      float64 `json:"budget"`
	Timing      float64 `json:"timing"`
	Roommate    float64 `json:"roommate"`
	Preferences float64 `json:"preferences"`
	// AdditionalInfo is the notes valence mapped onto 0-100, present only after notes analysis.
	AdditionalInfo *float64 `json:"additionalInfo,omitempty"`
}

// CompatibilityScore is the outcome of scoring a candidate for a requester.
type CompatibilityScore struct {
	CandidateID  string    `json:"candidateId"`
	Score        float64   `json:"score"`
	Subscores    Subscores `json:"subscores"`
	Explanation  string    `json:"explanation,omitempty"`
	NotesScore   *float64  `json:"notesScore,omitempty"`
	CompanyBonus bool      `json:"companyBonus,omitempty"`
}

// Clone returns a deep copy of the score.
func (s *CompatibilityScore) Clone() *CompatibilityScore {
	if s == nil {
		return nil
	}
	out := *s
	if s.Subscores.AdditionalInfo != nil {
		value := *s.Subscores.AdditionalInfo
		out.Subscores.AdditionalInfo = &value
	}
	if s.NotesScore != nil {
		value := *s.NotesScore
		out.NotesScore = &value
	}
	return &out
}

// CombinedPreference returns the preferences/roommate blend in percent.
func (s Subscores) CombinedPreference() float64 {
	return s.Preferences*PreferenceShare + s.Roommate*RoommateShare
}

// Scorer computes compatibility scores.
type Scorer struct {
	logger *zap.Logger
}

func NewScorer(logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{logger: logger}
}

// Score rates candidate for user. A nil result means the pair is not compatible.
func (s *Scorer) Score(user, candidate *profile.Profile) *CompatibilityScore {
	if user == nil || candidate == nil {
		return nil
	}
	if strings.TrimSpace(candidate.UserEmail) == "" {
		return nil
	}
	if profile.SameUser(user.UserEmail, candidate.UserEmail) {
		return nil
	}
	if !user.IsSubmitted || !candidate.IsSubmitted {
		return nil
	}
	if !filtering.Passes(user, candidate) {
		s.logger.Debug("constraints failed",
			zap.String("requester", user.UserEmail),
			zap.String("candidate", candidate.UserEmail),
		)
		return nil
	}

	location := LocationScore(user.HousingCities, candidate.HousingCities)
	budget := BudgetScore(user.MinBudget, user.MaxBudget, candidate.MinBudget, candidate.MaxBudget)
	fraction, _ := filtering.TimingOverlap(user, candidate)
	timing := TimingScore(fraction)
	roommate := RoommateScore(user.DesiredRoommates, candidate.DesiredRoommates)
	preferences := PreferenceScore(user.Preferences, candidate.Preferences)
	combined := preferences*PreferenceShare + roommate*RoommateShare

	total := location*WeightLocation + budget*WeightBudget + timing*WeightTiming + combined*WeightPreferences
	total = math.Min(total, 100)

	result := &CompatibilityScore{
		CandidateID: candidate.UserEmail,
		Subscores: Subscores{
			Location:    location * 100,
			Budget:      budget * 100,
			Timing:      timing * 100,
			Roommate:    roommate * 100,
			Preferences: preferences * 100,
		},
	}

	if SameCompany(user.Company, candidate.Company) {
		total = ApplyCompanyBonus(total)
		result.CompanyBonus = true
	}
	result.Score = total

	s.logger.Debug("scored candidate",
		zap.String("requester", user.UserEmail),
		zap.String("candidate", candidate.UserEmail),
		zap.Float64("score", total),
	)

	return result
}

// LocationScore is 0.7 plus up to 0.3 for preferred cities in common.
func LocationScore(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return locationBase
	}

	theirs := make(map[string]struct{}, len(b))
	for _, city := range b {
		theirs[strings.ToLower(strings.TrimSpace(city))] = struct{}{}
	}
	mine := make(map[string]struct{}, len(a))
	for _, city := range a {
		mine[strings.ToLower(strings.TrimSpace(city))] = struct{}{}
	}

	shared := 0
	for city := range mine {
		if _, ok := theirs[city]; ok {
			shared++
		}
	}

	longest := max(len(mine), len(theirs))
	return locationBase + locationShared*float64(shared)/float64(longest)
}

// BudgetScore is the overlap width of two ranges divided by the width of their union.
func BudgetScore(aMin, aMax, bMin, bMax int) float64 {
	low, high := max(aMin, bMin), min(aMax, bMax)
	if low > high {
		return 0
	}
	union := max(aMax, bMax) - min(aMin, bMin)
	if union == 0 {
		return 1
	}
	return float64(high-low) / float64(union)
}

// TimingScore rescales an overlap fraction in [0.75, 1] onto [0.75, 1] with a steeper slope.
func TimingScore(fraction float64) float64 {
	return math.Min(1, (fraction-filtering.MinTimingOverlap)*4+0.75)
}

// RoommateScore decreases with the distance between the desired categories.
func RoommateScore(a, b profile.RoommateCount) float64 {
	ai, bi := a.Index(), b.Index()
	if ai < 0 || bi < 0 {
		return 0
	}
	distance := ai - bi
	if distance < 0 {
		distance = -distance
	}
	if distance >= len(roommateScores) {
		return 0
	}
	return roommateScores[distance]
}

// PreferenceScore compares the items both profiles rated, the last answer per item counting.
// It returns 0.5 when nothing is shared.
func PreferenceScore(a, b []profile.Preference) float64 {
	ours, theirs := profile.IndexPreferences(a), profile.IndexPreferences(b)

	var total, maxPossible float64
	for _, item := range slices.Sorted(maps.Keys(ours)) {
		other, ok := theirs[item]
		if !ok {
			continue
		}
		strength := ours[item]

		mine, their := strength.Valence(), other.Valence()
		if (mine >= 0 && their >= 0) || (mine <= 0 && their <= 0) {
			total += math.Min(math.Abs(mine), math.Abs(their))
		} else {
			total += mine * their
		}
		if filtering.IsHardClash(strength, other) {
			total += hardClashAdjust
		}
		maxPossible += profile.MaxValence
	}

	if maxPossible == 0 {
		return 0.5
	}
	return clamp((total+maxPossible)/(2*maxPossible), 0, 1)
}

// SameCompany matches non-empty employers ignoring case and surrounding spaces.
func SameCompany(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

// ApplyCompanyBonus closes part of the gap to 100.
func ApplyCompanyBonus(score float64) float64 {
	return math.Min(100, score+(100-score)*CompanyBonusRate)
}

func clamp(v, low, high float64) float64 {
	return math.Max(low, math.Min(high, v))
}
