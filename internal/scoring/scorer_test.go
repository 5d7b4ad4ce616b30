package scoring

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/roommate-matcher/internal/profile"
)

func newProfile(email string) *profile.Profile {
	return &profile.Profile{
		UserEmail:        email,
		Gender:           "male",
		HousingRegion:    "New York City",
		StartDate:        time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC),
		EndDate:          time.Date(2025, time.August, 22, 0, 0, 0, 0, time.UTC),
		DesiredRoommates: profile.TwoRoommates,
		MinBudget:        1000,
		MaxBudget:        2000,
		IsSubmitted:      true,
	}
}

func TestScoreBudgetOverlapScenario(t *testing.T) {
	a := newProfile("a@example.com")
	b := newProfile("b@example.com")
	b.MinBudget, b.MaxBudget = 1500, 2500

	result := NewScorer(nil).Score(a, b)
	require.NotNil(t, result)

	assert.Equal(t, "b@example.com", result.CandidateID)
	assert.InDelta(t, 33.333, result.Subscores.Budget, 0.01)
	assert.InDelta(t, 100, result.Subscores.Timing, 1e-9)
	assert.InDelta(t, 100, result.Subscores.Roommate, 1e-9)
	assert.InDelta(t, 50, result.Subscores.Preferences, 1e-9)
	assert.InDelta(t, 70, result.Subscores.Location, 1e-9)
	assert.InDelta(t, 66.333, result.Score, 0.01)
	assert.GreaterOrEqual(t, result.Score, 50.0)
	assert.Nil(t, result.Subscores.AdditionalInfo)
}

func TestScoreReturnsNil(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(a, b *profile.Profile)
	}{
		{name: "self match", mutate: func(a, b *profile.Profile) { b.UserEmail = "A@example.com" }},
		{name: "empty candidate id", mutate: func(a, b *profile.Profile) { b.UserEmail = " " }},
		{name: "candidate not submitted", mutate: func(a, b *profile.Profile) { b.IsSubmitted = false }},
		{name: "user not submitted", mutate: func(a, b *profile.Profile) { a.IsSubmitted = false }},
		{
			name: "pets deal breaker against must have",
			mutate: func(a, b *profile.Profile) {
				a.Preferences = []profile.Preference{{Item: "Okay with pets", Strength: profile.DealBreaker}}
				b.Preferences = []profile.Preference{{Item: "Okay with pets", Strength: profile.MustHave}}
			},
		},
		{
			name: "one against four plus roommates",
			mutate: func(a, b *profile.Profile) {
				a.DesiredRoommates = profile.OneRoommate
				b.DesiredRoommates = profile.FourPlusRoommates
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := newProfile("a@example.com")
			b := newProfile("b@example.com")
			tc.mutate(a, b)
			assert.Nil(t, NewScorer(nil).Score(a, b))
		})
	}
}

func TestScoreZeroWidthBudget(t *testing.T) {
	a := newProfile("a@example.com")
	b := newProfile("b@example.com")
	a.MinBudget, a.MaxBudget = 1500, 1500
	b.MinBudget, b.MaxBudget = 1500, 1500

	result := NewScorer(nil).Score(a, b)
	require.NotNil(t, result)
	assert.Equal(t, 100.0, result.Subscores.Budget)
}

func TestCompanyBonus(t *testing.T) {
	assert.InDelta(t, 64, ApplyCompanyBonus(40), 1e-9)
	assert.Equal(t, 100.0, ApplyCompanyBonus(100))

	a := newProfile("a@example.com")
	b := newProfile("b@example.com")
	base := NewScorer(nil).Score(a, b)
	require.NotNil(t, base)
	assert.False(t, base.CompanyBonus)

	a.Company = "Acme Corp"
	b.Company = "  acme corp "
	boosted := NewScorer(nil).Score(a, b)
	require.NotNil(t, boosted)
	assert.True(t, boosted.CompanyBonus)
	assert.InDelta(t, ApplyCompanyBonus(base.Score), boosted.Score, 1e-9)

	assert.False(t, SameCompany("", ""))
	assert.False(t, SameCompany("Acme", "Globex"))
}

func TestLocationScore(t *testing.T) {
	assert.InDelta(t, 0.7, LocationScore(nil, []string{"Brooklyn"}), 1e-9)
	assert.InDelta(t, 0.85, LocationScore([]string{"Brooklyn", "Queens"}, []string{"brooklyn"}), 1e-9)
	assert.InDelta(t, 1.0, LocationScore([]string{"Brooklyn"}, []string{"Brooklyn"}), 1e-9)
	assert.InDelta(t, 0.7, LocationScore([]string{"Brooklyn"}, []string{"Queens"}), 1e-9)
}

func TestBudgetScore(t *testing.T) {
	assert.InDelta(t, 1.0/3, BudgetScore(1000, 2000, 1500, 2500), 1e-9)
	assert.Equal(t, 1.0, BudgetScore(1500, 1500, 1500, 1500))
	assert.Equal(t, 0.0, BudgetScore(1000, 2000, 2000, 2500))
	assert.Equal(t, 0.0, BudgetScore(1000, 1200, 1300, 1500))
	assert.InDelta(t, 0.5, BudgetScore(1000, 2000, 1000, 1500), 1e-9)
}

func TestTimingScore(t *testing.T) {
	assert.InDelta(t, 0.75, TimingScore(0.75), 1e-9)
	assert.InDelta(t, 0.95, TimingScore(0.8), 1e-9)
	assert.Equal(t, 1.0, TimingScore(1))
}

func TestRoommateScore(t *testing.T) {
	assert.Equal(t, 1.0, RoommateScore(profile.TwoRoommates, profile.TwoRoommates))
	assert.Equal(t, 0.8, RoommateScore(profile.TwoRoommates, profile.ThreeRoommates))
	assert.Equal(t, 0.6, RoommateScore(profile.OneRoommate, profile.ThreeRoommates))
	assert.Equal(t, 0.0, RoommateScore(profile.OneRoommate, profile.FourPlusRoommates))
}

func TestPreferenceScore(t *testing.T) {
	t.Parallel()

	pref := func(item string, s profile.Strength) []profile.Preference {
		return []profile.Preference{{Item: item, Strength: s}}
	}

	cases := []struct {
		name string
		a, b []profile.Preference
		want float64
	}{
		{name: "nothing shared", a: pref("Smoking", profile.Prefer), b: pref("Drinking", profile.Prefer), want: 0.5},
		{name: "both prefer", a: pref("Smoking", profile.Prefer), b: pref("Smoking", profile.Prefer), want: 0.625},
		{name: "both must have", a: pref("Smoking", profile.MustHave), b: pref("Smoking", profile.MustHave), want: 1},
		{name: "both deal breaker", a: pref("Smoking", profile.DealBreaker), b: pref("Smoking", profile.DealBreaker), want: 1},
		{name: "prefer against prefer not", a: pref("Smoking", profile.Prefer), b: pref("Smoking", profile.PreferNot), want: 0.375},
		{name: "neutral against must have", a: pref("Smoking", profile.Neutral), b: pref("Smoking", profile.MustHave), want: 0.5},
		{name: "must have against prefer not", a: pref("Smoking", profile.MustHave), b: pref("Smoking", profile.PreferNot), want: 0},
		{name: "hard clash floors at zero", a: pref("Smoking", profile.MustHave), b: pref("Smoking", profile.DealBreaker), want: 0},
		{
			name: "mixed items",
			a:    []profile.Preference{{Item: "Smoking", Strength: profile.MustHave}, {Item: "Drinking", Strength: profile.Prefer}},
			b:    []profile.Preference{{Item: "Smoking", Strength: profile.Prefer}, {Item: "Drinking", Strength: profile.PreferNot}},
			want: 0.5,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tc.want, PreferenceScore(tc.a, tc.b), 1e-9)
			assert.InDelta(t, tc.want, PreferenceScore(tc.b, tc.a), 1e-9)
		})
	}
}

func TestScoreBoundedAndSymmetric(t *testing.T) {
	scorer := NewScorer(nil)
	strengths := []profile.Strength{profile.DealBreaker, profile.PreferNot, profile.Neutral, profile.Prefer, profile.MustHave}
	counts := []profile.RoommateCount{profile.OneRoommate, profile.TwoRoommates, profile.ThreeRoommates, profile.FourPlusRoommates}

	for i, sa := range strengths {
		for j, sb := range strengths {
			a := newProfile("a@example.com")
			b := newProfile("b@example.com")
			a.Preferences = []profile.Preference{{Item: "Quiet hours", Strength: sa}}
			b.Preferences = []profile.Preference{{Item: "Quiet hours", Strength: sb}}
			a.DesiredRoommates = counts[i%len(counts)]
			b.DesiredRoommates = counts[j%len(counts)]
			a.HousingCities = []string{"Brooklyn", fmt.Sprintf("City %d", i)}
			b.HousingCities = []string{"Brooklyn"}
			b.MinBudget = 1000 + j*100

			forward := scorer.Score(a, b)
			backward := scorer.Score(b, a)
			if forward == nil || backward == nil {
				assert.Nil(t, forward)
				assert.Nil(t, backward)
				continue
			}
			assert.GreaterOrEqual(t, forward.Score, 0.0)
			assert.LessOrEqual(t, forward.Score, 100.0)
			assert.InDelta(t, forward.Score, backward.Score, 1e-9)
		}
	}
}

func TestScoreSymmetricWithRepeatedItems(t *testing.T) {
	scorer := NewScorer(nil)
	rng := rand.New(rand.NewPCG(3, 5))
	items := []string{"Okay with pets", "Smoking", "Quiet hours", "Night owl"}
	strengths := []profile.Strength{profile.DealBreaker, profile.PreferNot, profile.Neutral, profile.Prefer, profile.MustHave}

	random := func() []profile.Preference {
		prefs := make([]profile.Preference, rng.IntN(6))
		for idx := range prefs {
			prefs[idx] = profile.Preference{Item: items[rng.IntN(len(items))], Strength: strengths[rng.IntN(len(strengths))]}
		}
		return prefs
	}

	for i := 0; i < 5000; i++ {
		a := newProfile("a@example.com")
		b := newProfile("b@example.com")
		a.Preferences, b.Preferences = random(), random()

		forward, backward := scorer.Score(a, b), scorer.Score(b, a)
		if forward == nil || backward == nil {
			require.Nil(t, forward, "a=%v b=%v", a.Preferences, b.Preferences)
			require.Nil(t, backward, "a=%v b=%v", a.Preferences, b.Preferences)
			continue
		}
		require.InDelta(t, forward.Score, backward.Score, 1e-9, "a=%v b=%v", a.Preferences, b.Preferences)
	}
}

func TestPreferenceScoreLastAnswerWins(t *testing.T) {
	repeated := []profile.Preference{
		{Item: "Smoking", Strength: profile.DealBreaker},
		{Item: "Smoking", Strength: profile.Prefer},
	}
	single := []profile.Preference{{Item: "Smoking", Strength: profile.Prefer}}

	assert.InDelta(t, 0.625, PreferenceScore(repeated, single), 1e-9)
	assert.InDelta(t, 0.625, PreferenceScore(single, repeated), 1e-9)
}

func TestCloneIsDeep(t *testing.T) {
	info := 40.0
	notes := -2.0
	original := &CompatibilityScore{CandidateID: "b", Score: 70, Subscores: Subscores{AdditionalInfo: &info}, NotesScore: &notes}

	clone := original.Clone()
	*clone.Subscores.AdditionalInfo = 90
	*clone.NotesScore = 5

	assert.Equal(t, 40.0, *original.Subscores.AdditionalInfo)
	assert.Equal(t, -2.0, *original.NotesScore)
	assert.Nil(t, (*CompatibilityScore)(nil).Clone())
}
