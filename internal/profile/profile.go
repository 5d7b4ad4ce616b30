package profile

import (
	"strings"
	"time"
)

// Strength expresses how strongly a user feels about a lifestyle preference item.
type Strength string

const (
	DealBreaker Strength = "deal breaker"
	PreferNot   Strength = "prefer not"
	Neutral     Strength = "neutral"
	Prefer      Strength = "prefer"
	MustHave    Strength = "must have"
)

var strengthValence = map[Strength]float64{
	DealBreaker: -4,
	PreferNot:   -1,
	Neutral:     0,
	Prefer:      1,
	MustHave:    4,
}

// MaxValence is the largest absolute valence a preference strength can carry.
const MaxValence = 4

// Valence returns the signed weight of the strength. Unknown values are neutral.
func (s Strength) Valence() float64 {
	return strengthValence[s]
}

func (s Strength) Valid() bool {
	_, ok := strengthValence[s]
	return ok
}

// RoommateCount is the desired number of roommates, an ordered category.
type RoommateCount string

const (
	OneRoommate       RoommateCount = "1"
	TwoRoommates      RoommateCount = "2"
	ThreeRoommates    RoommateCount = "3"
	FourPlusRoommates RoommateCount = "4+"
)

var roommateOrder = []RoommateCount{OneRoommate, TwoRoommates, ThreeRoommates, FourPlusRoommates}

// Index returns the position of the category in the ordered scale, or -1 when unknown.
func (c RoommateCount) Index() int {
	for idx, value := range roommateOrder {
		if value == c {
			return idx
		}
	}
	return -1
}

// Regions lists the housing regions a profile may target.
var Regions = []string{
	"Bay Area",
	"Seattle Area",
	"New York City",
	"Los Angeles",
	"San Diego",
	"Boston",
	"Chicago",
	"Austin",
	"Washington DC",
	"Denver",
	"Atlanta",
	"Other",
}

// PreferenceItems lists the lifestyle items a survey can rate.
var PreferenceItems = []string{
	"Okay with pets",
	"Smoking",
	"Drinking",
	"Cannabis use",
	"Guests overnight",
	"Hosting parties",
	"Quiet hours",
	"Shared groceries",
	"Cleanliness",
	"Early riser",
	"Night owl",
	"Cooking at home",
	"Working from home",
	"LGBTQ+ friendly",
}

// Preference is a single rated lifestyle item.
type Preference struct {
	Item     string   `json:"item" yaml:"item" validate:"required,prefitem"`
	Strength Strength `json:"strength" yaml:"strength" validate:"required,strength"`
}

// Profile is the survey answer set of one user looking for housing.
type Profile struct {
	UserEmail               string        `json:"userEmail" yaml:"userEmail" validate:"required,email"`
	Name                    string        `json:"name,omitempty" yaml:"name,omitempty"`
	Gender                  string        `json:"gender" yaml:"gender" validate:"required"`
	RoomWithDifferentGender bool          `json:"roomWithDifferentGender" yaml:"roomWithDifferentGender"`
	HousingRegion           string        `json:"housingRegion" yaml:"housingRegion" validate:"required,region"`
	HousingCities           []string      `json:"housingCities,omitempty" yaml:"housingCities,omitempty" validate:"dive,required"`
	StartDate               time.Time     `json:"startDate" yaml:"startDate" validate:"required"`
	EndDate                 time.Time     `json:"endDate" yaml:"endDate" validate:"required,gtefield=StartDate"`
	DesiredRoommates        RoommateCount `json:"desiredRoommates" yaml:"desiredRoommates" validate:"required,roommates"`
	MinBudget               int           `json:"minBudget" yaml:"minBudget" validate:"gte=0"`
	MaxBudget               int           `json:"maxBudget" yaml:"maxBudget" validate:"gtefield=MinBudget"`
	Preferences             []Preference  `json:"preferences,omitempty" yaml:"preferences,omitempty" validate:"dive"`
	AdditionalNotes         string        `json:"additionalNotes,omitempty" yaml:"additionalNotes,omitempty"`
	Company                 string        `json:"company,omitempty" yaml:"company,omitempty"`
	IsSubmitted             bool          `json:"isSubmitted" yaml:"isSubmitted"`
	IsDraft                 bool          `json:"isDraft" yaml:"isDraft"`
	IsTest                  bool          `json:"isTest,omitempty" yaml:"isTest,omitempty"`
}

// ID returns the identifier of the profile owner.
func (p *Profile) ID() string {
	if p == nil {
		return ""
	}
	return p.UserEmail
}

// Eligible reports whether the profile may take part in matching.
func (p *Profile) Eligible() bool {
	return p != nil && p.IsSubmitted && !p.IsDraft
}

// PreferenceMap indexes preferences by item. A later answer on the same item wins.
func (p *Profile) PreferenceMap() map[string]Strength {
	return IndexPreferences(p.Preferences)
}

// IndexPreferences maps items to strengths, keeping the last answer per item like Normalize does.
func IndexPreferences(prefs []Preference) map[string]Strength {
	result := make(map[string]Strength, len(prefs))
	for _, pref := range prefs {
		result[pref.Item] = pref.Strength
	}
	return result
}

// SameUser compares identifiers the way the repository stores them.
func SameUser(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
