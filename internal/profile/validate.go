package profile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spigell/roommate-matcher/internal/matcherr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	rules := map[string]validator.Func{
		"region": func(fl validator.FieldLevel) bool {
			return canonical(Regions, fl.Field().String()) != ""
		},
		"prefitem": func(fl validator.FieldLevel) bool {
			return canonical(PreferenceItems, fl.Field().String()) != ""
		},
		"strength": func(fl validator.FieldLevel) bool {
			return Strength(fl.Field().String()).Valid()
		},
		"roommates": func(fl validator.FieldLevel) bool {
			return RoommateCount(fl.Field().String()).Index() >= 0
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register %s validation: %v", tag, err))
		}
	}

	return v
}

// Normalize resolves the representation of a profile in place: trimmed and lower-cased
// identifiers, canonical region and item names, de-duplicated cities and preferences.
func Normalize(p *Profile) {
	if p == nil {
		return
	}

	p.UserEmail = normalizeEmail(p.UserEmail)
	p.Gender = strings.ToLower(strings.TrimSpace(p.Gender))
	p.Company = strings.TrimSpace(p.Company)
	p.DesiredRoommates = RoommateCount(strings.TrimSpace(string(p.DesiredRoommates)))

	if region := canonical(Regions, p.HousingRegion); region != "" {
		p.HousingRegion = region
	} else {
		p.HousingRegion = strings.TrimSpace(p.HousingRegion)
	}

	seen := make(map[string]struct{}, len(p.HousingCities))
	cities := make([]string, 0, len(p.HousingCities))
	for _, city := range p.HousingCities {
		city = strings.TrimSpace(city)
		key := strings.ToLower(city)
		if city == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cities = append(cities, city)
	}
	p.HousingCities = cities

	// Later answers on the same item win.
	index := make(map[string]int, len(p.Preferences))
	prefs := make([]Preference, 0, len(p.Preferences))
	for _, pref := range p.Preferences {
		item := canonical(PreferenceItems, pref.Item)
		if item == "" {
			item = strings.TrimSpace(pref.Item)
		}
		pref.Item = item
		pref.Strength = Strength(strings.ToLower(strings.TrimSpace(string(pref.Strength))))
		if idx, ok := index[item]; ok {
			prefs[idx] = pref
			continue
		}
		index[item] = len(prefs)
		prefs = append(prefs, pref)
	}
	p.Preferences = prefs
}

// Validate checks the profile against the survey rules and returns an *matcherr.InvalidProfileError on failure.
func Validate(p *Profile) error {
	if p == nil {
		return &matcherr.InvalidProfileError{Reason: "profile is nil"}
	}

	if err := validate.Struct(p); err != nil {
		return &matcherr.InvalidProfileError{ID: p.UserEmail, Reason: describe(err)}
	}
	return nil
}

// Prepare normalizes and validates a profile loaded from storage.
func Prepare(p *Profile) error {
	Normalize(p)
	return Validate(p)
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %q (%s), got '%v'", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %q, got '%v'", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return strings.Join(parts, "; ")
}

func canonical(values []string, input string) string {
	input = strings.TrimSpace(input)
	for _, value := range values {
		if strings.EqualFold(value, input) {
			return value
		}
	}
	return ""
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
