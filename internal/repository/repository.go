// Package repository provides profile storage and block lists for the matcher.
package repository

import (
	"context"

	"github.com/spigell/roommate-matcher/internal/profile"
)

// ListFilter narrows the eligible pool.
type ListFilter struct {
	// Region keeps only profiles targeting this housing region when set.
	Region string
	// IncludeTestPool keeps profiles flagged as test accounts.
	IncludeTestPool bool
}

// ProfileRepository loads profiles.
type ProfileRepository interface {
	// GetProfile returns matcherr.ErrProfileNotFound when no profile exists for id.
	GetProfile(ctx context.Context, id string) (*profile.Profile, error)
	// ListEligibleProfiles returns submitted, non-draft profiles.
	ListEligibleProfiles(ctx context.Context, filter ListFilter) ([]*profile.Profile, error)
}

// BlockChecker answers whether target is hidden. An empty by asks for a system-wide block,
// otherwise whether by has blocked target.
type BlockChecker interface {
	IsBlocked(ctx context.Context, target, by string) (bool, error)
}

// ProfileWriter stores profiles.
type ProfileWriter interface {
	SaveProfile(ctx context.Context, p *profile.Profile) error
}

// BlockWriter records system-wide bans and per-user blocks.
type BlockWriter interface {
	Ban(ctx context.Context, id string) error
	Block(ctx context.Context, target, by string) error
}

func matchesFilter(p *profile.Profile, filter ListFilter) bool {
	if !p.Eligible() {
		return false
	}
	if p.IsTest && !filter.IncludeTestPool {
		return false
	}
	if filter.Region != "" && p.HousingRegion != filter.Region {
		return false
	}
	return true
}

func cloneProfile(p *profile.Profile) *profile.Profile {
	out := *p
	out.HousingCities = append([]string(nil), p.HousingCities...)
	out.Preferences = append([]profile.Preference(nil), p.Preferences...)
	return &out
}
