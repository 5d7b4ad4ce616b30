package filtering

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/roommate-matcher/internal/profile"
)

const defaultWorkers = 8

type selfFilter struct{}

// NewSelf creates a filter that removes the requester and repeated identities from the pool.
func NewSelf() Filter {
	return &selfFilter{}
}

func (f *selfFilter) Name() string { return "self" }

func (f *selfFilter) Disable(string) {}

func (f *selfFilter) IsEnabled() bool { return true }

func (f *selfFilter) Validate(*Config) error { return nil }

func (f *selfFilter) Apply(_ context.Context, deps Deps, pool *profile.Pool) (*profile.Pool, Step, error) {
	initial := pool.Len()
	seen := make(map[string]struct{}, initial)
	dropped := pool.Retain(func(p *profile.Profile) bool {
		id := strings.ToLower(strings.TrimSpace(p.UserEmail))
		if id == "" || profile.SameUser(id, deps.Requester.UserEmail) {
			return false
		}
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
		return true
	})

	return pool, Step{Initial: initial, Dropped: len(dropped), Left: pool.Len()}, nil
}

func (f *selfFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: true}
}

type eligibilityFilter struct{}

// NewEligibility creates a filter that keeps submitted profiles passing validation.
func NewEligibility() Filter {
	return &eligibilityFilter{}
}

func (f *eligibilityFilter) Name() string { return "eligibility" }

func (f *eligibilityFilter) Disable(string) {}

func (f *eligibilityFilter) IsEnabled() bool { return true }

func (f *eligibilityFilter) Validate(*Config) error { return nil }

func (f *eligibilityFilter) Apply(_ context.Context, deps Deps, pool *profile.Pool) (*profile.Pool, Step, error) {
	initial := pool.Len()
	var invalid []string
	dropped := pool.Retain(func(p *profile.Profile) bool {
		if !p.Eligible() {
			return false
		}
		if err := profile.Validate(p); err != nil {
			invalid = append(invalid, p.UserEmail)
			deps.Logger.Warn("skipping invalid profile", zap.String("candidate", p.UserEmail), zap.Error(err))
			return false
		}
		return true
	})

	if len(invalid) > 0 {
		deps.Logger.Info("excluding invalid profiles",
			zap.Strings("excluded_profiles", invalid),
			zap.Int("profiles_left", pool.Len()),
		)
	}

	return pool, Step{Initial: initial, Dropped: len(dropped), Left: pool.Len()}, nil
}

type testPoolFilter struct {
	enabled bool
	reason  string
}

// NewTestPool creates a filter that removes test accounts unless the test pool is included.
func NewTestPool() Filter {
	return &testPoolFilter{enabled: true}
}

func (f *testPoolFilter) Name() string { return "test_pool" }

func (f *testPoolFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *testPoolFilter) IsEnabled() bool { return f.enabled }

func (f *testPoolFilter) Validate(cfg *Config) error {
	if cfg != nil && cfg.IncludeTestPool {
		f.Disable("test pool included by configuration")
	}
	return nil
}

func (f *testPoolFilter) Apply(_ context.Context, _ Deps, pool *profile.Pool) (*profile.Pool, Step, error) {
	initial := pool.Len()
	dropped := pool.Retain(func(p *profile.Profile) bool { return !p.IsTest })
	return pool, Step{Initial: initial, Dropped: len(dropped), Left: pool.Len()}, nil
}

func (f *testPoolFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.enabled, Reason: f.reason}
}

type regionFilter struct {
	region string
}

// NewRegion creates a filter that keeps candidates in the requested region.
func NewRegion() Filter {
	return &regionFilter{}
}

func (f *regionFilter) Name() string { return "region" }

func (f *regionFilter) Disable(string) {}

func (f *regionFilter) IsEnabled() bool { return true }

func (f *regionFilter) Validate(cfg *Config) error {
	f.region = ""
	if cfg != nil {
		f.region = strings.TrimSpace(cfg.Region)
	}
	return nil
}

func (f *regionFilter) Apply(_ context.Context, deps Deps, pool *profile.Pool) (*profile.Pool, Step, error) {
	initial := pool.Len()
	if f.region == "" {
		return pool, Step{Initial: initial, Left: initial}, nil
	}

	dropped := pool.Retain(func(p *profile.Profile) bool {
		return strings.EqualFold(p.HousingRegion, f.region)
	})
	if len(dropped) > 0 {
		deps.Logger.Debug("excluding profiles outside region",
			zap.String("region", f.region),
			zap.Int("profiles_left", pool.Len()),
		)
	}

	return pool, Step{Initial: initial, Dropped: len(dropped), Left: pool.Len()}, nil
}

func (f *regionFilter) Status() Status {
	details := map[string]string{}
	if f.region != "" {
		details["region"] = f.region
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type constraintsFilter struct{}

// NewConstraints creates a filter that applies the hard constraint gate against the requester.
func NewConstraints() Filter {
	return &constraintsFilter{}
}

func (f *constraintsFilter) Name() string { return "constraints" }

func (f *constraintsFilter) Disable(string) {}

func (f *constraintsFilter) IsEnabled() bool { return true }

func (f *constraintsFilter) Validate(*Config) error { return nil }

func (f *constraintsFilter) Apply(_ context.Context, deps Deps, pool *profile.Pool) (*profile.Pool, Step, error) {
	initial := pool.Len()
	dropped := pool.Retain(func(p *profile.Profile) bool {
		report := Detail(deps.Requester, p)
		if !report.Passed() {
			deps.Logger.Debug("constraints failed",
				zap.String("candidate", p.UserEmail),
				zap.Strings("failed", report.Failed()),
			)
			return false
		}
		return true
	})

	return pool, Step{Initial: initial, Dropped: len(dropped), Left: pool.Len()}, nil
}

type blockedFilter struct {
	enabled bool
	reason  string
	workers int
}

// NewBlocked creates a filter that removes candidates blocked system-wide or by either side of the pair.
func NewBlocked() Filter {
	return &blockedFilter{enabled: true, workers: defaultWorkers}
}

func (f *blockedFilter) Name() string { return "blocked" }

func (f *blockedFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *blockedFilter) IsEnabled() bool { return f.enabled }

func (f *blockedFilter) Validate(cfg *Config) error {
	if cfg != nil && cfg.Workers > 0 {
		f.workers = cfg.Workers
	}
	return nil
}

func (f *blockedFilter) Apply(ctx context.Context, deps Deps, pool *profile.Pool) (*profile.Pool, Step, error) {
	initial := pool.Len()
	if deps.Blocks == nil {
		return pool, Step{}, errors.New("block checker is required")
	}

	blocked := make([]bool, pool.Len())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for idx, candidate := range pool.Items {
		g.Go(func() error {
			hidden, err := IsPairBlocked(gctx, deps.Blocks, deps.Requester.UserEmail, candidate.UserEmail)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				deps.Logger.Warn("block lookup failed, excluding candidate",
					zap.String("candidate", candidate.UserEmail),
					zap.Error(err),
				)
				hidden = true
			}
			blocked[idx] = hidden
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return pool, Step{}, err
	}

	var targets []string
	for idx, candidate := range pool.Items {
		if blocked[idx] {
			targets = append(targets, candidate.UserEmail)
		}
	}
	excluded := pool.Exclude(targets)

	if len(excluded) > 0 {
		deps.Logger.Info("excluding blocked profiles",
			zap.Strings("excluded_profiles", excluded),
			zap.Int("profiles_left", pool.Len()),
		)
	}

	return pool, Step{Initial: initial, Dropped: len(excluded), Left: pool.Len()}, nil
}

func (f *blockedFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.enabled,
		Reason:  f.reason,
		Details: map[string]string{"workers": strconv.Itoa(f.workers)},
	}
}

// IsPairBlocked reports whether either user is banned system-wide or blocked the other.
func IsPairBlocked(ctx context.Context, blocks BlockChecker, a, b string) (bool, error) {
	checks := [][2]string{
		{a, ""},
		{b, ""},
		{b, a},
		{a, b},
	}
	for _, check := range checks {
		hidden, err := blocks.IsBlocked(ctx, check[0], check[1])
		if err != nil {
			return false, err
		}
		if hidden {
			return true, nil
		}
	}
	return false, nil
}
