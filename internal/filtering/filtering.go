package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/roommate-matcher/internal/profile"
)

// Filter represents a single step narrowing the candidate pool of a requester.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, pool *profile.Pool) (*profile.Pool, Step, error)
}

// BlockChecker answers whether target is blocked. An empty by means a system-wide block.
type BlockChecker interface {
	IsBlocked(ctx context.Context, target, by string) (bool, error)
}

// Observer receives the outcome of every executed step.
type Observer interface {
	ObserveStep(name string, step Step)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Requester *profile.Profile
	Blocks    BlockChecker
	Logger    *zap.Logger
	Observer  Observer
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	Region          string
	IncludeTestPool bool
	// Workers bounds concurrent lookups issued by a single step.
	Workers int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Defaults returns the candidate pool pipeline in execution order. Cheap steps run first.
func Defaults() []Filter {
	return []Filter{
		NewSelf(),
		NewEligibility(),
		NewTestPool(),
		NewRegion(),
		NewConstraints(),
		NewBlocked(),
	}
}

// Run executes the supplied filters sequentially and returns the remaining pool.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, pool *profile.Pool) (*profile.Pool, error) {
	if deps.Requester == nil {
		return nil, fmt.Errorf("requester profile is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, deps, pool)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		deps.Logger.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
		if deps.Observer != nil {
			deps.Observer.ObserveStep(step.Name(), info)
		}

		pool = next
	}

	return pool, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
