// Package ranking produces ordered roommate recommendations for a requester.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/roommate-matcher/internal/combiner"
	"github.com/spigell/roommate-matcher/internal/filtering"
	"github.com/spigell/roommate-matcher/internal/logger"
	"github.com/spigell/roommate-matcher/internal/matcherr"
	"github.com/spigell/roommate-matcher/internal/metrics"
	"github.com/spigell/roommate-matcher/internal/profile"
	"github.com/spigell/roommate-matcher/internal/repository"
	"github.com/spigell/roommate-matcher/internal/scoring"
)

const (
	defaultWorkers      = 8
	defaultNotesTimeout = 30 * time.Second
)

var tracer = otel.Tracer("github.com/spigell/roommate-matcher/internal/ranking")

// Config controls ranking behaviour. It is injected by the caller.
type Config struct {
	// EnhancedScoring enables notes analysis for requests that do not choose explicitly.
	EnhancedScoring bool
	// MinThreshold is the lowest score returned when the request carries no minimum.
	// Nil means combiner.DefaultMinThreshold.
	MinThreshold *float64
	// IncludeTestPool keeps test accounts in the candidate pool.
	IncludeTestPool bool
	// Workers bounds concurrent scoring and block lookups per request.
	Workers int
	// NotesTimeout caps the time spent on notes analysis for one request.
	NotesTimeout time.Duration
}

// RecommendOptions are the per-request knobs of Recommend.
type RecommendOptions struct {
	Region   string
	MinScore *float64
	// Limit truncates the result when positive.
	Limit    int
	Enhanced *bool
}

// Scorer computes the deterministic score of a pair.
type Scorer interface {
	Score(user, candidate *profile.Profile) *scoring.CompatibilityScore
}

// EnhancedScorer computes a score adjusted by the notes analysis.
type EnhancedScorer interface {
	EnhancedScore(ctx context.Context, user, candidate *profile.Profile, minThreshold float64) *scoring.CompatibilityScore
}

// Ranker ranks the candidate pool of a requester.
type Ranker struct {
	repo     repository.ProfileRepository
	blocks   repository.BlockChecker
	scorer   Scorer
	enhancer EnhancedScorer
	cfg      Config
	logger   *zap.Logger
}

// New creates a Ranker. blocks and enhancer are optional: without blocks no block lists are
// consulted, without enhancer every request is scored deterministically.
func New(repo repository.ProfileRepository, blocks repository.BlockChecker, scorer Scorer, enhancer EnhancedScorer, cfg Config, log *zap.Logger) *Ranker {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.NotesTimeout <= 0 {
		cfg.NotesTimeout = defaultNotesTimeout
	}
	threshold := combiner.DefaultMinThreshold
	if cfg.MinThreshold != nil {
		threshold = *cfg.MinThreshold
	}
	cfg.MinThreshold = &threshold

	return &Ranker{
		repo:     repo,
		blocks:   blocks,
		scorer:   scorer,
		enhancer: enhancer,
		cfg:      cfg,
		logger:   logger.WithFields(log),
	}
}

// Config returns the effective configuration.
func (r *Ranker) Config() Config {
	return r.cfg
}

// Recommend returns compatible candidates for userID, best first.
func (r *Ranker) Recommend(ctx context.Context, userID string, opts RecommendOptions) (result []*scoring.CompatibilityScore, err error) {
	enhanced := r.enhanced(opts.Enhanced)
	threshold := *r.cfg.MinThreshold
	if opts.MinScore != nil {
		threshold = *opts.MinScore
	}

	runID := uuid.NewString()
	log := r.logger.With(
		zap.String(logger.FieldRequester, userID),
		zap.String(logger.FieldRun, runID),
		zap.Bool("enhanced", enhanced),
	)

	ctx, span := tracer.Start(ctx, "ranking.Recommend")
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.Bool("enhanced", enhanced),
		attribute.Float64("min_score", threshold),
	)
	start := time.Now()
	defer func() {
		metrics.RecommendDuration.WithLabelValues("recommend", strconv.FormatBool(enhanced)).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("results", len(result)))
		span.End()
	}()

	requester, err := r.loadRequester(ctx, userID)
	if err != nil {
		return nil, err
	}

	region := strings.TrimSpace(opts.Region)
	candidates, err := r.repo.ListEligibleProfiles(ctx, repository.ListFilter{
		Region:          region,
		IncludeTestPool: r.cfg.IncludeTestPool,
	})
	if err != nil {
		return nil, fmt.Errorf("loading candidate pool: %w", err)
	}
	log.Info("candidate pool loaded", zap.Int("count", len(candidates)))

	pool, err := r.filterPool(ctx, requester, region, profile.NewPool(candidates...), log)
	if err != nil {
		return nil, err
	}
	log.Info("candidates left after filters", zap.Int("count", pool.Len()))

	scores, err := r.scorePool(ctx, requester, pool, enhanced, threshold)
	if err != nil {
		return nil, err
	}

	Sort(scores)
	if opts.Limit > 0 && len(scores) > opts.Limit {
		scores = scores[:opts.Limit]
	}

	log.Info("recommendations ready", zap.Int("count", len(scores)), zap.Float64("min_score", threshold))
	return scores, nil
}

// Compare scores a single pair. A nil score with a nil error means the pair is not a match.
func (r *Ranker) Compare(ctx context.Context, userA, userB string, enhanced bool) (result *scoring.CompatibilityScore, err error) {
	if profile.SameUser(userA, userB) {
		return nil, matcherr.ErrSelfComparison
	}

	enhanced = enhanced && r.enhancer != nil

	ctx, span := tracer.Start(ctx, "ranking.Compare")
	span.SetAttributes(attribute.Bool("enhanced", enhanced))
	start := time.Now()
	defer func() {
		metrics.RecommendDuration.WithLabelValues("compare", strconv.FormatBool(enhanced)).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	a, err := r.repo.GetProfile(ctx, userA)
	if err != nil {
		return nil, err
	}
	b, err := r.repo.GetProfile(ctx, userB)
	if err != nil {
		return nil, err
	}

	if r.blocks != nil {
		blocked, err := filtering.IsPairBlocked(ctx, r.blocks, a.UserEmail, b.UserEmail)
		if err != nil {
			return nil, fmt.Errorf("checking blocks: %w", err)
		}
		if blocked {
			r.logger.Debug("pair is blocked", logger.PairFields(a.UserEmail, b.UserEmail)...)
			return nil, nil
		}
	}

	if !enhanced {
		return r.scorer.Score(a, b), nil
	}

	notesCtx, cancel := context.WithTimeout(ctx, r.cfg.NotesTimeout)
	defer cancel()
	return r.enhancer.EnhancedScore(notesCtx, a, b, 0), nil
}

func (r *Ranker) enhanced(requested *bool) bool {
	if r.enhancer == nil {
		return false
	}
	if requested != nil {
		return *requested
	}
	return r.cfg.EnhancedScoring
}

func (r *Ranker) loadRequester(ctx context.Context, userID string) (*profile.Profile, error) {
	requester, err := r.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !requester.IsSubmitted {
		return nil, &matcherr.InvalidProfileError{ID: requester.UserEmail, Reason: "profile is not submitted"}
	}
	if err := profile.Validate(requester); err != nil {
		return nil, err
	}
	return requester, nil
}

func (r *Ranker) filterPool(ctx context.Context, requester *profile.Profile, region string, pool *profile.Pool, log *zap.Logger) (*profile.Pool, error) {
	steps := filtering.Defaults()
	if r.blocks == nil {
		filtering.DisableByName(steps, "blocked", "no block checker configured")
	}

	cfg := &filtering.Config{
		Region:          region,
		IncludeTestPool: r.cfg.IncludeTestPool,
		Workers:         r.cfg.Workers,
	}
	deps := filtering.Deps{
		Requester: requester,
		Blocks:    r.blocks,
		Logger:    log,
		Observer:  stepObserver{},
	}

	filtered, err := filtering.Run(ctx, cfg, deps, steps, pool)
	if err != nil {
		return nil, fmt.Errorf("filtering candidate pool: %w", err)
	}

	for _, status := range filtering.Describe(steps) {
		log.Debug("filter status",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}
	log.Debug("candidate pool", zap.Strings("candidates", filtered.IDs()))

	return filtered, nil
}

func (r *Ranker) scorePool(ctx context.Context, requester *profile.Profile, pool *profile.Pool, enhanced bool, threshold float64) ([]*scoring.CompatibilityScore, error) {
	results := make([]*scoring.CompatibilityScore, pool.Len())

	scoreCtx := ctx
	if enhanced {
		var cancel context.CancelFunc
		scoreCtx, cancel = context.WithTimeout(ctx, r.cfg.NotesTimeout)
		defer cancel()
	}

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Workers)
	for idx, candidate := range pool.Items {
		g.Go(func() error {
			if enhanced {
				results[idx] = r.enhancer.EnhancedScore(scoreCtx, requester, candidate, threshold)
				return nil
			}

			score := r.scorer.Score(requester, candidate)
			switch {
			case score == nil:
				metrics.CandidatesEvaluated.WithLabelValues(metrics.OutcomeIncompatible).Inc()
			case score.Score < threshold:
				metrics.CandidatesEvaluated.WithLabelValues(metrics.OutcomeBelowThreshold).Inc()
				score = nil
			default:
				metrics.CandidatesEvaluated.WithLabelValues(metrics.OutcomeMatched).Inc()
			}
			results[idx] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// The caller's context ending aborts the request; the notes deadline only degrades scores.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if errors.Is(scoreCtx.Err(), context.DeadlineExceeded) {
		r.logger.Warn("notes analysis timed out, remaining candidates kept their base scores",
			zap.String(logger.FieldRequester, requester.UserEmail),
			zap.Duration("timeout", r.cfg.NotesTimeout),
		)
	}

	scores := make([]*scoring.CompatibilityScore, 0, len(results))
	for _, score := range results {
		if score != nil {
			scores = append(scores, score)
		}
	}
	return scores, nil
}

// Sort orders scores best first, breaking ties by candidate id.
func Sort(scores []*scoring.CompatibilityScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].CandidateID < scores[j].CandidateID
	})
}

// stepObserver reports pool filter drops to Prometheus.
type stepObserver struct{}

func (stepObserver) ObserveStep(name string, step filtering.Step) {
	if step.Dropped > 0 {
		metrics.PoolDropped.WithLabelValues(name).Add(float64(step.Dropped))
	}
}
