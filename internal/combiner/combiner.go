// Package combiner blends the deterministic compatibility score with the notes assessment.
package combiner

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/spigell/roommate-matcher/internal/ai"
	"github.com/spigell/roommate-matcher/internal/logger"
	"github.com/spigell/roommate-matcher/internal/metrics"
	"github.com/spigell/roommate-matcher/internal/profile"
	"github.com/spigell/roommate-matcher/internal/scoring"
)

const (
	// DefaultMinThreshold is the lowest score a candidate may have to be recommended.
	DefaultMinThreshold = 50.0

	// NotesWeight is the effective share of the combined preference change carried into the total.
	NotesWeight = 0.30
)

// BaseScorer computes the deterministic score of a pair.
type BaseScorer interface {
	Score(user, candidate *profile.Profile) *scoring.CompatibilityScore
}

// Combiner produces enhanced scores.
type Combiner struct {
	scorer   BaseScorer
	analyzer ai.NotesAnalyzer
	logger   *zap.Logger
}

func New(scorer BaseScorer, analyzer ai.NotesAnalyzer, log *zap.Logger) *Combiner {
	return &Combiner{scorer: scorer, analyzer: analyzer, logger: logger.WithFields(log)}
}

// EnhancedScore scores the pair and adjusts the result with the notes assessment.
// It returns nil when the pair is incompatible, vetoed by the notes, or below minThreshold.
func (c *Combiner) EnhancedScore(ctx context.Context, user, candidate *profile.Profile, minThreshold float64) *scoring.CompatibilityScore {
	base := c.scorer.Score(user, candidate)
	if base == nil {
		metrics.CandidatesEvaluated.WithLabelValues(metrics.OutcomeIncompatible).Inc()
		return nil
	}
	if base.Score < minThreshold {
		metrics.CandidatesEvaluated.WithLabelValues(metrics.OutcomeBelowThreshold).Inc()
		return nil
	}

	log := logger.WithFields(c.logger, logger.PairFields(user.UserEmail, candidate.UserEmail)...)

	if c.analyzer == nil {
		metrics.CandidatesEvaluated.WithLabelValues(metrics.OutcomeMatched).Inc()
		return base
	}

	assessment := c.analyzer.Analyze(ctx, user.AdditionalNotes, candidate.AdditionalNotes)
	if assessment == nil {
		assessment = ai.Neutral("notes analysis returned nothing")
	}

	if assessment.Prune {
		log.Debug("candidate pruned by notes analysis",
			zap.Float64("notes_score", assessment.Score),
			zap.String("explanation", assessment.Explanation),
		)
		metrics.CandidatesEvaluated.WithLabelValues(metrics.OutcomePruned).Inc()
		return nil
	}

	if assessment.Degraded {
		log.Debug("notes analysis degraded, keeping base score", zap.String("reason", assessment.Explanation))
		metrics.CandidatesEvaluated.WithLabelValues(metrics.OutcomeDegraded).Inc()
		result := base.Clone()
		result.Explanation = assessment.Explanation
		return result
	}

	result := Blend(base, assessment)
	if result.Score < minThreshold {
		log.Debug("enhanced score below threshold",
			zap.Float64("base_score", base.Score),
			zap.Float64("score", result.Score),
			zap.Float64("threshold", minThreshold),
		)
		metrics.CandidatesEvaluated.WithLabelValues(metrics.OutcomeBelowThreshold).Inc()
		return nil
	}

	metrics.CandidatesEvaluated.WithLabelValues(metrics.OutcomeMatched).Inc()
	return result
}

// Blend applies a notes valence to a base score. The base is left untouched.
func Blend(base *scoring.CompatibilityScore, assessment *ai.NotesAssessment) *scoring.CompatibilityScore {
	valence := math.Max(ai.MinNotesScore, math.Min(ai.MaxNotesScore, assessment.Score))

	original := base.Subscores.CombinedPreference()
	combined := clamp(original + valence)

	result := base.Clone()
	result.Subscores.Preferences = clamp((combined - base.Subscores.Roommate*scoring.RoommateShare) / scoring.PreferenceShare)
	result.Score = clamp(base.Score + (combined-original)*NotesWeight)

	info := (valence - ai.MinNotesScore) * 100 / (ai.MaxNotesScore - ai.MinNotesScore)
	result.Subscores.AdditionalInfo = &info
	result.NotesScore = &valence
	result.Explanation = assessment.Explanation

	return result
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
