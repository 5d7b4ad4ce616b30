package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/roommate-matcher/internal/ai"
	"github.com/spigell/roommate-matcher/internal/matcherr"
	"github.com/spigell/roommate-matcher/internal/metrics"
	"github.com/spigell/roommate-matcher/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200

	// DivergenceThreshold is the gap between the two directional scores above which both explanations are kept.
	DivergenceThreshold = 2.0

	systemInstruction = "You assess roommate compatibility from free-text notes. " +
		"Reply with a single JSON object that follows the requested schema."
)

var tracer = otel.Tracer("github.com/spigell/roommate-matcher/internal/ai/gemini")

// Analyzer rates notes compatibility through a text-completion model.
type Analyzer struct {
	generator ai.ContentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewAnalyzer(generator ai.ContentGenerator, logger *zap.Logger, maxLogLength int) *Analyzer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Analyzer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Analyze asks the model about both orderings of the pair and averages the answers,
// so swapping the arguments yields the same score.
func (a *Analyzer) Analyze(ctx context.Context, notesA, notesB string) *ai.NotesAssessment {
	notesA, notesB = strings.TrimSpace(notesA), strings.TrimSpace(notesB)
	if notesA == "" || notesB == "" {
		metrics.NotesAnalyses.WithLabelValues(metrics.NotesEmpty).Inc()
		return &ai.NotesAssessment{Score: 0, Explanation: "no notes"}
	}

	ctx, span := tracer.Start(ctx, "gemini.Analyzer.Analyze")
	defer span.End()

	started := time.Now()
	defer func() { metrics.NotesDuration.Observe(time.Since(started).Seconds()) }()

	// Canonical order keeps the issued requests identical for (A,B) and (B,A).
	first, second := notesA, notesB
	if second < first {
		first, second = second, first
	}

	var forward, backward *notesResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := a.assess(gctx, first, second)
		forward = resp
		return err
	})
	g.Go(func() error {
		resp, err := a.assess(gctx, second, first)
		backward = resp
		return err
	})

	if err := g.Wait(); err != nil {
		reason := diagnostic(err)
		a.logger.Warn("notes analysis degraded to neutral", zap.String("reason", reason), zap.Error(err))
		metrics.NotesAnalyses.WithLabelValues(metrics.NotesFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		return ai.Neutral(reason)
	}

	assessment := combine(forward, backward)
	metrics.NotesAnalyses.WithLabelValues(metrics.NotesOK).Inc()
	span.SetAttributes(
		attribute.Float64("notes.score", assessment.Score),
		attribute.Bool("notes.prune", assessment.Prune),
	)

	a.logger.Debug("notes analysis finished",
		zap.Float64("forward_score", forward.Score),
		zap.Float64("backward_score", backward.Score),
		zap.Float64("score", assessment.Score),
		zap.Bool("prune", assessment.Prune),
	)

	return assessment
}

func (a *Analyzer) assess(ctx context.Context, notesA, notesB string) (*notesResponse, error) {
	prompt := buildPrompt(notesA, notesB)

	a.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	return parseResponse(raw)
}

func buildPrompt(notesA, notesB string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Person A notes:\n{{NOTES_A}}\n\nPerson B notes:\n{{NOTES_B}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{NOTES_A}}", notesA)
	prompt = strings.ReplaceAll(prompt, "{{NOTES_B}}", notesB)
	return prompt
}

func combine(forward, backward *notesResponse) *ai.NotesAssessment {
	score := clampScore((clampScore(forward.Score) + clampScore(backward.Score)) / 2)

	explanation := forward.Explanation
	if math.Abs(forward.Score-backward.Score) > DivergenceThreshold {
		explanation = joinExplanations(forward.Explanation, backward.Explanation)
	} else if utf8.RuneCountInString(backward.Explanation) > utf8.RuneCountInString(explanation) {
		explanation = backward.Explanation
	}

	return &ai.NotesAssessment{
		Score:       score,
		Explanation: explanation,
		Prune:       score <= ai.PruneThreshold,
	}
}

func joinExplanations(first, second string) string {
	switch {
	case first == "":
		return second
	case second == "" || first == second:
		return first
	default:
		return first + " | " + second
	}
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(ai.MinNotesScore, math.Min(ai.MaxNotesScore, v))
}

func diagnostic(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "notes analysis timed out"
	case errors.Is(err, context.Canceled):
		return "notes analysis canceled"
	case errors.Is(err, matcherr.ErrMalformedResponse):
		return "notes analysis unavailable: malformed model response"
	default:
		return fmt.Sprintf("notes analysis unavailable: %v", err)
	}
}
