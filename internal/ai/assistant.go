package ai

import "context"

const (
	// MinNotesScore and MaxNotesScore bound the valence of a notes assessment.
	MinNotesScore = -10
	MaxNotesScore = 10
	// PruneThreshold is the valence at or below which a pair is vetoed.
	PruneThreshold = -5
)

// NotesAssessment describes how compatible two free-text notes are.
type NotesAssessment struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
	Prune       bool    `json:"prune"`
	// Degraded is set when the assessment is a neutral fallback after a failure.
	Degraded bool `json:"-"`
}

// NotesAnalyzer rates the compatibility of two users' additional notes.
// Implementations never fail: errors degrade to a neutral assessment.
type NotesAnalyzer interface {
	Analyze(ctx context.Context, notesA, notesB string) *NotesAssessment
}

// ContentGenerator sends a system instruction and a message to a text-completion model.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// ModelReporter is implemented by generators that know their model name.
type ModelReporter interface {
	Model() string
}

// Neutral returns a fallback assessment carrying a diagnostic.
func Neutral(reason string) *NotesAssessment {
	return &NotesAssessment{Score: 0, Explanation: reason, Prune: false, Degraded: true}
}
