// Package oracle defines the evaluation contract for subjective
// sections (writing, speaking) and its Gemini-backed implementation.
// The core treats evaluation as an opaque function: a failure is an
// error, never a band of zero.
package oracle

import (
	"context"
	"errors"

	"github.com/ielts-sim/exam-service/internal/models"
	"github.com/ielts-sim/exam-service/internal/scoring"
)

// ErrUnavailable signals that the evaluator cannot be reached. Callers
// leave the section pending and let the candidate retry.
var ErrUnavailable = errors.New("evaluation oracle unavailable")

// Writing and speaking rubric criteria, in report order.
var (
	WritingCriteria  = []string{"task_achievement", "coherence_cohesion", "lexical_resource", "grammatical_range"}
	SpeakingCriteria = []string{"fluency_coherence", "lexical_resource", "grammatical_range", "pronunciation"}
)

// Request carries one subjective submission to the evaluator.
type Request struct {
	Section       models.Section    `json:"section"`
	TaskPrompts   []string          `json:"task_prompts"`
	CandidateText string            `json:"candidate_text"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Result is the structured rubric the evaluator returns. Every score is
// a band in 0-9 on a 0.5 step.
type Result struct {
	Criteria     map[string]float64 `json:"criteria"`
	OverallBand  float64            `json:"overall_band"`
	Strengths    string             `json:"strengths"`
	Improvements string             `json:"improvements"`
}

// Oracle evaluates a writing or speaking submission.
type Oracle interface {
	Evaluate(ctx context.Context, req *Request) (*Result, error)
}

// CriteriaFor returns the rubric criteria for a subjective section.
func CriteriaFor(section models.Section) []string {
	if section == models.SectionSpeaking {
		return SpeakingCriteria
	}
	return WritingCriteria
}

// clampBand forces a parsed score onto the 0-9, 0.5-step scale.
func clampBand(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 9 {
		return 9
	}
	return scoring.RoundToHalf(v)
}
