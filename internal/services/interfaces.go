package services

import (
	"context"
	"time"

	"github.com/ielts-sim/exam-service/internal/media"
	"github.com/ielts-sim/exam-service/internal/models"
	"github.com/ielts-sim/exam-service/internal/repositories"
)

// ===== REQUEST / RESPONSE TYPES =====

type StartSessionRequest struct {
	CandidateID uint `json:"candidate_id" validate:"required"`
	MockTestID  uint `json:"mock_test_id" validate:"required"`
}

type SubmitSectionRequest struct {
	Section models.Section     `json:"section" validate:"required,section"`
	Answers models.AnswerSheet `json:"answers"`

	// Subjective sections: the essay or the speaking transcript.
	CandidateText string `json:"candidate_text"`
}

type SaveAnswerRequest struct {
	Section models.Section         `json:"section" validate:"required,section"`
	Number  int                    `json:"number" validate:"required,min=1"`
	Answer  models.SubmittedAnswer `json:"answer"`
}

type SectionResultView struct {
	Section        models.Section     `json:"section"`
	Band           float64            `json:"band"`
	RawCorrect     *int               `json:"raw_correct,omitempty"`
	RawTotal       *int               `json:"raw_total,omitempty"`
	RubricScores   map[string]float64 `json:"rubric_scores,omitempty"`
	Strengths      *string            `json:"strengths,omitempty"`
	Improvements   *string            `json:"improvements,omitempty"`
	ElapsedSeconds int                `json:"elapsed_seconds"`
	RecordedAt     time.Time          `json:"recorded_at"`
}

type SessionResponse struct {
	ID             string               `json:"id"`
	CandidateID    uint                 `json:"candidate_id"`
	MockTestID     uint                 `json:"mock_test_id"`
	Status         models.SessionStatus `json:"status"`
	CurrentSection *models.Section      `json:"current_section,omitempty"`
	CompositeBand  *float64             `json:"composite_band,omitempty"`
	StartedAt      time.Time            `json:"started_at"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
	Results        []SectionResultView  `json:"results,omitempty"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int64             `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// SectionView is the candidate-facing payload for an entered section.
// Question answer keys never serialize; the models strip them.
type SectionView struct {
	Section            models.Section         `json:"section"`
	DurationSeconds    int                    `json:"duration_seconds"`
	RemainingSeconds   int                    `json:"remaining_seconds"`
	AudioURL           *string                `json:"audio_url,omitempty"`
	WarningSeconds     int                    `json:"warning_seconds,omitempty"`
	PreparationSeconds int                    `json:"preparation_seconds,omitempty"`
	MediaState         *media.State           `json:"media_state,omitempty"`
	Groups             []models.QuestionGroup `json:"groups"`
}

type TimerStatus struct {
	Section          models.Section `json:"section"`
	RemainingSeconds int            `json:"remaining_seconds"`
	Running          bool           `json:"running"`
	MediaState       *media.State   `json:"media_state,omitempty"`
}

type ResultResponse struct {
	SessionID     string              `json:"session_id"`
	CandidateID   uint                `json:"candidate_id"`
	MockTestID    uint                `json:"mock_test_id"`
	CompositeBand float64             `json:"composite_band"`
	Sections      []SectionResultView `json:"sections"`
	CompletedAt   time.Time           `json:"completed_at"`
}

// ===== SERVICE INTERFACES =====

// ExamSessionService drives a candidate's mock-test run end to end:
// section sequencing, timing, one-shot media, evaluation, and the final
// composite band.
type ExamSessionService interface {
	Start(ctx context.Context, req *StartSessionRequest) (*SessionResponse, error)
	Get(ctx context.Context, sessionID string) (*SessionResponse, error)

	// EnterSection opens the session's current pending section and arms
	// its countdown. Requesting any other section fails with an
	// OutOfOrderError naming the section to redirect to.
	EnterSection(ctx context.Context, sessionID string, section models.Section) (*SectionView, error)

	// SaveAnswer stores a draft answer without evaluating it. Drafts feed
	// the auto-submit that fires when the section timer expires.
	SaveAnswer(ctx context.Context, sessionID string, req *SaveAnswerRequest) error

	// SubmitSection evaluates and records the section result, advancing
	// the session. Recording the last section finalizes the composite.
	SubmitSection(ctx context.Context, sessionID string, req *SubmitSectionRequest) (*SessionResponse, error)

	// RetakeSection discards a recorded result so the section can run again.
	RetakeSection(ctx context.Context, sessionID string, section models.Section) (*SessionResponse, error)

	// RequestMediaPlay asks to start the listening audio; the first
	// request enters the fixed warning interval.
	RequestMediaPlay(ctx context.Context, sessionID string) (media.State, error)

	// MediaFinished signals natural end of the audio stream.
	MediaFinished(ctx context.Context, sessionID string) error

	TimeRemaining(ctx context.Context, sessionID string) (*TimerStatus, error)

	// Result returns the full report for a completed session.
	Result(ctx context.Context, sessionID string) (*ResultResponse, error)

	ListByCandidate(ctx context.Context, candidateID uint, filters repositories.SessionFilters) (*SessionListResponse, error)

	// Close stops all runtime timers. Used on shutdown.
	Close()
}

// MockTestService serves the read-only authoring catalogue.
type MockTestService interface {
	Get(ctx context.Context, id uint) (*models.MockTest, error)
	List(ctx context.Context, filters repositories.MockTestFilters) ([]*models.MockTest, int64, error)
}
