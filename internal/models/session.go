package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not_started"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// ExamSession is the aggregate root for one mock-test run.
// Invariants:
//   - Status is completed iff all four section results exist.
//   - CurrentSection always names a section without a result, and is
//     nil once the session is completed.
//   - Mutated once per section (on that section's record); never after
//     completion except through an explicit new-attempt flow.
type ExamSession struct {
	ID          string    `json:"id" gorm:"primaryKey;size:64"`
	CandidateID uint      `json:"candidate_id" gorm:"not null;index"`
	MockTestID  uint      `json:"mock_test_id" gorm:"not null;index"`
	MockTest    *MockTest `json:"mock_test,omitempty" gorm:"foreignKey:MockTestID"`

	Status         SessionStatus `json:"status" gorm:"not null;default:in_progress;index"`
	CurrentSection *Section      `json:"current_section,omitempty" gorm:"size:16"`
	CompositeBand  *float64      `json:"composite_band,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Results []SectionResult `json:"results,omitempty" gorm:"foreignKey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (ExamSession) TableName() string {
	return "exam_sessions"
}

// ResultFor returns the current result for a section, if recorded.
func (s *ExamSession) ResultFor(section Section) *SectionResult {
	for i := range s.Results {
		if s.Results[i].Section == section {
			return &s.Results[i]
		}
	}
	return nil
}

// SectionResult is the single current outcome for one skill within a
// session. Objective sections carry the raw correct/total counts;
// subjective sections carry the per-criterion rubric. Both reduce to
// one band score.
type SectionResult struct {
	ID        uint    `json:"id" gorm:"primaryKey"`
	SessionID string  `json:"session_id" gorm:"not null;size:64;uniqueIndex:idx_session_section"`
	Section   Section `json:"section" gorm:"not null;size:16;uniqueIndex:idx_session_section"`

	Band float64 `json:"band" validate:"band"`

	// Objective sections only.
	RawCorrect *int `json:"raw_correct,omitempty"`
	RawTotal   *int `json:"raw_total,omitempty"`

	// Subjective sections only: criterion name -> 0-9 score in 0.5 steps,
	// plus free-text strengths/improvements from the oracle.
	RubricScores datatypes.JSON `json:"rubric_scores,omitempty" gorm:"type:jsonb"`
	Strengths    *string        `json:"strengths,omitempty" gorm:"type:text"`
	Improvements *string        `json:"improvements,omitempty" gorm:"type:text"`

	// Submitted answers, frozen at record time.
	Answers datatypes.JSON `json:"answers,omitempty" gorm:"type:jsonb"`

	ElapsedSeconds int       `json:"elapsed_seconds"`
	RecordedAt     time.Time `json:"recorded_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (SectionResult) TableName() string {
	return "section_results"
}
