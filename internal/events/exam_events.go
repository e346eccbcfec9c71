package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/ielts-sim/exam-service/internal/models"
)

// EventType represents different types of exam lifecycle events
type EventType string

const (
	// Session events
	EventSessionStarted   EventType = "session.started"
	EventSessionCompleted EventType = "session.completed"
	EventSessionExpired   EventType = "session.expired"

	// Section events
	EventSectionEntered  EventType = "section.entered"
	EventSectionRecorded EventType = "section.recorded"
	EventSectionRetaken  EventType = "section.retaken"
)

// ExamEvent is the base event structure published for downstream
// consumers (notification service, analytics pipeline).
type ExamEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Session event payloads

type SessionStartedEvent struct {
	SessionID   string    `json:"session_id"`
	CandidateID uint      `json:"candidate_id"`
	MockTestID  uint      `json:"mock_test_id"`
	StartedAt   time.Time `json:"started_at"`
}

type SessionCompletedEvent struct {
	SessionID     string                     `json:"session_id"`
	CandidateID   uint                       `json:"candidate_id"`
	MockTestID    uint                       `json:"mock_test_id"`
	CompositeBand float64                    `json:"composite_band"`
	SectionBands  map[models.Section]float64 `json:"section_bands"`
	CompletedAt   time.Time                  `json:"completed_at"`
}

type SessionExpiredEvent struct {
	SessionID   string         `json:"session_id"`
	CandidateID uint           `json:"candidate_id"`
	Section     models.Section `json:"section"`
	ExpiredAt   time.Time      `json:"expired_at"`
}

// Section event payloads

type SectionRecordedEvent struct {
	SessionID   string         `json:"session_id"`
	CandidateID uint           `json:"candidate_id"`
	Section     models.Section `json:"section"`
	Band        float64        `json:"band"`
	RawCorrect  *int           `json:"raw_correct,omitempty"`
	RawTotal    *int           `json:"raw_total,omitempty"`
	AutoSubmit  bool           `json:"auto_submit"`
	RecordedAt  time.Time      `json:"recorded_at"`
}

type SectionRetakenEvent struct {
	SessionID string         `json:"session_id"`
	Section   models.Section `json:"section"`
	RetakenAt time.Time      `json:"retaken_at"`
}

// Event factory functions

func NewSessionStartedEvent(sessionID string, candidateID, mockTestID uint, startedAt time.Time) *ExamEvent {
	return newEvent(EventSessionStarted, SessionStartedEvent{
		SessionID:   sessionID,
		CandidateID: candidateID,
		MockTestID:  mockTestID,
		StartedAt:   startedAt,
	})
}

func NewSessionCompletedEvent(sessionID string, candidateID, mockTestID uint, composite float64, bands map[models.Section]float64, completedAt time.Time) *ExamEvent {
	return newEvent(EventSessionCompleted, SessionCompletedEvent{
		SessionID:     sessionID,
		CandidateID:   candidateID,
		MockTestID:    mockTestID,
		CompositeBand: composite,
		SectionBands:  bands,
		CompletedAt:   completedAt,
	})
}

func NewSessionExpiredEvent(sessionID string, candidateID uint, section models.Section, expiredAt time.Time) *ExamEvent {
	return newEvent(EventSessionExpired, SessionExpiredEvent{
		SessionID:   sessionID,
		CandidateID: candidateID,
		Section:     section,
		ExpiredAt:   expiredAt,
	})
}

func NewSectionRecordedEvent(sessionID string, candidateID uint, result *models.SectionResult, autoSubmit bool) *ExamEvent {
	return newEvent(EventSectionRecorded, SectionRecordedEvent{
		SessionID:   sessionID,
		CandidateID: candidateID,
		Section:     result.Section,
		Band:        result.Band,
		RawCorrect:  result.RawCorrect,
		RawTotal:    result.RawTotal,
		AutoSubmit:  autoSubmit,
		RecordedAt:  result.RecordedAt,
	})
}

func NewSectionRetakenEvent(sessionID string, section models.Section) *ExamEvent {
	return newEvent(EventSectionRetaken, SectionRetakenEvent{
		SessionID: sessionID,
		Section:   section,
		RetakenAt: time.Now(),
	})
}

func newEvent(eventType EventType, data interface{}) *ExamEvent {
	return &ExamEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    "exam-service",
		Version:   "1.0",
		Data:      data,
	}
}
