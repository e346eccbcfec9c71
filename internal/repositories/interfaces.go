package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ielts-sim/exam-service/internal/models"
)

// ===== FILTERS =====

type SessionFilters struct {
	Status     *models.SessionStatus `json:"status"`
	MockTestID *uint                 `json:"mock_test_id"`
	DateFrom   *time.Time            `json:"date_from"`
	DateTo     *time.Time            `json:"date_to"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`
	SortBy     string                `json:"sort_by"`    // "started_at", "completed_at"
	SortOrder  string                `json:"sort_order"` // "asc", "desc"
}

type MockTestFilters struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ===== REPOSITORY INTERFACES =====

// SessionRepository is the result persistence gateway. All writes are
// whole-section-result writes keyed by the opaque session id; partial
// field patches are not part of the contract.
type SessionRepository interface {
	Create(ctx context.Context, session *models.ExamSession) error
	GetByID(ctx context.Context, id string) (*models.ExamSession, error)
	GetByIDWithResults(ctx context.Context, id string) (*models.ExamSession, error)
	Update(ctx context.Context, session *models.ExamSession) error

	// RecordSection writes one complete SectionResult and advances the
	// session's current section in a single transaction.
	RecordSection(ctx context.Context, session *models.ExamSession, result *models.SectionResult) error

	// DeleteSectionResult removes a section's result for an explicit retake.
	DeleteSectionResult(ctx context.Context, sessionID string, section models.Section) error

	// Finalize stores the composite band and the completed status.
	Finalize(ctx context.Context, session *models.ExamSession) error

	ListByCandidate(ctx context.Context, candidateID uint, filters SessionFilters) ([]*models.ExamSession, int64, error)
}

// MockTestRepository serves the read-only authoring data.
type MockTestRepository interface {
	GetByID(ctx context.Context, id uint) (*models.MockTest, error)
	GetSection(ctx context.Context, mockTestID uint, section models.Section) (*models.SectionDefinition, error)
	List(ctx context.Context, filters MockTestFilters) ([]*models.MockTest, int64, error)
}

// Repository bundles the repositories handed to services.
type Repository interface {
	Session() SessionRepository
	MockTest() MockTestRepository
}

// IsNotFoundError reports whether err is the storage layer's not-found.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateError reports whether err is a unique-constraint violation.
// Relies on the dialector's error translation being enabled.
func IsDuplicateError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
