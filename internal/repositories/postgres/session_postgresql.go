package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ielts-sim/exam-service/internal/models"
	"github.com/ielts-sim/exam-service/internal/repositories"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) Create(ctx context.Context, session *models.ExamSession) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, id string) (*models.ExamSession, error) {
	var session models.ExamSession
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) GetByIDWithResults(ctx context.Context, id string) (*models.ExamSession, error) {
	var session models.ExamSession
	if err := s.db.WithContext(ctx).
		Preload("Results").
		First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) Update(ctx context.Context, session *models.ExamSession) error {
	return s.db.WithContext(ctx).Save(session).Error
}

// RecordSection writes the section result and the advanced session
// pointer atomically. The unique (session_id, section) index backstops
// the state machine's idempotency rule against concurrent retries.
func (s *SessionPostgreSQL) RecordSection(ctx context.Context, session *models.ExamSession, result *models.SectionResult) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(result).Error; err != nil {
			return err
		}
		return tx.Model(&models.ExamSession{}).
			Where("id = ?", session.ID).
			Updates(map[string]interface{}{
				"status":          session.Status,
				"current_section": session.CurrentSection,
				"updated_at":      time.Now(),
			}).Error
	})
}

func (s *SessionPostgreSQL) DeleteSectionResult(ctx context.Context, sessionID string, section models.Section) error {
	return s.db.WithContext(ctx).
		Where("session_id = ? AND section = ?", sessionID, section).
		Delete(&models.SectionResult{}).Error
}

func (s *SessionPostgreSQL) Finalize(ctx context.Context, session *models.ExamSession) error {
	return s.db.WithContext(ctx).Model(&models.ExamSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]interface{}{
			"status":          session.Status,
			"current_section": nil,
			"composite_band":  session.CompositeBand,
			"completed_at":    session.CompletedAt,
			"updated_at":      time.Now(),
		}).Error
}

func (s *SessionPostgreSQL) ListByCandidate(ctx context.Context, candidateID uint, filters repositories.SessionFilters) ([]*models.ExamSession, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ExamSession{}).
		Where("candidate_id = ?", candidateID)

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.MockTestID != nil {
		query = query.Where("mock_test_id = ?", *filters.MockTestID)
	}
	if filters.DateFrom != nil {
		query = query.Where("started_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("started_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "started_at"
	}
	sortOrder := filters.SortOrder
	if sortOrder != "asc" {
		sortOrder = "desc"
	}
	query = query.Order(sortBy + " " + sortOrder)

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var sessions []*models.ExamSession
	if err := query.Preload("Results").Find(&sessions).Error; err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}
