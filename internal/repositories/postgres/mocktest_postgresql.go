package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/ielts-sim/exam-service/internal/models"
	"github.com/ielts-sim/exam-service/internal/repositories"
)

type MockTestPostgreSQL struct {
	db *gorm.DB
}

func NewMockTestPostgreSQL(db *gorm.DB) repositories.MockTestRepository {
	return &MockTestPostgreSQL{db: db}
}

func (m *MockTestPostgreSQL) GetByID(ctx context.Context, id uint) (*models.MockTest, error) {
	var test models.MockTest
	if err := m.db.WithContext(ctx).
		Preload("Sections").
		First(&test, id).Error; err != nil {
		return nil, err
	}
	return &test, nil
}

// GetSection loads one skill's full authoring payload: groups in
// section order with their questions.
func (m *MockTestPostgreSQL) GetSection(ctx context.Context, mockTestID uint, section models.Section) (*models.SectionDefinition, error) {
	var def models.SectionDefinition
	if err := m.db.WithContext(ctx).
		Preload("Groups", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_in_section ASC")
		}).
		Preload("Groups.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("number ASC")
		}).
		Where("mock_test_id = ? AND section = ?", mockTestID, section).
		First(&def).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

func (m *MockTestPostgreSQL) List(ctx context.Context, filters repositories.MockTestFilters) ([]*models.MockTest, int64, error) {
	query := m.db.WithContext(ctx).Model(&models.MockTest{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var tests []*models.MockTest
	if err := query.Order("id ASC").Find(&tests).Error; err != nil {
		return nil, 0, err
	}
	return tests, total, nil
}
