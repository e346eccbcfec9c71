package services

import (
	"context"
	"fmt"

	"github.com/ielts-sim/exam-service/internal/models"
	"github.com/ielts-sim/exam-service/internal/repositories"
	"github.com/ielts-sim/exam-service/internal/utils"
)

type mockTestService struct {
	repo   repositories.Repository
	logger utils.Logger
}

func NewMockTestService(repo repositories.Repository, logger utils.Logger) MockTestService {
	return &mockTestService{repo: repo, logger: logger}
}

func (s *mockTestService) Get(ctx context.Context, id uint) (*models.MockTest, error) {
	test, err := s.repo.MockTest().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrMockTestNotFound
		}
		return nil, fmt.Errorf("failed to load mock test: %w", err)
	}
	return test, nil
}

func (s *mockTestService) List(ctx context.Context, filters repositories.MockTestFilters) ([]*models.MockTest, int64, error) {
	tests, total, err := s.repo.MockTest().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list mock tests: %w", err)
	}
	return tests, total, nil
}
