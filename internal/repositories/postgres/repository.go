package postgres

import (
	"gorm.io/gorm"

	"github.com/ielts-sim/exam-service/internal/repositories"
)

type repository struct {
	session  repositories.SessionRepository
	mockTest repositories.MockTestRepository
}

// NewRepository bundles the PostgreSQL-backed repositories.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		session:  NewSessionPostgreSQL(db),
		mockTest: NewMockTestPostgreSQL(db),
	}
}

func (r *repository) Session() repositories.SessionRepository   { return r.session }
func (r *repository) MockTest() repositories.MockTestRepository { return r.mockTest }
