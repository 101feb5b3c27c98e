package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/dmitrijs2005/papervault/internal/server/models"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/repomanager"
)

// ReferenceService manages the courses and academic years papers point to.
type ReferenceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewReferenceService(db *sql.DB, m repomanager.RepositoryManager) *ReferenceService {
	return &ReferenceService{db: db, repomanager: m}
}

func (s *ReferenceService) CreateCourse(ctx context.Context, code, name string) (*models.Course, error) {
	code, name = strings.TrimSpace(code), strings.TrimSpace(name)
	if code == "" || name == "" {
		return nil, fmt.Errorf("course code and name are required: %w", common.ErrValidation)
	}
	return s.repomanager.Courses(s.db).Create(ctx, &models.Course{Code: code, Name: name})
}

func (s *ReferenceService) ListCourses(ctx context.Context) ([]*models.Course, error) {
	return s.repomanager.Courses(s.db).List(ctx)
}

func (s *ReferenceService) CreateAcademicYear(ctx context.Context, name string) (*models.AcademicYear, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("academic year name is required: %w", common.ErrValidation)
	}
	return s.repomanager.AcademicYears(s.db).Create(ctx, &models.AcademicYear{Name: name})
}

func (s *ReferenceService) ListAcademicYears(ctx context.Context) ([]*models.AcademicYear, error) {
	return s.repomanager.AcademicYears(s.db).List(ctx)
}
