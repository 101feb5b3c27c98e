// Package academicyears stores the academic year reference data.
package academicyears

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/dmitrijs2005/papervault/internal/dbx"
	"github.com/dmitrijs2005/papervault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, year *models.AcademicYear) (*models.AcademicYear, error) {
	if err := r.db.QueryRowContext(ctx, `INSERT INTO academic_years (name) VALUES ($1) RETURNING id`, year.Name).Scan(&year.ID); err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("academic year %q exists: %w", year.Name, common.ErrValidation)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return year, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, id string) (bool, error) {
	if !dbx.IsUUID(id) {
		return false, nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM academic_years WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.AcademicYear, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM academic_years ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to select academic years: %w", err)
	}
	defer rows.Close()

	var result []*models.AcademicYear
	for rows.Next() {
		y := &models.AcademicYear{}
		if err := rows.Scan(&y.ID, &y.Name); err != nil {
			return nil, err
		}
		result = append(result, y)
	}
	return result, rows.Err()
}
