// Package courses stores the course reference data papers are attached to.
package courses

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

func (r *PostgresRepository) Create(ctx context.Context, course *models.Course) (*models.Course, error) {
	query :=
		`INSERT INTO courses (code, name)
		VALUES ($1, $2)
		RETURNING id
		`

	if err := r.db.QueryRowContext(ctx, query, course.Code, course.Name).Scan(&course.ID); err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("course %q exists: %w", course.Code, common.ErrValidation)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return course, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, id string) (bool, error) {
	if !dbx.IsUUID(id) {
		return false, nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Course, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, code, name FROM courses ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to select courses: %w", err)
	}
	defer rows.Close()

	var result []*models.Course
	for rows.Next() {
		c := &models.Course{}
		if err := rows.Scan(&c.ID, &c.Code, &c.Name); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
