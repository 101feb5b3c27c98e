package papers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/dmitrijs2005/papervault/internal/dbx"
	"github.com/dmitrijs2005/papervault/internal/server/models"
)

const selectPaper = `SELECT id, file_name, storage_path, creator_id, moderator_id, remarks, academic_year_id, created_at, updated_at
		FROM papers`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, paper *models.Paper) (*models.Paper, error) {

	query :=
		`INSERT INTO papers (file_name, storage_path, creator_id, moderator_id, remarks, academic_year_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
		`

	err := r.db.QueryRowContext(ctx, query,
		paper.FileName, paper.StoragePath, paper.CreatorID, paper.ModeratorID, paper.Remarks, paper.AcademicYearID,
	).Scan(&paper.ID, &paper.CreatedAt, &paper.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return paper, nil
}

func (r *PostgresRepository) SetCourses(ctx context.Context, paperID string, courseIDs []string) error {

	if _, err := r.db.ExecContext(ctx, `DELETE FROM paper_courses WHERE paper_id = $1`, paperID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	for _, courseID := range courseIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO paper_courses (paper_id, course_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			paperID, courseID)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Paper, error) {
	if !dbx.IsUUID(id) {
		return nil, common.ErrorNotFound
	}

	p := &models.Paper{}
	err := r.db.QueryRowContext(ctx, selectPaper+` WHERE id = $1`, id).Scan(
		&p.ID, &p.FileName, &p.StoragePath, &p.CreatorID, &p.ModeratorID, &p.Remarks, &p.AcademicYearID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if p.CourseIDs, err = r.courseIDs(ctx, p.ID); err != nil {
		return nil, err
	}

	return p, nil
}

func (r *PostgresRepository) ExistsByStoragePath(ctx context.Context, path string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM papers WHERE storage_path = $1)`, path).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Paper, error) {
	return r.list(ctx, selectPaper+` ORDER BY created_at, id`)
}

func (r *PostgresRepository) ListByParticipant(ctx context.Context, userID string) ([]*models.Paper, error) {
	if !dbx.IsUUID(userID) {
		return nil, nil
	}
	return r.list(ctx, selectPaper+` WHERE creator_id = $1 OR moderator_id = $1 ORDER BY created_at, id`, userID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Paper, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select papers: %w", err)
	}

	var result []*models.Paper

	defer rows.Close()
	for rows.Next() {
		p := &models.Paper{}
		err := rows.Scan(&p.ID, &p.FileName, &p.StoragePath, &p.CreatorID, &p.ModeratorID, &p.Remarks, &p.AcademicYearID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range result {
		if p.CourseIDs, err = r.courseIDs(ctx, p.ID); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (r *PostgresRepository) courseIDs(ctx context.Context, paperID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT course_id FROM paper_courses WHERE paper_id = $1 ORDER BY course_id`, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to select paper courses: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PostgresRepository) CountByParticipant(ctx context.Context, userID string) (int, error) {
	if !dbx.IsUUID(userID) {
		return 0, nil
	}
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM papers WHERE creator_id = $1 OR moderator_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Update(ctx context.Context, paper *models.Paper) error {
	if !dbx.IsUUID(paper.ID) {
		return common.ErrorNotFound
	}

	query :=
		`UPDATE papers SET file_name = $2, remarks = $3, academic_year_id = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
		`

	err := r.db.QueryRowContext(ctx, query, paper.ID, paper.FileName, paper.Remarks, paper.AcademicYearID).Scan(&paper.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if !dbx.IsUUID(id) {
		return common.ErrorNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM papers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete paper: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) ListStoragePaths(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT storage_path FROM papers`)
	if err != nil {
		return nil, fmt.Errorf("failed to select storage paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
