// Package permissions persists named permissions. Permission names are unique.
package permissions

import (
	"context"
	"database/sql"
	"errors"
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

func (r *PostgresRepository) Create(ctx context.Context, p *models.Permission) (*models.Permission, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO permissions (name, description, category) VALUES ($1, $2, $3) RETURNING id`,
		p.Name, p.Description, p.Category).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.Permission, error) {
	p := &models.Permission{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, category FROM permissions WHERE name = $1`, name).
		Scan(&p.ID, &p.Name, &p.Description, &p.Category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Permission, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description, category FROM permissions ORDER BY category, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to select permissions: %w", err)
	}
	defer rows.Close()

	var result []*models.Permission
	for rows.Next() {
		p := &models.Permission{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
