package permissions

import (
	"context"

	"github.com/dmitrijs2005/papervault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Permission) (*models.Permission, error)
	// GetByName returns common.ErrorNotFound when no permission carries name.
	GetByName(ctx context.Context, name string) (*models.Permission, error)
	List(ctx context.Context) ([]*models.Permission, error)
}
