package roles

import (
	"context"

	"github.com/dmitrijs2005/papervault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, role *models.Role) (*models.Role, error)
	// GetByName returns common.ErrorNotFound when no role carries name.
	GetByName(ctx context.Context, name string) (*models.Role, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]*models.Role, error)
}
