package courses

import (
	"context"

	"github.com/dmitrijs2005/papervault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, course *models.Course) (*models.Course, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]*models.Course, error)
}
