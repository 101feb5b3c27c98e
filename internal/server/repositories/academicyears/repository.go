package academicyears

import (
	"context"

	"github.com/dmitrijs2005/papervault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, year *models.AcademicYear) (*models.AcademicYear, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]*models.AcademicYear, error)
}
