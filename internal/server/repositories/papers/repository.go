// Package papers declares the repository contract for paper metadata and
// its PostgreSQL implementation.
package papers

import (
	"context"

	"github.com/dmitrijs2005/papervault/internal/server/models"
)

// Repository stores paper rows and their course associations.
type Repository interface {
	// Create inserts the paper row and fills ID and timestamps. Courses are
	// attached separately with SetCourses.
	Create(ctx context.Context, paper *models.Paper) (*models.Paper, error)

	// SetCourses replaces the course set of paperID.
	SetCourses(ctx context.Context, paperID string, courseIDs []string) error

	// GetByID returns the paper with its course ids, or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.Paper, error)

	// ExistsByStoragePath reports whether a paper already owns path.
	ExistsByStoragePath(ctx context.Context, path string) (bool, error)

	List(ctx context.Context) ([]*models.Paper, error)

	// ListByParticipant returns papers where userID is creator or moderator.
	ListByParticipant(ctx context.Context, userID string) ([]*models.Paper, error)

	// CountByParticipant counts papers where userID is creator or moderator.
	CountByParticipant(ctx context.Context, userID string) (int, error)

	// Update writes the mutable metadata columns (file name, remarks,
	// academic year) and bumps updated_at.
	Update(ctx context.Context, paper *models.Paper) error

	// Delete removes the paper row; course links cascade.
	Delete(ctx context.Context, id string) error

	// ListStoragePaths returns the storage path of every paper.
	ListStoragePaths(ctx context.Context) ([]string, error)
}
