package userroles

import (
	"context"

	"github.com/dmitrijs2005/papervault/internal/server/models"
)

// Repository manages user to role bindings with set semantics: a
// (user, role) pair exists at most once.
type Repository interface {
	Exists(ctx context.Context, userID, roleID string) (bool, error)
	// Create returns common.ErrDuplicateBinding when the pair already exists.
	Create(ctx context.Context, userID, roleID string) error
	// Delete returns common.ErrorNotFound when the pair does not exist.
	Delete(ctx context.Context, userID, roleID string) error
	DeleteByUser(ctx context.Context, userID string) error
	ListByUser(ctx context.Context, userID string) ([]*models.Role, error)
	// HasPermission reports whether any role of userID is bound to the
	// permission called name.
	HasPermission(ctx context.Context, userID, name string) (bool, error)
}
