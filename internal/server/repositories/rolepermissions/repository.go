package rolepermissions

import "context"

type Repository interface {
	Exists(ctx context.Context, roleID, permissionID string) (bool, error)
	Create(ctx context.Context, roleID, permissionID string) error
	// PermissionNames lists the permission names bound to roleID.
	PermissionNames(ctx context.Context, roleID string) ([]string, error)
}
