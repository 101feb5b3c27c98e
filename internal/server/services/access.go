package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/dmitrijs2005/papervault/internal/dbx"
	"github.com/dmitrijs2005/papervault/internal/logging"
	"github.com/dmitrijs2005/papervault/internal/server/models"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/repomanager"
)

// Permission names checked by the transport layer.
const (
	PermUploadPaper  = "UPLOAD_PAPER"
	PermReadPaper    = "READ_PAPER"
	PermUpdatePaper  = "UPDATE_PAPER"
	PermDeletePaper  = "DELETE_PAPER"
	PermGrantRole    = "GRANT_ROLE"
	PermReadRole     = "READ_ROLE"
	PermDeleteUser   = "DELETE_USER"
	PermCreateCourse = "CREATE_COURSE"
	PermReadCourse   = "READ_COURSE"
)

// Role names of the default bootstrap.
const (
	RoleAdmin              = "ADMIN"
	RolePaperCreator       = "PAPER_CREATOR"
	RolePaperModerator     = "PAPER_MODERATOR"
	RoleFirstMaker         = "FIRST_MAKER"
	RoleSecondMaker        = "SECOND_MAKER"
	RoleAcademyCoordinator = "ACADEMY_COORDINATOR"
)

// Binding attaches the permission named Permission to the role named Role.
type Binding struct {
	Role       string
	Permission string
}

// Bootstrap is the declarative access-control seed.
type Bootstrap struct {
	Permissions []models.Permission
	Roles       []models.Role
	Bindings    []Binding
}

// DefaultBootstrap returns the seed the server applies on start.
func DefaultBootstrap() Bootstrap {
	perm := func(name, description, category string) models.Permission {
		return models.Permission{Name: name, Description: description, Category: category}
	}

	b := Bootstrap{
		Permissions: []models.Permission{
			perm("CREATE_USER", "Allows creating of new users", "User Management"),
			perm("UPDATE_USER", "Allows editing of user information", "User Management"),
			perm("DELETE_USER", "Allows deletion of user", "User Management"),
			perm("READ_USER", "Allows viewing of users", "User Management"),
			perm("CHANGE_USER_STATUS", "Allows changing of user status", "User Management"),

			perm("CREATE_ROLE", "Allows creating new roles", "Role Management"),
			perm("UPDATE_ROLE", "Allows editing of role information", "Role Management"),
			perm("DELETE_ROLE", "Allows deletion of roles", "Role Management"),
			perm("READ_ROLE", "Allows viewing of roles", "Role Management"),

			perm("CREATE_DEGREE_PROGRAM", "Allows creating new degree programs", "Degree Program"),
			perm("UPDATE_DEGREE_PROGRAM", "Allows editing degree program information", "Degree Program"),
			perm("DELETE_DEGREE_PROGRAM", "Allows deletion of degree programs", "Degree Program"),
			perm("READ_DEGREE_PROGRAM", "Allows viewing of degree programs", "Degree Program"),

			perm("CREATE_COURSE", "Allows creating new courses", "Courses"),
			perm("UPDATE_COURSE", "Allows editing of course details", "Courses"),
			perm("DELETE_COURSE", "Allows deletion of courses", "Courses"),
			perm("READ_COURSE", "Allows viewing of courses", "Courses"),

			perm(PermUploadPaper, "Allows uploading of exam papers", "Papers"),
			perm(PermReadPaper, "Allows viewing and downloading of exam papers", "Papers"),
			perm(PermUpdatePaper, "Allows editing of exam paper details", "Papers"),
			perm(PermDeletePaper, "Allows deletion of exam papers", "Papers"),
			perm(PermGrantRole, "Allows granting and revoking user roles", "Role Management"),
		},
		Roles: []models.Role{
			{Name: RoleAdmin, Description: "Administrator role(Head of the department)"},
			{Name: RolePaperCreator, Description: "Role responsible for creating exam papers"},
			{Name: RolePaperModerator, Description: "Role responsible for moderating exam papers"},
			{Name: RoleFirstMaker, Description: "Role responsible for moderating and reviewing exam papers (First Maker)"},
			{Name: RoleSecondMaker, Description: "Role responsible for reviewing and finalizing exam papers (Second Maker)"},
			{Name: RoleAcademyCoordinator, Description: "Role responsible for overseeing the academic aspects and coordination"},
		},
	}

	// the administrator holds every permission
	for _, p := range b.Permissions {
		b.Bindings = append(b.Bindings, Binding{Role: RoleAdmin, Permission: p.Name})
	}

	b.Bindings = append(b.Bindings,
		Binding{RoleAcademyCoordinator, "READ_USER"},
		Binding{RoleAcademyCoordinator, "READ_ROLE"},
		Binding{RolePaperCreator, PermUploadPaper},
		Binding{RolePaperCreator, PermReadPaper},
		Binding{RolePaperCreator, PermUpdatePaper},
		Binding{RolePaperCreator, "READ_COURSE"},
		Binding{RolePaperModerator, PermReadPaper},
		Binding{RolePaperModerator, PermUpdatePaper},
		Binding{RolePaperModerator, "READ_COURSE"},
		Binding{RoleFirstMaker, PermReadPaper},
		Binding{RoleSecondMaker, PermReadPaper},
	)

	return b
}

// AccessService owns roles, permissions and their bindings to users.
type AccessService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewAccessService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *AccessService {
	return &AccessService{db: db, repomanager: m, logger: logger.With("module", "access")}
}

// Seed inserts whatever part of b is missing. Every record is looked up by
// its natural key first, so running Seed again changes nothing. The run is
// atomic: on any failure nothing is written.
func (s *AccessService) Seed(ctx context.Context, b Bootstrap) error {
	created := 0

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created = 0
		permRepo := s.repomanager.Permissions(tx)
		roleRepo := s.repomanager.Roles(tx)
		bindRepo := s.repomanager.RolePermissions(tx)

		permIDs := make(map[string]string, len(b.Permissions))
		for _, p := range b.Permissions {
			existing, err := permRepo.GetByName(ctx, p.Name)
			switch {
			case err == nil:
				permIDs[p.Name] = existing.ID
			case errors.Is(err, common.ErrorNotFound):
				p := p
				if _, err := permRepo.Create(ctx, &p); err != nil {
					return fmt.Errorf("permission %s: %w", p.Name, err)
				}
				permIDs[p.Name] = p.ID
				created++
			default:
				return err
			}
		}

		roleIDs := make(map[string]string, len(b.Roles))
		for _, r := range b.Roles {
			existing, err := roleRepo.GetByName(ctx, r.Name)
			switch {
			case err == nil:
				roleIDs[r.Name] = existing.ID
			case errors.Is(err, common.ErrorNotFound):
				r := r
				if _, err := roleRepo.Create(ctx, &r); err != nil {
					return fmt.Errorf("role %s: %w", r.Name, err)
				}
				roleIDs[r.Name] = r.ID
				created++
			default:
				return err
			}
		}

		for _, bnd := range b.Bindings {
			roleID, ok := roleIDs[bnd.Role]
			if !ok {
				return fmt.Errorf("binding role %s: %w", bnd.Role, common.ErrReferenceNotFound)
			}
			permID, ok := permIDs[bnd.Permission]
			if !ok {
				return fmt.Errorf("binding permission %s: %w", bnd.Permission, common.ErrReferenceNotFound)
			}

			exists, err := bindRepo.Exists(ctx, roleID, permID)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := bindRepo.Create(ctx, roleID, permID); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "access control seeding failed", "error", err)
		return err
	}

	s.logger.Info(ctx, "access control seeded", "created", created)
	return nil
}

// GrantRole binds roleID to userID.
func (s *AccessService) GrantRole(ctx context.Context, userID, roleID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Users(tx).GetByID(ctx, userID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("user %s: %w", userID, common.ErrReferenceNotFound)
			}
			return err
		}

		ok, err := s.repomanager.Roles(tx).Exists(ctx, roleID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("role %s: %w", roleID, common.ErrReferenceNotFound)
		}

		repo := s.repomanager.UserRoles(tx)
		bound, err := repo.Exists(ctx, userID, roleID)
		if err != nil {
			return err
		}
		if bound {
			return common.ErrDuplicateBinding
		}
		return repo.Create(ctx, userID, roleID)
	})
}

// RevokeRole removes the binding, or returns common.ErrorNotFound.
func (s *AccessService) RevokeRole(ctx context.Context, userID, roleID string) error {
	return s.repomanager.UserRoles(s.db).Delete(ctx, userID, roleID)
}

// HasPermission reports whether any role of userID carries permissionName.
func (s *AccessService) HasPermission(ctx context.Context, userID, permissionName string) (bool, error) {
	return s.repomanager.UserRoles(s.db).HasPermission(ctx, userID, permissionName)
}

// EnsureRole binds the role called roleName to userID unless it already is.
func (s *AccessService) EnsureRole(ctx context.Context, userID, roleName string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		role, err := s.repomanager.Roles(tx).GetByName(ctx, roleName)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("role %s: %w", roleName, common.ErrReferenceNotFound)
			}
			return err
		}

		repo := s.repomanager.UserRoles(tx)
		bound, err := repo.Exists(ctx, userID, role.ID)
		if err != nil || bound {
			return err
		}
		return repo.Create(ctx, userID, role.ID)
	})
}

func (s *AccessService) ListRoles(ctx context.Context) ([]*models.Role, error) {
	return s.repomanager.Roles(s.db).List(ctx)
}

func (s *AccessService) ListUserRoles(ctx context.Context, userID string) ([]*models.Role, error) {
	return s.repomanager.UserRoles(s.db).ListByUser(ctx, userID)
}
