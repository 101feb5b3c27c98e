package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/papervault/internal/dbx"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/academicyears"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/courses"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/papers"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/permissions"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/rolepermissions"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/roles"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/userroles"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Papers(db dbx.DBTX) papers.Repository
	Courses(db dbx.DBTX) courses.Repository
	AcademicYears(db dbx.DBTX) academicyears.Repository
	Roles(db dbx.DBTX) roles.Repository
	Permissions(db dbx.DBTX) permissions.Repository
	RolePermissions(db dbx.DBTX) rolepermissions.Repository
	UserRoles(db dbx.DBTX) userroles.Repository
}
