// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/papervault/internal/dbx"
	"github.com/dmitrijs2005/papervault/internal/server/migrations"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/academicyears"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/courses"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/papers"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/permissions"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/rolepermissions"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/roles"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/userroles"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// RefreshTokens returns a refreshtokens.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

// Papers returns a papers.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Papers(db dbx.DBTX) papers.Repository {
	return papers.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Courses(db dbx.DBTX) courses.Repository {
	return courses.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) AcademicYears(db dbx.DBTX) academicyears.Repository {
	return academicyears.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Roles(db dbx.DBTX) roles.Repository {
	return roles.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Permissions(db dbx.DBTX) permissions.Repository {
	return permissions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RolePermissions(db dbx.DBTX) rolepermissions.Repository {
	return rolepermissions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) UserRoles(db dbx.DBTX) userroles.Repository {
	return userroles.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
