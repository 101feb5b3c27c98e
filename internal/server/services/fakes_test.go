package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/dmitrijs2005/papervault/internal/dbx"
	"github.com/dmitrijs2005/papervault/internal/server/models"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/academicyears"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/courses"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/papers"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/permissions"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/rolepermissions"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/roles"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/userroles"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// newTxDB returns an empty SQLite database. The fake repositories ignore it;
// it only gives dbx.WithTx something real to begin and commit.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// memDB is an in-memory stand-in for the Postgres schema.
type memDB struct {
	mu sync.Mutex

	users        map[string]*models.User
	tokens       map[string]*models.RefreshToken
	papers       map[string]*models.Paper
	courses      map[string]*models.Course
	years        map[string]*models.AcademicYear
	roles        map[string]*models.Role
	permissions  map[string]*models.Permission
	rolePerms    map[[2]string]bool
	userRoles    map[[2]string]bool
	failPapers   error
	failPermsAdd error
}

func newMemDB() *memDB {
	return &memDB{
		users:       map[string]*models.User{},
		tokens:      map[string]*models.RefreshToken{},
		papers:      map[string]*models.Paper{},
		courses:     map[string]*models.Course{},
		years:       map[string]*models.AcademicYear{},
		roles:       map[string]*models.Role{},
		permissions: map[string]*models.Permission{},
		rolePerms:   map[[2]string]bool{},
		userRoles:   map[[2]string]bool{},
	}
}

type memManager struct{ m *memDB }

var _ repomanager.RepositoryManager = memManager{}

func (mm memManager) RunMigrations(context.Context, *sql.DB) error        { return nil }
func (mm memManager) Users(dbx.DBTX) users.Repository                     { return memUsers{mm.m} }
func (mm memManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository     { return memTokens{mm.m} }
func (mm memManager) Papers(dbx.DBTX) papers.Repository                   { return memPapers{mm.m} }
func (mm memManager) Courses(dbx.DBTX) courses.Repository                 { return memCourses{mm.m} }
func (mm memManager) AcademicYears(dbx.DBTX) academicyears.Repository     { return memYears{mm.m} }
func (mm memManager) Roles(dbx.DBTX) roles.Repository                     { return memRoles{mm.m} }
func (mm memManager) Permissions(dbx.DBTX) permissions.Repository         { return memPermissions{mm.m} }
func (mm memManager) RolePermissions(dbx.DBTX) rolepermissions.Repository { return memRolePerms{mm.m} }
func (mm memManager) UserRoles(dbx.DBTX) userroles.Repository             { return memUserRoles{mm.m} }

// --- users ---

type memUsers struct{ m *memDB }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.users {
		if existing.UserName == u.UserName {
			return nil, common.ErrValidation
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	cp := *u
	r.m.users[u.ID] = &cp
	return u, nil
}

func (r memUsers) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.UserName == login {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.users, id)
	return nil
}

// --- refresh tokens ---

type memTokens struct{ m *memDB }

func (r memTokens) Create(_ context.Context, userID, token string, validity time.Duration) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.tokens[token] = &models.RefreshToken{UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (r memTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r memTokens) Delete(_ context.Context, token string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.tokens, token)
	return nil
}

func (r memTokens) DeleteByUser(_ context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for k, t := range r.m.tokens {
		if t.UserID == userID {
			delete(r.m.tokens, k)
		}
	}
	return nil
}

// --- papers ---

type memPapers struct{ m *memDB }

func clonePaper(p *models.Paper) *models.Paper {
	cp := *p
	cp.CourseIDs = append([]string(nil), p.CourseIDs...)
	return &cp
}

func (r memPapers) Create(_ context.Context, p *models.Paper) (*models.Paper, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failPapers != nil {
		return nil, r.m.failPapers
	}
	for _, existing := range r.m.papers {
		if existing.StoragePath == p.StoragePath {
			return nil, common.ErrValidation
		}
	}
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	stored := clonePaper(p)
	stored.CourseIDs = nil
	r.m.papers[p.ID] = stored
	return p, nil
}

func (r memPapers) SetCourses(_ context.Context, paperID string, courseIDs []string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.papers[paperID]
	if !ok {
		return common.ErrorNotFound
	}
	p.CourseIDs = append([]string(nil), courseIDs...)
	sort.Strings(p.CourseIDs)
	return nil
}

func (r memPapers) GetByID(_ context.Context, id string) (*models.Paper, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.papers[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clonePaper(p), nil
}

func (r memPapers) ExistsByStoragePath(_ context.Context, path string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.papers {
		if p.StoragePath == path {
			return true, nil
		}
	}
	return false, nil
}

func (r memPapers) list(keep func(*models.Paper) bool) []*models.Paper {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*models.Paper{}
	for _, p := range r.m.papers {
		if keep(p) {
			out = append(out, clonePaper(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out
}

func (r memPapers) List(context.Context) ([]*models.Paper, error) {
	return r.list(func(*models.Paper) bool { return true }), nil
}

func (r memPapers) ListByParticipant(_ context.Context, userID string) ([]*models.Paper, error) {
	return r.list(func(p *models.Paper) bool { return p.CreatorID == userID || p.ModeratorID == userID }), nil
}

func (r memPapers) CountByParticipant(ctx context.Context, userID string) (int, error) {
	ps, _ := r.ListByParticipant(ctx, userID)
	return len(ps), nil
}

func (r memPapers) Update(_ context.Context, p *models.Paper) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.papers[p.ID]
	if !ok {
		return common.ErrorNotFound
	}
	stored.FileName = p.FileName
	stored.Remarks = p.Remarks
	stored.AcademicYearID = p.AcademicYearID
	stored.UpdatedAt = time.Now()
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r memPapers) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.papers[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.papers, id)
	return nil
}

func (r memPapers) ListStoragePaths(context.Context) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []string{}
	for _, p := range r.m.papers {
		out = append(out, p.StoragePath)
	}
	return out, nil
}

// --- reference data ---

type memCourses struct{ m *memDB }

func (r memCourses) Create(_ context.Context, c *models.Course) (*models.Course, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c.ID = uuid.NewString()
	cp := *c
	r.m.courses[c.ID] = &cp
	return c, nil
}

func (r memCourses) Exists(_ context.Context, id string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	_, ok := r.m.courses[id]
	return ok, nil
}

func (r memCourses) List(context.Context) ([]*models.Course, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*models.Course{}
	for _, c := range r.m.courses {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

type memYears struct{ m *memDB }

func (r memYears) Create(_ context.Context, y *models.AcademicYear) (*models.AcademicYear, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	y.ID = uuid.NewString()
	cp := *y
	r.m.years[y.ID] = &cp
	return y, nil
}

func (r memYears) Exists(_ context.Context, id string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	_, ok := r.m.years[id]
	return ok, nil
}

func (r memYears) List(context.Context) ([]*models.AcademicYear, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*models.AcademicYear{}
	for _, y := range r.m.years {
		cp := *y
		out = append(out, &cp)
	}
	return out, nil
}

// --- access control ---

type memRoles struct{ m *memDB }

func (r memRoles) Create(_ context.Context, role *models.Role) (*models.Role, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	role.ID = uuid.NewString()
	cp := *role
	r.m.roles[role.ID] = &cp
	return role, nil
}

func (r memRoles) GetByName(_ context.Context, name string) (*models.Role, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, role := range r.m.roles {
		if role.Name == name {
			cp := *role
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memRoles) Exists(_ context.Context, id string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	_, ok := r.m.roles[id]
	return ok, nil
}

func (r memRoles) List(context.Context) ([]*models.Role, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*models.Role{}
	for _, role := range r.m.roles {
		cp := *role
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memPermissions struct{ m *memDB }

func (r memPermissions) Create(_ context.Context, p *models.Permission) (*models.Permission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failPermsAdd != nil {
		return nil, r.m.failPermsAdd
	}
	p.ID = uuid.NewString()
	cp := *p
	r.m.permissions[p.ID] = &cp
	return p, nil
}

func (r memPermissions) GetByName(_ context.Context, name string) (*models.Permission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.permissions {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memPermissions) List(context.Context) ([]*models.Permission, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*models.Permission{}
	for _, p := range r.m.permissions {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

type memRolePerms struct{ m *memDB }

func (r memRolePerms) Exists(_ context.Context, roleID, permissionID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.rolePerms[[2]string{roleID, permissionID}], nil
}

func (r memRolePerms) Create(_ context.Context, roleID, permissionID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.rolePerms[[2]string{roleID, permissionID}] = true
	return nil
}

func (r memRolePerms) PermissionNames(_ context.Context, roleID string) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []string{}
	for k := range r.m.rolePerms {
		if k[0] == roleID {
			out = append(out, r.m.permissions[k[1]].Name)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memUserRoles struct{ m *memDB }

func (r memUserRoles) Exists(_ context.Context, userID, roleID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.userRoles[[2]string{userID, roleID}], nil
}

func (r memUserRoles) Create(_ context.Context, userID, roleID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k := [2]string{userID, roleID}
	if r.m.userRoles[k] {
		return common.ErrDuplicateBinding
	}
	r.m.userRoles[k] = true
	return nil
}

func (r memUserRoles) Delete(_ context.Context, userID, roleID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k := [2]string{userID, roleID}
	if !r.m.userRoles[k] {
		return common.ErrorNotFound
	}
	delete(r.m.userRoles, k)
	return nil
}

func (r memUserRoles) DeleteByUser(_ context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for k := range r.m.userRoles {
		if k[0] == userID {
			delete(r.m.userRoles, k)
		}
	}
	return nil
}

func (r memUserRoles) ListByUser(_ context.Context, userID string) ([]*models.Role, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []*models.Role{}
	for k := range r.m.userRoles {
		if k[0] == userID {
			cp := *r.m.roles[k[1]]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memUserRoles) HasPermission(_ context.Context, userID, name string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for ur := range r.m.userRoles {
		if ur[0] != userID {
			continue
		}
		for rp := range r.m.rolePerms {
			if rp[0] == ur[1] && r.m.permissions[rp[1]].Name == name {
				return true, nil
			}
		}
	}
	return false, nil
}
