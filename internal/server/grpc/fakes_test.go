package grpc

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/dmitrijs2005/papervault/internal/logging"
	"github.com/dmitrijs2005/papervault/internal/server/models"
	"github.com/dmitrijs2005/papervault/internal/server/services"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

type fakeUsers struct {
	regResp *models.User
	regErr  error

	loginResp *services.TokenPair
	loginErr  error

	refreshResp *services.TokenPair
	refreshErr  error

	logoutErr error
	loggedOut string

	deleteErr error
}

func (f *fakeUsers) Register(_ context.Context, _, _ string) (*models.User, error) {
	return f.regResp, f.regErr
}
func (f *fakeUsers) Login(_ context.Context, _, _ string) (*services.TokenPair, error) {
	return f.loginResp, f.loginErr
}
func (f *fakeUsers) RefreshToken(_ context.Context, _ string) (*services.TokenPair, error) {
	return f.refreshResp, f.refreshErr
}
func (f *fakeUsers) Logout(_ context.Context, userID string) error {
	f.loggedOut = userID
	return f.logoutErr
}
func (f *fakeUsers) Delete(_ context.Context, _ string) error { return f.deleteErr }

type fakeVault struct {
	mu sync.Mutex

	created   []services.NewPaper
	createErr error

	paper       *models.Paper
	getErr      error
	content     []byte
	retrieveErr error
	requester   string

	updateErr error
	deleteErr error

	list    []*models.Paper
	listFor string
}

func (f *fakeVault) Create(_ context.Context, in services.NewPaper) (*models.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, in)
	return &models.Paper{
		ID: "p1", FileName: in.FileName, CreatorID: in.CreatorID, ModeratorID: in.ModeratorID,
		CourseIDs: in.CourseIDs, AcademicYearID: in.AcademicYearID, CreatedAt: time.Unix(0, 0).UTC(),
	}, nil
}
func (f *fakeVault) Retrieve(_ context.Context, _, requesterID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requester = requesterID
	return f.content, f.retrieveErr
}
func (f *fakeVault) UpdateMetadata(_ context.Context, id string, upd models.PaperUpdate) (*models.Paper, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	p := &models.Paper{ID: id}
	if upd.Remarks != nil {
		p.Remarks = *upd.Remarks
	}
	return p, nil
}
func (f *fakeVault) Delete(context.Context, string) error { return f.deleteErr }
func (f *fakeVault) Get(context.Context, string) (*models.Paper, error) {
	return f.paper, f.getErr
}
func (f *fakeVault) List(context.Context) ([]*models.Paper, error) { return f.list, nil }
func (f *fakeVault) ListForUser(_ context.Context, userID string) ([]*models.Paper, error) {
	f.listFor = userID
	return f.list, nil
}

// fakeAccess grants the permissions listed per user id.
type fakeAccess struct {
	perms   map[string][]string
	permErr error

	grantErr  error
	revokeErr error

	roles     []*models.Role
	userRoles []*models.Role
}

func (f *fakeAccess) GrantRole(context.Context, string, string) error  { return f.grantErr }
func (f *fakeAccess) RevokeRole(context.Context, string, string) error { return f.revokeErr }
func (f *fakeAccess) HasPermission(_ context.Context, userID, name string) (bool, error) {
	if f.permErr != nil {
		return false, f.permErr
	}
	for _, p := range f.perms[userID] {
		if p == name {
			return true, nil
		}
	}
	return false, nil
}
func (f *fakeAccess) ListRoles(context.Context) ([]*models.Role, error) { return f.roles, nil }
func (f *fakeAccess) ListUserRoles(context.Context, string) ([]*models.Role, error) {
	return f.userRoles, nil
}

type fakeReference struct {
	createErr error
}

func (f *fakeReference) CreateCourse(_ context.Context, code, name string) (*models.Course, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Course{ID: "c1", Code: code, Name: name}, nil
}
func (f *fakeReference) ListCourses(context.Context) ([]*models.Course, error) {
	return []*models.Course{{ID: "c1", Code: "CS101", Name: "Programming"}}, nil
}
func (f *fakeReference) CreateAcademicYear(_ context.Context, name string) (*models.AcademicYear, error) {
	if name == "" {
		return nil, common.ErrValidation
	}
	return &models.AcademicYear{ID: "y1", Name: name}, nil
}
func (f *fakeReference) ListAcademicYears(context.Context) ([]*models.AcademicYear, error) {
	return []*models.AcademicYear{{ID: "y1", Name: "2025"}}, nil
}

type fixture struct {
	srv       *GRPCServer
	users     *fakeUsers
	vault     *fakeVault
	access    *fakeAccess
	reference *fakeReference
}

const testSecret = "k"

func newFixture() *fixture {
	f := &fixture{
		users:     &fakeUsers{},
		vault:     &fakeVault{},
		access:    &fakeAccess{perms: map[string][]string{}},
		reference: &fakeReference{},
	}
	f.srv = NewGRPCServer("127.0.0.1:0", nopLogger{}, Services{
		Users: f.users, Vault: f.vault, Access: f.access, Reference: f.reference,
	}, testSecret, 1024)
	return f
}

func asUser(id string) context.Context {
	return context.WithValue(context.Background(), UserIDKey, id)
}
