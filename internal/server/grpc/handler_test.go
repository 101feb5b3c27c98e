package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/dmitrijs2005/papervault/internal/server/models"
	"github.com/dmitrijs2005/papervault/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestRegister(t *testing.T) {
	f := newFixture()
	f.users.regResp = &models.User{ID: "42"}

	resp, err := f.srv.Register(context.Background(), &RegisterRequest{Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "42", resp.UserID)

	f.users.regErr = fmt.Errorf("username taken: %w", common.ErrValidation)
	_, err = f.srv.Register(context.Background(), &RegisterRequest{Username: "u", Password: "p"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, "Validation", ErrorKind(err))
}

func TestLogin(t *testing.T) {
	f := newFixture()
	f.users.loginResp = &services.TokenPair{AccessToken: "A", RefreshToken: "R"}

	resp, err := f.srv.Login(context.Background(), &LoginRequest{Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "A", resp.AccessToken)
	assert.Equal(t, "R", resp.RefreshToken)

	f.users.loginErr = common.ErrorUnauthorized
	_, err = f.srv.Login(context.Background(), &LoginRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	f.users.loginErr = errors.New("boom")
	_, err = f.srv.Login(context.Background(), &LoginRequest{})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestRefresh(t *testing.T) {
	f := newFixture()
	f.users.refreshResp = &services.TokenPair{AccessToken: "a", RefreshToken: "r"}

	resp, err := f.srv.Refresh(context.Background(), &RefreshRequest{RefreshToken: "r0"})
	require.NoError(t, err)
	assert.Equal(t, "a", resp.AccessToken)

	f.users.refreshErr = common.ErrRefreshTokenExpired
	_, err = f.srv.Refresh(context.Background(), &RefreshRequest{RefreshToken: "r0"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "RefreshTokenExpired", ErrorKind(err))
}

func TestLogout(t *testing.T) {
	f := newFixture()

	_, err := f.srv.Logout(asUser("u7"), &Empty{})
	require.NoError(t, err)
	assert.Equal(t, "u7", f.users.loggedOut)

	_, err = f.srv.Logout(context.Background(), &Empty{})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestUploadPaper_CallerIsCreator(t *testing.T) {
	f := newFixture()

	resp, err := f.srv.UploadPaper(asUser("1"), &UploadPaperRequest{
		FileName: "exam.bin", Content: []byte("EXAM"), ModeratorID: "2",
		CourseIDs: []string{"c1"}, AcademicYearID: "y1",
	})
	require.NoError(t, err)
	assert.Equal(t, "1", resp.Paper.CreatorID)
	assert.Equal(t, "2", resp.Paper.ModeratorID)

	require.Len(t, f.vault.created, 1)
	assert.Equal(t, "1", f.vault.created[0].CreatorID)
	assert.Equal(t, []byte("EXAM"), f.vault.created[0].Plaintext)
}

func TestUploadPaper_Errors(t *testing.T) {
	f := newFixture()

	_, err := f.srv.UploadPaper(context.Background(), &UploadPaperRequest{})
	assert.Equal(t, codes.Internal, status.Code(err))

	_, err = f.srv.UploadPaper(asUser("1"), &UploadPaperRequest{Content: make([]byte, 2048)})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Empty(t, f.vault.created)

	f.vault.createErr = fmt.Errorf("course c9: %w", common.ErrReferenceNotFound)
	_, err = f.srv.UploadPaper(asUser("1"), &UploadPaperRequest{FileName: "x"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, "ReferenceNotFound", ErrorKind(err))

	f.vault.createErr = fmt.Errorf("open /srv/papers/x: %w", common.ErrStorageIO)
	_, err = f.srv.UploadPaper(asUser("1"), &UploadPaperRequest{FileName: "x"})
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.NotContains(t, status.Convert(err).Message(), "/srv/papers")
}

func TestGetPaper(t *testing.T) {
	f := newFixture()
	f.vault.paper = &models.Paper{ID: "p1", FileName: "exam.bin"}
	f.vault.content = []byte("EXAM")

	resp, err := f.srv.GetPaper(asUser("2"), &PaperRequest{PaperID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "exam.bin", resp.Paper.FileName)
	assert.Equal(t, []byte("EXAM"), resp.Content)
	assert.Equal(t, "2", f.vault.requester)
}

func TestGetPaper_ErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		getErr   error
		retrErr  error
		wantCode codes.Code
		wantKind string
	}{
		{"not found", common.ErrPaperNotFound, nil, codes.NotFound, "PaperNotFound"},
		{"not a recipient", nil, common.ErrNotAuthorized, codes.PermissionDenied, "NotAuthorized"},
		{"tampered", nil, common.ErrIntegrityViolation, codes.DataLoss, "IntegrityViolation"},
		{"malformed", nil, common.ErrMalformedEnvelope, codes.InvalidArgument, "MalformedEnvelope"},
		{"session expired", nil, common.ErrSessionLocked, codes.Unauthenticated, "SessionLocked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.vault.paper = &models.Paper{ID: "p1"}
			f.vault.getErr = tt.getErr
			f.vault.retrieveErr = tt.retrErr

			_, err := f.srv.GetPaper(asUser("99"), &PaperRequest{PaperID: "p1"})
			assert.Equal(t, tt.wantCode, status.Code(err))
			assert.Equal(t, tt.wantKind, ErrorKind(err))
		})
	}
}

func TestListPapers(t *testing.T) {
	f := newFixture()
	f.vault.list = []*models.Paper{{ID: "a"}, {ID: "b"}}

	mine, err := f.srv.ListPapers(asUser("1"), &Empty{})
	require.NoError(t, err)
	assert.Len(t, mine.Papers, 2)
	assert.Equal(t, "1", f.vault.listFor)

	all, err := f.srv.ListAllPapers(asUser("1"), &Empty{})
	require.NoError(t, err)
	assert.Len(t, all.Papers, 2)
}

func TestUpdateAndDeletePaper(t *testing.T) {
	f := newFixture()

	remarks := "resit"
	resp, err := f.srv.UpdatePaper(asUser("1"), &UpdatePaperRequest{PaperID: "p1", Remarks: &remarks})
	require.NoError(t, err)
	assert.Equal(t, "resit", resp.Paper.Remarks)

	f.vault.updateErr = common.ErrPaperNotFound
	_, err = f.srv.UpdatePaper(asUser("1"), &UpdatePaperRequest{PaperID: "p1"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = f.srv.DeletePaper(asUser("1"), &PaperRequest{PaperID: "p1"})
	require.NoError(t, err)

	f.vault.deleteErr = common.ErrPaperNotFound
	_, err = f.srv.DeletePaper(asUser("1"), &PaperRequest{PaperID: "p1"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestRoleBindings(t *testing.T) {
	f := newFixture()

	_, err := f.srv.GrantRole(asUser("admin"), &RoleBindingRequest{UserID: "u", RoleID: "r"})
	require.NoError(t, err)

	f.access.grantErr = common.ErrDuplicateBinding
	_, err = f.srv.GrantRole(asUser("admin"), &RoleBindingRequest{UserID: "u", RoleID: "r"})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
	assert.Equal(t, "DuplicateBinding", ErrorKind(err))

	f.access.revokeErr = common.ErrorNotFound
	_, err = f.srv.RevokeRole(asUser("admin"), &RoleBindingRequest{UserID: "u", RoleID: "r"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestListRoles(t *testing.T) {
	f := newFixture()
	f.access.roles = []*models.Role{{ID: "1", Name: "ADMIN"}, {ID: "2", Name: "PAPER_CREATOR"}}
	f.access.userRoles = []*models.Role{{ID: "2", Name: "PAPER_CREATOR"}}

	all, err := f.srv.ListRoles(asUser("admin"), &ListRolesRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Roles, 2)

	one, err := f.srv.ListRoles(asUser("admin"), &ListRolesRequest{UserID: "u"})
	require.NoError(t, err)
	require.Len(t, one.Roles, 1)
	assert.Equal(t, "PAPER_CREATOR", one.Roles[0].Name)
}

func TestDeleteUser(t *testing.T) {
	f := newFixture()

	_, err := f.srv.DeleteUser(asUser("admin"), &DeleteUserRequest{UserID: "u"})
	require.NoError(t, err)

	f.users.deleteErr = common.ErrUserIsRecipient
	_, err = f.srv.DeleteUser(asUser("admin"), &DeleteUserRequest{UserID: "u"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, "UserIsRecipient", ErrorKind(err))
}

func TestReferenceData(t *testing.T) {
	f := newFixture()
	ctx := asUser("admin")

	c, err := f.srv.CreateCourse(ctx, &CreateCourseRequest{Code: "CS101", Name: "Programming"})
	require.NoError(t, err)
	assert.Equal(t, "CS101", c.Code)

	courses, err := f.srv.ListCourses(ctx, &Empty{})
	require.NoError(t, err)
	assert.Len(t, courses.Courses, 1)

	y, err := f.srv.CreateAcademicYear(ctx, &CreateAcademicYearRequest{Name: "2025"})
	require.NoError(t, err)
	assert.Equal(t, "y1", y.ID)

	_, err = f.srv.CreateAcademicYear(ctx, &CreateAcademicYearRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	years, err := f.srv.ListAcademicYears(ctx, &Empty{})
	require.NoError(t, err)
	assert.Len(t, years.AcademicYears, 1)
}
