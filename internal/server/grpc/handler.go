package grpc

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/dmitrijs2005/papervault/internal/server/models"
	"github.com/dmitrijs2005/papervault/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errNoUser = status.Error(codes.Internal, "no user in context")

func (s *GRPCServer) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	user, err := s.users.Register(ctx, req.Username, req.Password)
	if err != nil {
		return nil, s.statusError(ctx, "register", err)
	}

	s.logger.Info(ctx, "Registered", "user_id", user.ID)
	return &RegisterResponse{UserID: user.ID}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	tokens, err := s.users.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, s.statusError(ctx, "login", err)
	}
	return &TokenResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *RefreshRequest) (*TokenResponse, error) {
	tokens, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.statusError(ctx, "refresh", err)
	}
	return &TokenResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, _ *Empty) (*Empty, error) {
	userID, ok := currentUser(ctx)
	if !ok {
		return nil, errNoUser
	}
	if err := s.users.Logout(ctx, userID); err != nil {
		return nil, s.statusError(ctx, "logout", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) UploadPaper(ctx context.Context, req *UploadPaperRequest) (*PaperResponse, error) {
	userID, ok := currentUser(ctx)
	if !ok {
		return nil, errNoUser
	}
	if s.maxPaperBytes > 0 && len(req.Content) > s.maxPaperBytes {
		return nil, s.statusError(ctx, "upload paper",
			fmt.Errorf("paper exceeds %d bytes: %w", s.maxPaperBytes, common.ErrValidation))
	}

	paper, err := s.vault.Create(ctx, services.NewPaper{
		Plaintext:      req.Content,
		CreatorID:      userID,
		ModeratorID:    req.ModeratorID,
		FileName:       req.FileName,
		CourseIDs:      req.CourseIDs,
		AcademicYearID: req.AcademicYearID,
		Remarks:        req.Remarks,
	})
	if err != nil {
		return nil, s.statusError(ctx, "upload paper", err)
	}

	return &PaperResponse{Paper: toPaperInfo(paper)}, nil
}

func (s *GRPCServer) GetPaper(ctx context.Context, req *PaperRequest) (*GetPaperResponse, error) {
	userID, ok := currentUser(ctx)
	if !ok {
		return nil, errNoUser
	}

	paper, err := s.vault.Get(ctx, req.PaperID)
	if err != nil {
		return nil, s.statusError(ctx, "get paper", err)
	}

	content, err := s.vault.Retrieve(ctx, req.PaperID, userID)
	if err != nil {
		return nil, s.statusError(ctx, "get paper", err)
	}

	return &GetPaperResponse{Paper: toPaperInfo(paper), Content: content}, nil
}

// ListPapers returns the papers the caller is creator or moderator of.
func (s *GRPCServer) ListPapers(ctx context.Context, _ *Empty) (*ListPapersResponse, error) {
	userID, ok := currentUser(ctx)
	if !ok {
		return nil, errNoUser
	}

	papers, err := s.vault.ListForUser(ctx, userID)
	if err != nil {
		return nil, s.statusError(ctx, "list papers", err)
	}
	return &ListPapersResponse{Papers: toPaperInfos(papers)}, nil
}

func (s *GRPCServer) ListAllPapers(ctx context.Context, _ *Empty) (*ListPapersResponse, error) {
	papers, err := s.vault.List(ctx)
	if err != nil {
		return nil, s.statusError(ctx, "list all papers", err)
	}
	return &ListPapersResponse{Papers: toPaperInfos(papers)}, nil
}

func (s *GRPCServer) UpdatePaper(ctx context.Context, req *UpdatePaperRequest) (*PaperResponse, error) {
	paper, err := s.vault.UpdateMetadata(ctx, req.PaperID, models.PaperUpdate{
		FileName:       req.FileName,
		Remarks:        req.Remarks,
		AcademicYearID: req.AcademicYearID,
		CourseIDs:      req.CourseIDs,
	})
	if err != nil {
		return nil, s.statusError(ctx, "update paper", err)
	}
	return &PaperResponse{Paper: toPaperInfo(paper)}, nil
}

func (s *GRPCServer) DeletePaper(ctx context.Context, req *PaperRequest) (*Empty, error) {
	if err := s.vault.Delete(ctx, req.PaperID); err != nil {
		return nil, s.statusError(ctx, "delete paper", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) GrantRole(ctx context.Context, req *RoleBindingRequest) (*Empty, error) {
	if err := s.access.GrantRole(ctx, req.UserID, req.RoleID); err != nil {
		return nil, s.statusError(ctx, "grant role", err)
	}
	s.logger.Info(ctx, "role granted", "user_id", req.UserID, "role_id", req.RoleID)
	return &Empty{}, nil
}

func (s *GRPCServer) RevokeRole(ctx context.Context, req *RoleBindingRequest) (*Empty, error) {
	if err := s.access.RevokeRole(ctx, req.UserID, req.RoleID); err != nil {
		return nil, s.statusError(ctx, "revoke role", err)
	}
	s.logger.Info(ctx, "role revoked", "user_id", req.UserID, "role_id", req.RoleID)
	return &Empty{}, nil
}

func (s *GRPCServer) ListRoles(ctx context.Context, req *ListRolesRequest) (*ListRolesResponse, error) {
	var (
		roles []*models.Role
		err   error
	)
	if req.UserID != "" {
		roles, err = s.access.ListUserRoles(ctx, req.UserID)
	} else {
		roles, err = s.access.ListRoles(ctx)
	}
	if err != nil {
		return nil, s.statusError(ctx, "list roles", err)
	}
	return &ListRolesResponse{Roles: toRoleInfos(roles)}, nil
}

func (s *GRPCServer) DeleteUser(ctx context.Context, req *DeleteUserRequest) (*Empty, error) {
	if err := s.users.Delete(ctx, req.UserID); err != nil {
		return nil, s.statusError(ctx, "delete user", err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) CreateCourse(ctx context.Context, req *CreateCourseRequest) (*CourseInfo, error) {
	c, err := s.reference.CreateCourse(ctx, req.Code, req.Name)
	if err != nil {
		return nil, s.statusError(ctx, "create course", err)
	}
	return &CourseInfo{ID: c.ID, Code: c.Code, Name: c.Name}, nil
}

func (s *GRPCServer) ListCourses(ctx context.Context, _ *Empty) (*ListCoursesResponse, error) {
	courses, err := s.reference.ListCourses(ctx)
	if err != nil {
		return nil, s.statusError(ctx, "list courses", err)
	}
	out := make([]CourseInfo, 0, len(courses))
	for _, c := range courses {
		out = append(out, CourseInfo{ID: c.ID, Code: c.Code, Name: c.Name})
	}
	return &ListCoursesResponse{Courses: out}, nil
}

func (s *GRPCServer) CreateAcademicYear(ctx context.Context, req *CreateAcademicYearRequest) (*AcademicYearInfo, error) {
	y, err := s.reference.CreateAcademicYear(ctx, req.Name)
	if err != nil {
		return nil, s.statusError(ctx, "create academic year", err)
	}
	return &AcademicYearInfo{ID: y.ID, Name: y.Name}, nil
}

func (s *GRPCServer) ListAcademicYears(ctx context.Context, _ *Empty) (*ListAcademicYearsResponse, error) {
	years, err := s.reference.ListAcademicYears(ctx)
	if err != nil {
		return nil, s.statusError(ctx, "list academic years", err)
	}
	out := make([]AcademicYearInfo, 0, len(years))
	for _, y := range years {
		out = append(out, AcademicYearInfo{ID: y.ID, Name: y.Name})
	}
	return &ListAcademicYearsResponse{AcademicYears: out}, nil
}
