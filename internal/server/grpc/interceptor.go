package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/dmitrijs2005/papervault/internal/server/auth"
	"github.com/dmitrijs2005/papervault/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

// UserIDKey holds the authenticated user id in handler contexts.
const UserIDKey ctxKey = "userID"

// publicMethods need no access token.
var publicMethods = map[string]bool{
	"Register": true,
	"Login":    true,
	"Refresh":  true,
}

// methodPermissions is the permission gate applied after authentication.
// Methods absent here only need a valid token.
var methodPermissions = map[string]string{
	"UploadPaper":        services.PermUploadPaper,
	"GetPaper":           services.PermReadPaper,
	"ListAllPapers":      services.PermReadPaper,
	"UpdatePaper":        services.PermUpdatePaper,
	"DeletePaper":        services.PermDeletePaper,
	"GrantRole":          services.PermGrantRole,
	"RevokeRole":         services.PermGrantRole,
	"ListRoles":          services.PermReadRole,
	"DeleteUser":         services.PermDeleteUser,
	"CreateCourse":       services.PermCreateCourse,
	"ListCourses":        services.PermReadCourse,
	"CreateAcademicYear": services.PermCreateCourse,
	"ListAcademicYears":  services.PermReadCourse,
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	method, ours := strings.CutPrefix(info.FullMethod, "/"+ServiceName+"/")
	if !ours || publicMethods[method] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	userID, err := auth.GetUserIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, s.statusError(ctx, method, err)
	}

	if perm, ok := methodPermissions[method]; ok {
		allowed, err := s.access.HasPermission(ctx, userID, perm)
		if err != nil {
			return nil, s.statusError(ctx, method, err)
		}
		if !allowed {
			s.logger.Warn(ctx, "permission denied", "user_id", userID, "method", method, "permission", perm)
			return nil, s.statusError(ctx, method, common.ErrNotAuthorized)
		}
	}

	ctx = context.WithValue(ctx, UserIDKey, userID)

	return handler(ctx, req)
}

func currentUser(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}
