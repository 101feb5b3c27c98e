// Package grpc exposes the vault over gRPC: account, paper, role and
// reference-data calls behind a JWT and permission interceptor.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/papervault/internal/logging"
	"github.com/dmitrijs2005/papervault/internal/server/models"
	"github.com/dmitrijs2005/papervault/internal/server/services"
	"google.golang.org/grpc"
)

type UserService interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string) error
}

type VaultService interface {
	Create(ctx context.Context, in services.NewPaper) (*models.Paper, error)
	Retrieve(ctx context.Context, paperID, requesterID string) ([]byte, error)
	UpdateMetadata(ctx context.Context, paperID string, upd models.PaperUpdate) (*models.Paper, error)
	Delete(ctx context.Context, paperID string) error
	Get(ctx context.Context, paperID string) (*models.Paper, error)
	List(ctx context.Context) ([]*models.Paper, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Paper, error)
}

type AccessService interface {
	GrantRole(ctx context.Context, userID, roleID string) error
	RevokeRole(ctx context.Context, userID, roleID string) error
	HasPermission(ctx context.Context, userID, permissionName string) (bool, error)
	ListRoles(ctx context.Context) ([]*models.Role, error)
	ListUserRoles(ctx context.Context, userID string) ([]*models.Role, error)
}

type ReferenceService interface {
	CreateCourse(ctx context.Context, code, name string) (*models.Course, error)
	ListCourses(ctx context.Context) ([]*models.Course, error)
	CreateAcademicYear(ctx context.Context, name string) (*models.AcademicYear, error)
	ListAcademicYears(ctx context.Context) ([]*models.AcademicYear, error)
}

// Services groups the business services the server dispatches to.
type Services struct {
	Users     UserService
	Vault     VaultService
	Access    AccessService
	Reference ReferenceService
}

type GRPCServer struct {
	address       string
	users         UserService
	vault         VaultService
	access        AccessService
	reference     ReferenceService
	logger        logging.Logger
	jwtSecret     []byte
	maxPaperBytes int
}

var _ PaperVaultServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, svc Services, secretKey string, maxPaperBytes int) *GRPCServer {
	return &GRPCServer{
		address:       a,
		logger:        l.With("module", "grpc_server"),
		users:         svc.Users,
		vault:         svc.Vault,
		access:        svc.Access,
		reference:     svc.Reference,
		jwtSecret:     []byte(secretKey),
		maxPaperBytes: maxPaperBytes,
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	// JSON carries []byte as base64, so the wire size exceeds the paper size
	msgLimit := 2*s.maxPaperBytes + 64<<10

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
		grpc.MaxRecvMsgSize(msgLimit),
		grpc.MaxSendMsgSize(msgLimit),
	)

	RegisterPaperVaultServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
