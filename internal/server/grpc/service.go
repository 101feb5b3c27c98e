package grpc

import (
	"context"

	"github.com/dmitrijs2005/papervault/internal/common"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "papervault.PaperVault"

// PaperVaultServer is the server API of the papervault service.
type PaperVaultServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*TokenResponse, error)
	Refresh(context.Context, *RefreshRequest) (*TokenResponse, error)
	Logout(context.Context, *Empty) (*Empty, error)

	UploadPaper(context.Context, *UploadPaperRequest) (*PaperResponse, error)
	GetPaper(context.Context, *PaperRequest) (*GetPaperResponse, error)
	ListPapers(context.Context, *Empty) (*ListPapersResponse, error)
	ListAllPapers(context.Context, *Empty) (*ListPapersResponse, error)
	UpdatePaper(context.Context, *UpdatePaperRequest) (*PaperResponse, error)
	DeletePaper(context.Context, *PaperRequest) (*Empty, error)

	GrantRole(context.Context, *RoleBindingRequest) (*Empty, error)
	RevokeRole(context.Context, *RoleBindingRequest) (*Empty, error)
	ListRoles(context.Context, *ListRolesRequest) (*ListRolesResponse, error)
	DeleteUser(context.Context, *DeleteUserRequest) (*Empty, error)

	CreateCourse(context.Context, *CreateCourseRequest) (*CourseInfo, error)
	ListCourses(context.Context, *Empty) (*ListCoursesResponse, error)
	CreateAcademicYear(context.Context, *CreateAcademicYearRequest) (*AcademicYearInfo, error)
	ListAcademicYears(context.Context, *Empty) (*ListAcademicYearsResponse, error)
}

// unaryMethod adapts a typed server method to a grpc.MethodDesc.
func unaryMethod[Req any, Resp any](name string, call func(PaperVaultServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(PaperVaultServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PaperVaultServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Register", PaperVaultServer.Register),
		unaryMethod("Login", PaperVaultServer.Login),
		unaryMethod("Refresh", PaperVaultServer.Refresh),
		unaryMethod("Logout", PaperVaultServer.Logout),
		unaryMethod("UploadPaper", PaperVaultServer.UploadPaper),
		unaryMethod("GetPaper", PaperVaultServer.GetPaper),
		unaryMethod("ListPapers", PaperVaultServer.ListPapers),
		unaryMethod("ListAllPapers", PaperVaultServer.ListAllPapers),
		unaryMethod("UpdatePaper", PaperVaultServer.UpdatePaper),
		unaryMethod("DeletePaper", PaperVaultServer.DeletePaper),
		unaryMethod("GrantRole", PaperVaultServer.GrantRole),
		unaryMethod("RevokeRole", PaperVaultServer.RevokeRole),
		unaryMethod("ListRoles", PaperVaultServer.ListRoles),
		unaryMethod("DeleteUser", PaperVaultServer.DeleteUser),
		unaryMethod("CreateCourse", PaperVaultServer.CreateCourse),
		unaryMethod("ListCourses", PaperVaultServer.ListCourses),
		unaryMethod("CreateAcademicYear", PaperVaultServer.CreateAcademicYear),
		unaryMethod("ListAcademicYears", PaperVaultServer.ListAcademicYears),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "papervault",
}

// RegisterPaperVaultServer registers srv on s.
func RegisterPaperVaultServer(s grpc.ServiceRegistrar, srv PaperVaultServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Invoke calls method on cc with the JSON codec and decodes the reply.
func Invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// WithAccessToken attaches token to outgoing calls made with ctx.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, token)
}

// ErrorKind returns the stable error kind carried by a status error, or ""
// when err has none.
func ErrorKind(err error) string {
	for _, d := range status.Convert(err).Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.Domain == errorDomain {
			return info.Reason
		}
	}
	return ""
}
