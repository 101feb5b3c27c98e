package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/papervault/internal/common"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const errorDomain = "papervault"

var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{common.ErrInvalidFileName, codes.InvalidArgument},
	{common.ErrMalformedEnvelope, codes.InvalidArgument},
	{common.ErrValidation, codes.InvalidArgument},
	{common.ErrStorageIO, codes.Unavailable},
	{common.ErrUnknownRecipient, codes.FailedPrecondition},
	{common.ErrReferenceNotFound, codes.FailedPrecondition},
	{common.ErrUserIsRecipient, codes.FailedPrecondition},
	{common.ErrNotAuthorized, codes.PermissionDenied},
	{common.ErrIntegrityViolation, codes.DataLoss},
	{common.ErrPaperNotFound, codes.NotFound},
	{common.ErrorNotFound, codes.NotFound},
	{common.ErrDuplicateBinding, codes.AlreadyExists},
	{common.ErrorUnauthorized, codes.Unauthenticated},
	{common.ErrSessionLocked, codes.Unauthenticated},
	{common.ErrInvalidToken, codes.Unauthenticated},
	{common.ErrTokenExpired, codes.Unauthenticated},
	{common.ErrRefreshTokenExpired, codes.Unauthenticated},
}

func codeOf(err error) codes.Code {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return codes.Internal
}

// statusError converts err into a gRPC status with the error kind attached as
// ErrorInfo. Only the sentinel message crosses the wire; the full error,
// which may carry paths or driver output, is logged here.
func (s *GRPCServer) statusError(ctx context.Context, op string, err error) error {
	code := codeOf(err)
	kind := common.Kind(err)

	if code == codes.Internal || code == codes.Unavailable || code == codes.DataLoss {
		s.logger.Error(ctx, op+" failed", "kind", kind, "error", err)
	} else {
		s.logger.Debug(ctx, op+" rejected", "kind", kind, "error", err)
	}

	st := status.New(code, common.Message(err))
	if withInfo, dErr := st.WithDetails(&errdetails.ErrorInfo{Reason: kind, Domain: errorDomain}); dErr == nil {
		st = withInfo
	}
	return st.Err()
}
