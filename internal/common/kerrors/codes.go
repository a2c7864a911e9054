package kerrors

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ibusnowden/MLRun/internal/common/requestid"
)

// CodeFromError maps a typed error (found anywhere in the chain via
// errors.As) to its wire-level gRPC code. Unrecognized errors map to
// codes.Internal rather than codes.Unknown, since an uncategorized error
// escaping a handler is itself a bug we want surfaced loudly.
func CodeFromError(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}

	var notFound *ErrNotFound
	if errors.As(err, &notFound) {
		return codes.NotFound
	}
	var alreadyExists *ErrAlreadyExists
	if errors.As(err, &alreadyExists) {
		return codes.AlreadyExists
	}
	var invalidArg *ErrInvalidArgument
	if errors.As(err, &invalidArg) {
		return codes.InvalidArgument
	}
	var failedPrecondition *ErrFailedPrecondition
	if errors.As(err, &failedPrecondition) {
		return codes.FailedPrecondition
	}
	var unavailable *ErrUnavailable
	if errors.As(err, &unavailable) {
		return codes.Unavailable
	}
	var exhausted *ErrResourceExhausted
	if errors.As(err, &exhausted) {
		return codes.ResourceExhausted
	}
	var denied *ErrPermissionDenied
	if errors.As(err, &denied) {
		return codes.PermissionDenied
	}
	var unauth *ErrUnauthenticated
	if errors.As(err, &unauth) {
		return codes.Unauthenticated
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return codes.DeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return codes.Canceled
	}
	return codes.Internal
}

// UnaryServerInterceptor converts the cause of any error returned by a
// handler into a gRPC status error, annotating it with the request id if
// present. Install this before any recovery/logging interceptors that
// expect a status error, and after anything that needs the raw error.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if _, ok := status.FromError(err); ok {
			return resp, err
		}
		cause := errors.Cause(err)
		code := CodeFromError(cause)
		if id, ok := requestid.FromContext(ctx); ok {
			return resp, status.Errorf(code, "[%s=%s] %s", requestid.MetadataKey, id, cause.Error())
		}
		return resp, status.Error(code, cause.Error())
	}
}
