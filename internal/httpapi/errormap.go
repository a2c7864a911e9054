// Package httpapi exposes the ingest and query surfaces over HTTP/JSON,
// semantically identical to the gRPC services: the handlers bind requests
// into the same structs the gRPC layer uses and call the same engines, so
// there is exactly one definition of every operation's payload.
package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ibusnowden/MLRun/internal/common/kerrors"
)

// errorBody is the JSON error envelope. Code carries the same wire-level
// code names the gRPC status mapping uses.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps a typed error to an HTTP status plus the shared code
// string, the HTTP twin of kerrors.CodeFromError.
func writeError(c echo.Context, err error) error {
	cause := errors.Cause(err)

	status := http.StatusInternalServerError
	code := "internal"

	var notFound *kerrors.ErrNotFound
	var alreadyExists *kerrors.ErrAlreadyExists
	var invalidArg *kerrors.ErrInvalidArgument
	var precondition *kerrors.ErrFailedPrecondition
	var unavailable *kerrors.ErrUnavailable
	var exhausted *kerrors.ErrResourceExhausted
	var denied *kerrors.ErrPermissionDenied
	var unauth *kerrors.ErrUnauthenticated

	switch {
	case errors.As(cause, &notFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.As(cause, &alreadyExists):
		status, code = http.StatusConflict, "already_exists"
	case errors.As(cause, &invalidArg):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.As(cause, &precondition):
		status, code = http.StatusConflict, "failed_precondition"
	case errors.As(cause, &unavailable):
		status, code = http.StatusServiceUnavailable, "unavailable"
	case errors.As(cause, &exhausted):
		status, code = http.StatusTooManyRequests, "resource_exhausted"
	case errors.As(cause, &denied):
		status, code = http.StatusForbidden, "permission_denied"
	case errors.As(cause, &unauth):
		status, code = http.StatusUnauthorized, "unauthenticated"
	default:
		logrus.WithError(err).Error("unclassified error reached the http layer")
	}

	return c.JSON(status, errorBody{Code: code, Message: cause.Error()})
}
