// Package requestid attaches a per-call identifier to a context, so it can
// be surfaced in logs and error messages across the gRPC/HTTP boundary.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// MetadataKey is the gRPC metadata / HTTP header key carrying the id.
const MetadataKey = "x-request-id"

type contextKey struct{}

// New generates a fresh request id.
func New() string {
	return uuid.NewString()
}

// WithValue returns a context carrying the given request id.
func WithValue(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext retrieves the request id previously attached with WithValue.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok
}
