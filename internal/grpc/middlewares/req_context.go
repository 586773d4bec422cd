package middleware

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// RequestIDHeader is the metadata key a caller may use to pass its own id.
const RequestIDHeader = "x-request-id"

// ContextMiddleware tags the request context with an id, reusing the
// caller's x-request-id when present, and echoes it back in the header.
func ContextMiddleware(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	id := incomingRequestID(ctx)
	if id == "" {
		id = generateRequestID()
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id))
	ctx = context.WithValue(ctx, requestIDKey, id)
	return handler(ctx, req)
}

// RequestID returns the id ContextMiddleware stored in ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func incomingRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(RequestIDHeader); len(v) > 0 {
		return v[0]
	}
	return ""
}

func generateRequestID() string {
	return uuid.NewString()
}
