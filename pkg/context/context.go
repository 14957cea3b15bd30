// Package context carries the request id from the HTTP layer down to services
// and the log lines they write.
package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

const (
	// LocalsKey is the fiber.Ctx locals key and header the request id travels under.
	LocalsKey = "X-Request-ID"

	unknownRequestID = "unknown"
)

type requestIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID returns "unknown" for contexts that did not come through the
// request id middleware, such as pipeline goroutines.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return unknownRequestID
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return unknownRequestID
}

// FromFiberCtx returns the request's user context carrying its id. The id set
// by the middleware wins over the raw header.
func FromFiberCtx(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if id := GetRequestID(ctx); id != unknownRequestID {
		return ctx
	}

	requestID, _ := c.Locals(LocalsKey).(string)
	if requestID == "" {
		requestID = c.Get(LocalsKey)
	}
	if requestID == "" {
		requestID = unknownRequestID
	}
	return WithRequestID(ctx, requestID)
}
