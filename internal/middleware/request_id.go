package middleware

import (
	contextPkg "CraneGuard/pkg/context"
	"CraneGuard/pkg/utils"
	"fmt"
	"github.com/gofiber/fiber/v2"
	"time"
)

const (
	RequestIDKey = contextPkg.LocalsKey

	maxRequestIDLen = 64
)

// NewRequestIDMiddleware tags every request with an id. A caller supplied id
// is kept when it is short and made of [A-Za-z0-9_-]; anything else is
// replaced by a fresh ULID. The id is echoed in the response header and placed
// on the user context for services.
func NewRequestIDMiddleware() fiber.Handler {
	ids := utils.New()

	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDKey)
		if !validRequestID(requestID) {
			id, err := ids.NewULIDFromTimestamp(time.Now())
			if err != nil {
				return fmt.Errorf("mint request id: %w", err)
			}
			requestID = id
		}

		c.Locals(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)
		c.SetUserContext(contextPkg.WithRequestID(c.UserContext(), requestID))

		return c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
