package middleware

import "github.com/gofiber/fiber/v2"

const (
	corsAllowOrigin  = "*"
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
	corsAllowMethods = "POST, OPTIONS"
)

// NewCORSMiddleware sets the detection endpoint's CORS headers on every
// response and answers preflight requests with an empty body.
func (m *middleware) NewCORSMiddleware(ctx *fiber.Ctx) error {
	ctx.Set(fiber.HeaderAccessControlAllowOrigin, corsAllowOrigin)
	ctx.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)
	ctx.Set(fiber.HeaderAccessControlAllowMethods, corsAllowMethods)

	if ctx.Method() == fiber.MethodOptions {
		ctx.Status(fiber.StatusOK)
		return nil
	}

	return ctx.Next()
}
