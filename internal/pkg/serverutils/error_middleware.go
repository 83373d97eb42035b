package serverutils

import (
	"log"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware recovers panics from downstream handlers and turns
// them into a generic 500 so a single bad request never drops the process.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("panic recovered: %v (path=%s)", r, ctx.Path())
				_ = ctx.Status(fiber.StatusInternalServerError).
					JSON(ErrorResponse(500, "Internal server error"))
			}
		}()
		return ctx.Next()
	}
}
