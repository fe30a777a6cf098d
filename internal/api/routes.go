package api

import (
	"github.com/gofiber/fiber/v2"
	gofiberws "github.com/gofiber/websocket/v2"

	"github.com/nciadapter/nciadapter/internal/api/middleware"
)

// SetupRoutes wires the management API's REST surface (spec §6) onto
// app, adapted from the teacher's flow-CRUD routes.go into the much
// narrower adapter-control surface.
func SetupRoutes(app *fiber.App, h *Handler, jwtConfig middleware.JWTConfig) {
	jwtConfig.SkipPaths = append(jwtConfig.SkipPaths, "/v1/health", "/metrics")

	v1 := app.Group("/v1", middleware.JWTMiddleware(jwtConfig))

	v1.Get("/status", h.getStatus)

	v1.Post("/mode", h.submitMode)
	v1.Delete("/mode", h.cancelMode)

	v1.Get("/techs", h.getSupportedTechs)
	v1.Put("/techs", h.setAllowedTechs)

	v1.Get("/params", h.getParams)
	v1.Put("/params", h.setParams)

	v1.Post("/reactivate", h.reactivate)
	v1.Post("/targets/:id/deactivate", h.deactivateTarget)
	v1.Post("/initiators/:id/deactivate", h.deactivateInitiator)

	v1.Get("/activations", h.listActivations)

	app.Get("/v1/health", h.healthCheck)

	app.Use("/v1/ws", func(c *fiber.Ctx) error {
		if gofiberws.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/v1/ws", gofiberws.New(h.handleWebSocket))
}
