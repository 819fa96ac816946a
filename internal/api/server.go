package api

import (
	"strings"

	"github.com/fathima-sithara/chat-core/internal/auth"
	"github.com/fathima-sithara/chat-core/internal/config"
	"github.com/fathima-sithara/chat-core/internal/gateway"
	"github.com/fathima-sithara/chat-core/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

func NewServer(cfg *config.Config, gw *gateway.Gateway, authSvc *auth.Service, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	app.Use(fiberlogger.New())

	h := newHandlers(gw, authSvc, log)
	ws := newWSHandlers(cfg, gw, authSvc, log)

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	v1 := app.Group("/v1")
	v1.Post("/auth/register", h.register)
	v1.Post("/auth/login", h.login)

	authed := v1.Use(bearerAuth(authSvc))
	authed.Post("/auth/profile-image", h.profileImage)
	authed.Get("/me", h.me)
	authed.Get("/users", h.listUsers)
	authed.Post("/messages", h.sendMessage)
	authed.Get("/conversations/:partner_id/messages", h.history)
	authed.Get("/recent", h.listRecent)

	// websocket routes authenticate via ?token= since browsers cannot set
	// headers on the upgrade request
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/conversations/:partner_id", websocket.New(ws.conversation))
	app.Get("/ws/recent", websocket.New(ws.recent))

	return app
}

func bearerAuth(authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hdr := c.Get("Authorization")
		const pref = "Bearer "
		if !strings.HasPrefix(hdr, pref) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
		}
		uid, err := authSvc.CurrentUserID(hdr[len(pref):])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		c.Locals("user_id", uid)
		return c.Next()
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
