// Package api is the HTTP and websocket transport: fiber routing, JWT
// middleware, per-IP rate limiting and error-to-status translation.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Julfy0228/WebMessenger/internal/auth"
	"github.com/Julfy0228/WebMessenger/internal/config"
	"github.com/Julfy0228/WebMessenger/internal/ws"
)

// NewServer builds the fiber app with all routes registered. The caller owns
// the app's lifecycle (Listen / ShutdownWithContext).
func NewServer(cfg *config.Config, h *Handlers, wsHandler *ws.Handler, validator *auth.Validator, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	app.Use(recover.New())
	app.Use(requestLogger(log))
	if cfg.Server.RateLimitPerMin > 0 {
		app.Use(NewIPRateLimiter(cfg.Server.RateLimitPerMin, log).Handler())
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if cfg.Storage.Backend == "local" {
		app.Static(cfg.Storage.PublicURL, cfg.Storage.LocalDir)
	}

	// Websocket upgrade authenticates via ?token= before the handshake.
	app.Get("/ws", WSAuth(validator), func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}, websocket.New(wsHandler.Handle))

	v1 := app.Group("/api/v1", JWTAuth(validator))

	chats := v1.Group("/chats")
	chats.Post("/", h.CreateChat)
	// "/my" must precede "/:id" so it is not captured as a chat id.
	chats.Get("/my", h.ListMyChats)
	chats.Get("/:id", h.GetChat)
	chats.Delete("/:id", h.DeleteChat)
	chats.Post("/:id/avatar", h.UpdateChatAvatar)
	chats.Post("/:id/participants", h.AddParticipant)
	chats.Post("/:id/kick", h.KickParticipant)
	chats.Post("/:id/promote", h.PromoteToAdmin)
	chats.Post("/:id/demote", h.DemoteFromAdmin)
	chats.Post("/:id/transfer-ownership", h.TransferOwnership)
	chats.Post("/:id/messages", h.SendMessage)
	chats.Get("/:id/messages", h.ListMessages)

	messages := v1.Group("/messages")
	messages.Patch("/:id", h.EditMessage)
	messages.Delete("/:id", h.DeleteMessage)
	messages.Post("/:id/read", h.MarkMessageRead)

	return app
}

func requestLogger(log *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Infow("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start),
		)
		return err
	}
}
