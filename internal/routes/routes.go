package routes

import (
	"net/http"
	"time"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type Handlers struct {
	Auth    *handlers.AuthHandler
	Profile *handlers.ProfileHandler
	Health  *handlers.HealthHandler
	Metrics http.Handler
}

func Setup(
	app *fiber.App,
	cfg *config.Config,
	sessions middleware.SessionResolver,
	h Handlers,
) {
	if h.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(h.Metrics))
	}

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)

	// Auth-specific rate limit: 10 req/min per IP (stricter)
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/refresh", h.Auth.Refresh)

	// JWT plus a live session, applied per route so public routes stay open
	protected := []fiber.Handler{middleware.JWTProtected(cfg), middleware.SessionRequired(sessions)}

	api.Post("/auth/logout", append(protected, h.Auth.Logout)...)
	api.Get("/auth/user", append(protected, h.Auth.User)...)

	api.Get("/profile", append(protected, h.Profile.Get)...)
	api.Put("/profile", append(protected, h.Profile.Update)...)
}
