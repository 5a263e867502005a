package handlers

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/profile-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// Pinger is satisfied by the database check and storage.Bucket.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function such as database.Ping.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	db      Pinger
	storage Pinger
}

func NewHealthHandler(db, storage Pinger) *HealthHandler {
	return &HealthHandler{db: db, storage: storage}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	resp := dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        "ok",
		Storage:   "ok",
	}
	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.DB = "unhealthy: " + err.Error()
	}
	if err := h.storage.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Storage = "unhealthy: " + err.Error()
	}

	if resp.Status != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}
