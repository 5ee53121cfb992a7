package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/sparkmeet/moderation-worker/internal/database"
	"github.com/sparkmeet/moderation-worker/internal/dto"
)

type HealthHandler struct {
	nc *nats.Conn
}

func NewHealthHandler(nc *nats.Conn) *HealthHandler {
	return &HealthHandler{nc: nc}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if err := database.Ping(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	realtimeStatus := "ok"
	if h.nc == nil || !h.nc.IsConnected() {
		realtimeStatus = "disconnected"
	}

	return c.JSON(dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Realtime:  realtimeStatus,
	})
}
