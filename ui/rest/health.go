package rest

import (
	"time"

	"github.com/AzielCF/postpilot/core/config"
	"github.com/AzielCF/postpilot/infrastructure/valkey"
	"github.com/AzielCF/postpilot/pkg/utils"
	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type Health struct {
	db        *gorm.DB
	vk        *valkey.Client
	startedAt time.Time
}

func InitRestHealth(app fiber.Router, db *gorm.DB, vk *valkey.Client) Health {
	handler := Health{db: db, vk: vk, startedAt: time.Now().UTC()}

	app.Get("/health/status", handler.GetStatus)

	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	dbStatus := "up"
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
		dbStatus = "down"
	}

	valkeyStatus := "disabled"
	if h.vk != nil {
		valkeyStatus = "up"
		if !h.vk.IsConnected() {
			valkeyStatus = "down"
		}
	}

	status := 200
	code := "SUCCESS"
	if dbStatus == "down" {
		status = 503
		code = "UNHEALTHY"
	}

	return c.Status(status).JSON(utils.ResponseData{
		Status:  status,
		Code:    code,
		Message: "Health status retrieved",
		Results: map[string]any{
			"version":    config.Global.App.Version,
			"database":   dbStatus,
			"valkey":     valkeyStatus,
			"started_at": h.startedAt,
			"uptime":     humanize.Time(h.startedAt),
		},
	})
}
