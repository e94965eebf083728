package rest

import (
	"github.com/AzielCF/postpilot/pkg/pubworker"
	"github.com/gofiber/fiber/v2"
)

// GetWorkerPoolStats returns real-time publish worker pool statistics
func GetWorkerPoolStats(c *fiber.Ctx) error {
	stats := pubworker.GetGlobalStats()
	return c.JSON(stats)
}
