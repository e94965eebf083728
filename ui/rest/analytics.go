package rest

import (
	domainAnalytics "github.com/AzielCF/postpilot/domains/analytics"
	"github.com/AzielCF/postpilot/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Analytics struct {
	Service domainAnalytics.IAnalyticsUsecase
}

func InitRestAnalytics(app fiber.Router, service domainAnalytics.IAnalyticsUsecase) Analytics {
	rest := Analytics{Service: service}

	app.Post("/analytics/snapshots", rest.RecordSnapshot)
	app.Get("/analytics/summary", rest.Summary)

	return rest
}

func (handler *Analytics) RecordSnapshot(c *fiber.Ctx) error {
	var request domainAnalytics.RecordSnapshotRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	if request.AccountID == "" {
		request.AccountID = accountID(c)
	}

	snapshot, err := handler.Service.Record(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.Status(fiber.StatusCreated).JSON(utils.ResponseData{
		Status:  201,
		Code:    "CREATED",
		Message: "Snapshot recorded",
		Results: snapshot,
	})
}

func (handler *Analytics) Summary(c *fiber.Ctx) error {
	summary, err := handler.Service.Summary(c.UserContext(), mustAccountID(c))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Analytics summary retrieved",
		Results: summary,
	})
}
