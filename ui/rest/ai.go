package rest

import (
	domainAI "github.com/AzielCF/postpilot/domains/ai"
	"github.com/AzielCF/postpilot/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type AI struct {
	Service domainAI.IAIUsecase
}

func InitRestAI(app fiber.Router, service domainAI.IAIUsecase) AI {
	rest := AI{Service: service}

	app.Post("/ai/suggestions", rest.GenerateSuggestions)
	app.Post("/ai/optimize", rest.OptimizeContent)

	return rest
}

func (handler *AI) GenerateSuggestions(c *fiber.Ctx) error {
	var request domainAI.SuggestRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	if request.AccountID == "" {
		request.AccountID = accountID(c)
	}

	suggestions, err := handler.Service.GenerateSuggestions(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Suggestions generated",
		Results: map[string]any{
			"suggestions": suggestions,
		},
	})
}

func (handler *AI) OptimizeContent(c *fiber.Ctx) error {
	var request domainAI.OptimizeRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	if request.AccountID == "" {
		request.AccountID = accountID(c)
	}

	optimized, err := handler.Service.OptimizeContent(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Content optimized",
		Results: map[string]any{
			"content": optimized,
		},
	})
}
