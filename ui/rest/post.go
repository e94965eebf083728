package rest

import (
	domainPost "github.com/AzielCF/postpilot/domains/post"
	pkgError "github.com/AzielCF/postpilot/pkg/error"
	"github.com/AzielCF/postpilot/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Post struct {
	Service domainPost.IPostUsecase
}

func InitRestPost(app fiber.Router, service domainPost.IPostUsecase) Post {
	rest := Post{Service: service}

	app.Post("/posts", rest.Create)
	app.Get("/posts", rest.List)
	app.Get("/posts/:id", rest.Get)
	app.Put("/posts/:id", rest.Edit)
	app.Delete("/posts/:id", rest.Delete)
	app.Post("/posts/:id/extend", rest.ExtendHorizon)
	app.Get("/posts/:id/instances", rest.ListInstances)

	app.Post("/instances/:id/cancel", rest.CancelInstance)
	app.Post("/instances/:id/retry", rest.RetryInstance)

	return rest
}

// accountID resolves the caller's account from the X-Account-ID header,
// falling back to the account_id query parameter.
func accountID(c *fiber.Ctx) string {
	account := c.Get("X-Account-ID")
	if account == "" {
		account = c.Query("account_id")
	}
	return account
}

func mustAccountID(c *fiber.Ctx) string {
	account := accountID(c)
	if account == "" {
		panic(pkgError.ValidationError("account_id: cannot be blank."))
	}
	return account
}

func (handler *Post) Create(c *fiber.Ctx) error {
	var request domainPost.CreatePostRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	if request.AccountID == "" {
		request.AccountID = accountID(c)
	}

	post, err := handler.Service.Create(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.Status(fiber.StatusCreated).JSON(utils.ResponseData{
		Status:  201,
		Code:    "CREATED",
		Message: "Post scheduled",
		Results: post,
	})
}

func (handler *Post) List(c *fiber.Ctx) error {
	posts, err := handler.Service.List(c.UserContext(), mustAccountID(c))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Posts retrieved",
		Results: posts,
	})
}

func (handler *Post) Get(c *fiber.Ctx) error {
	post, err := handler.Service.Get(c.UserContext(), mustAccountID(c), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Post retrieved",
		Results: post,
	})
}

func (handler *Post) Edit(c *fiber.Ctx) error {
	var request domainPost.EditPostRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	request.PostID = c.Params("id")
	if request.AccountID == "" {
		request.AccountID = accountID(c)
	}

	post, err := handler.Service.Edit(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Post updated",
		Results: post,
	})
}

func (handler *Post) Delete(c *fiber.Ctx) error {
	request := domainPost.DeletePostRequest{
		PostID:    c.Params("id"),
		AccountID: mustAccountID(c),
		Scope:     c.Query("scope"),
	}

	err := handler.Service.Delete(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Post deleted",
		Results: nil,
	})
}

func (handler *Post) ExtendHorizon(c *fiber.Ctx) error {
	added, err := handler.Service.ExtendHorizon(c.UserContext(), mustAccountID(c), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Horizon extended",
		Results: map[string]any{
			"instances_added": added,
		},
	})
}

func (handler *Post) ListInstances(c *fiber.Ctx) error {
	instances, err := handler.Service.ListInstances(c.UserContext(), mustAccountID(c), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Instances retrieved",
		Results: instances,
	})
}

func (handler *Post) CancelInstance(c *fiber.Ctx) error {
	instance, err := handler.Service.CancelInstance(c.UserContext(), mustAccountID(c), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Instance cancelled",
		Results: instance,
	})
}

func (handler *Post) RetryInstance(c *fiber.Ctx) error {
	instance, err := handler.Service.RetryInstance(c.UserContext(), mustAccountID(c), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Instance queued for retry",
		Results: instance,
	})
}
