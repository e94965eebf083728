package rest

import (
	pkgError "github.com/AzielCF/postpilot/pkg/error"
	"github.com/AzielCF/postpilot/pkg/linkpreview"
	"github.com/AzielCF/postpilot/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Preview struct {
	Fetcher *linkpreview.Fetcher
}

func InitRestPreview(app fiber.Router, fetcher *linkpreview.Fetcher) Preview {
	rest := Preview{Fetcher: fetcher}

	app.Get("/preview", rest.LinkPreview)

	return rest
}

// LinkPreview resolves OpenGraph metadata either for an explicit ?url=
// or for the first URL found in ?content=.
func (handler *Preview) LinkPreview(c *fiber.Ctx) error {
	url := c.Query("url")
	if url == "" {
		url = linkpreview.FirstURL(c.Query("content"))
	}
	if url == "" {
		panic(pkgError.ValidationError("url: cannot be blank, pass ?url= or ?content= with a link."))
	}

	preview, err := handler.Fetcher.Fetch(c.UserContext(), url)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Link preview resolved",
		Results: preview,
	})
}
