package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gridline-ai/gridline-backend/internal/models"
)

// respondError maps an application error onto its HTTP status and a sanitized
// JSON body. Insufficient-balance errors keep their shortfall so clients can
// prompt for the right top-up size.
func respondError(c *fiber.Ctx, err error) error {
	appErr := models.SanitizeError(err)
	return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{
		"error": appErr,
	})
}
