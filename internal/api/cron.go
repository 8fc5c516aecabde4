package api

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gridline-ai/gridline-backend/internal/services/entitlements"
)

// CronHandler exposes the scheduled allotment sweep to an external cron
// runner, guarded by a shared secret. The in-process ticker covers normal
// operation; this endpoint exists for platforms that schedule HTTP calls.
type CronHandler struct {
	secret       string
	entitlements *entitlements.Service
}

func NewCronHandler(secret string, entitlementsService *entitlements.Service) *CronHandler {
	return &CronHandler{
		secret:       secret,
		entitlements: entitlementsService,
	}
}

func (h *CronHandler) TriggerCycleReset(c *fiber.Ctx) error {
	provided := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	if provided == "" {
		provided = c.Get("X-Cron-Secret")
	}
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid cron secret",
		})
	}

	reset, err := h.entitlements.ResetExpiredCycles(c.Context(), time.Now().UTC())
	if err != nil {
		return respondError(c, err)
	}

	fiberlog.Infof("cron-triggered cycle reset touched %d accounts", reset)
	return c.JSON(fiber.Map{
		"accounts_reset": reset,
	})
}
