package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gridline-ai/gridline-backend/internal/models"
	"github.com/gridline-ai/gridline-backend/internal/services/billing"
	svix "github.com/svix/svix-webhooks/go"
)

// PaymentWebhookHandler receives payment-provider deliveries. Every delivery
// is signature-checked, deduplicated by message id, normalized, then applied
// to the entitlement store. Non-retryable defects are acknowledged with 200
// so the provider stops redelivering them; store failures release the
// idempotency mark and return 5xx so redelivery can succeed later.
type PaymentWebhookHandler struct {
	webhookSecret string
	guard         billing.Guard
	reconciler    *billing.Reconciler
}

func NewPaymentWebhookHandler(webhookSecret string, guard billing.Guard, reconciler *billing.Reconciler) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{
		webhookSecret: webhookSecret,
		guard:         guard,
		reconciler:    reconciler,
	}
}

func (h *PaymentWebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	payload := c.Body()

	headers := make(map[string][]string)
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = []string{string(value)}
	})

	wh, err := svix.NewWebhook(h.webhookSecret)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to initialize webhook verifier",
		})
	}

	if err := wh.Verify(payload, headers); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid webhook signature",
		})
	}

	messageID := c.Get("webhook-id")
	if messageID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing webhook-id header",
		})
	}

	fresh, err := h.guard.CheckAndMark(c.Context(), messageID)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Idempotency check unavailable",
		})
	}
	if !fresh {
		fiberlog.Infof("skipping duplicate webhook delivery %s", messageID)
		return c.JSON(fiber.Map{
			"received":  true,
			"duplicate": true,
		})
	}

	event, err := billing.Normalize(messageID, payload)
	if err != nil {
		// A payload this endpoint cannot parse will not improve with
		// redelivery. Keep the idempotency mark and acknowledge.
		fiberlog.Warnf("acknowledging malformed webhook %s: %v", messageID, err)
		return c.JSON(fiber.Map{
			"received": true,
			"ignored":  true,
		})
	}

	if err := h.reconciler.Apply(c.Context(), event); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && !appErr.Retryable {
			fiberlog.Warnf("acknowledging unprocessable webhook %s (%s): %v", messageID, event.Kind, err)
			return c.JSON(fiber.Map{
				"received": true,
				"ignored":  true,
			})
		}

		// Transient failure: release the mark so the provider's redelivery
		// is not treated as a duplicate.
		if releaseErr := h.guard.Release(c.Context(), messageID); releaseErr != nil {
			fiberlog.Errorf("failed to release idempotency mark for %s: %v", messageID, releaseErr)
		}
		fiberlog.Errorf("webhook %s (%s) failed: %v", messageID, event.Kind, err)
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"received": true,
	})
}
