package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gridline-ai/gridline-backend/internal/models"
	"github.com/gridline-ai/gridline-backend/internal/services/auth"
	"github.com/gridline-ai/gridline-backend/internal/services/billing"
)

type CheckoutHandler struct {
	checkout *billing.CheckoutService
}

func NewCheckoutHandler(checkoutService *billing.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkoutService,
	}
}

// CreateCheckoutRequest selects between a one-time refill pack and a
// subscription start. Refill mode needs the credit amount; subscription mode
// needs the tier.
type CreateCheckoutRequest struct {
	Mode          string      `json:"mode"`
	PriceID       string      `json:"price_id"`
	RefillCredits int64       `json:"refill_credits,omitzero"`
	Tier          models.Tier `json:"tier,omitzero"`
}

type CreateCheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

func (h *CheckoutHandler) CreateSession(c *fiber.Ctx) error {
	authCtx := auth.GetAuthContext(c)
	userID, ok := authCtx.GetUserID()
	if !ok {
		return respondError(c, models.NewAuthenticationError("authentication required", nil))
	}

	var req CreateCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("invalid request body", err))
	}

	email := ""
	if authCtx.Account != nil {
		email = authCtx.Account.Email
	}

	switch req.Mode {
	case "refill":
		if req.RefillCredits <= 0 {
			return respondError(c, models.NewValidationError("refill_credits must be positive", nil))
		}
		session, err := h.checkout.CreateRefillSession(c.Context(), billing.CreateRefillParams{
			UserID:        userID,
			PriceID:       req.PriceID,
			RefillCredits: req.RefillCredits,
			CustomerEmail: email,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(CreateCheckoutResponse{SessionID: session.ID, URL: session.URL})

	case "subscription":
		if !models.ValidTier(req.Tier) || req.Tier == models.TierFree {
			return respondError(c, models.NewValidationError("tier must name a paid plan", nil))
		}
		session, err := h.checkout.CreateSubscriptionSession(c.Context(), billing.CreateSubscriptionParams{
			UserID:        userID,
			PriceID:       req.PriceID,
			Tier:          req.Tier,
			CustomerEmail: email,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(CreateCheckoutResponse{SessionID: session.ID, URL: session.URL})

	default:
		return respondError(c, models.NewValidationError("mode must be refill or subscription", nil))
	}
}
