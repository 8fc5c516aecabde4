package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gridline-ai/gridline-backend/internal/models"
	"github.com/gridline-ai/gridline-backend/internal/services/auth"
	"github.com/gridline-ai/gridline-backend/internal/services/entitlements"
	"github.com/gridline-ai/gridline-backend/internal/services/ledger"
)

type CreditsHandler struct {
	entitlements *entitlements.Service
}

func NewCreditsHandler(entitlementsService *entitlements.Service) *CreditsHandler {
	return &CreditsHandler{
		entitlements: entitlementsService,
	}
}

// GetBalanceResponse represents the response for balance queries
type GetBalanceResponse struct {
	UserID             string                    `json:"user_id"`
	Tier               models.Tier               `json:"tier"`
	PlanCredits        int64                     `json:"plan_credits"`
	RefillCredits      int64                     `json:"refill_credits"`
	TotalCredits       int64                     `json:"total_credits"`
	SubscriptionStatus models.SubscriptionStatus `json:"subscription_status"`
	BillingCycleStart  time.Time                 `json:"billing_cycle_start"`
}

// GetBalance returns the caller's current bucket balances.
func (h *CreditsHandler) GetBalance(c *fiber.Ctx) error {
	authCtx := auth.GetAuthContext(c)
	userID, ok := authCtx.GetUserID()
	if !ok {
		return respondError(c, models.NewAuthenticationError("authentication required", nil))
	}

	account, err := h.entitlements.Get(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(GetBalanceResponse{
		UserID:             account.ID,
		Tier:               account.Tier,
		PlanCredits:        account.PlanCredits,
		RefillCredits:      account.RefillCredits,
		TotalCredits:       account.TotalCredits(),
		SubscriptionStatus: account.SubscriptionStatus,
		BillingCycleStart:  account.BillingCycleStart,
	})
}

// QuoteRequest carries the file descriptors to price without uploading bytes.
type QuoteRequest struct {
	Files []models.FileDescriptor `json:"files"`
}

// QuoteResponse reports the cost of a prospective batch against the caller's
// current balance. Nothing is reserved or charged.
type QuoteResponse struct {
	UnitsRequired int64 `json:"units_required"`
	PlanDebit     int64 `json:"plan_debit"`
	RefillDebit   int64 `json:"refill_debit"`
	CanAfford     bool  `json:"can_afford"`
	Shortfall     int64 `json:"shortfall,omitzero"`
}

// Quote prices a batch of descriptors for the caller's tier.
func (h *CreditsHandler) Quote(c *fiber.Ctx) error {
	authCtx := auth.GetAuthContext(c)
	userID, ok := authCtx.GetUserID()
	if !ok {
		return respondError(c, models.NewAuthenticationError("authentication required", nil))
	}

	var req QuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("invalid request body", err))
	}
	if len(req.Files) == 0 {
		return respondError(c, models.NewValidationError("at least one file descriptor is required", nil))
	}

	account, err := h.entitlements.Get(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	required, err := ledger.Quote(account.Tier, req.Files)
	if err != nil {
		return respondError(c, err)
	}

	plan, err := ledger.Reserve(account.PlanCredits, account.RefillCredits, required)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Type == models.ErrorTypeInsufficientBalance {
			return c.JSON(QuoteResponse{
				UnitsRequired: required,
				CanAfford:     false,
				Shortfall:     appErr.Shortfall,
			})
		}
		return respondError(c, err)
	}

	return c.JSON(QuoteResponse{
		UnitsRequired: required,
		PlanDebit:     plan.PlanDebit,
		RefillDebit:   plan.RefillDebit,
		CanAfford:     true,
	})
}
