package billing

import (
	"context"
	"fmt"

	"github.com/gridline-ai/gridline-backend/internal/models"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
)

// CheckoutService creates Stripe checkout sessions for refill packs and
// subscription starts. The metadata written here is what the webhook
// normalizer reads back out of payment events, so the key names must stay in
// the normalizer's alias tables.
type CheckoutService struct {
	config models.BillingConfig
}

func NewCheckoutService(config models.BillingConfig) *CheckoutService {
	stripe.Key = config.StripeSecretKey
	return &CheckoutService{config: config}
}

// CreateRefillParams describes a one-time credit pack purchase.
type CreateRefillParams struct {
	UserID        string
	PriceID       string
	RefillCredits int64
	CustomerEmail string
}

// CreateSubscriptionParams describes a subscription start.
type CreateSubscriptionParams struct {
	UserID        string
	PriceID       string
	Tier          models.Tier
	CustomerEmail string
}

// CreateRefillSession creates a payment-mode checkout session for a refill
// pack.
func (s *CheckoutService) CreateRefillSession(ctx context.Context, params CreateRefillParams) (*stripe.CheckoutSession, error) {
	if params.UserID == "" || params.PriceID == "" {
		return nil, models.NewValidationError("user id and price id are required", nil)
	}
	if params.RefillCredits <= 0 {
		return nil, models.NewValidationError("refill credits must be positive", nil)
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.config.SuccessURL),
		CancelURL:  stripe.String(s.config.CancelURL),
		Metadata: map[string]string{
			"user_id":        params.UserID,
			"refill_credits": fmt.Sprintf("%d", params.RefillCredits),
		},
	}
	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}

	sess, err := session.New(sessionParams)
	if err != nil {
		return nil, models.NewProviderError("stripe", "failed to create checkout session", err)
	}
	return sess, nil
}

// CreateSubscriptionSession creates a subscription-mode checkout session. The
// plan-credit grant is derived from the tier's allotment so the webhook event
// and the scheduled resets agree on the amount.
func (s *CheckoutService) CreateSubscriptionSession(ctx context.Context, params CreateSubscriptionParams) (*stripe.CheckoutSession, error) {
	if params.UserID == "" || params.PriceID == "" {
		return nil, models.NewValidationError("user id and price id are required", nil)
	}
	if !models.ValidTier(params.Tier) || params.Tier == models.TierFree {
		return nil, models.NewValidationError("invalid subscription tier", nil)
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.config.SuccessURL),
		CancelURL:  stripe.String(s.config.CancelURL),
		Metadata: map[string]string{
			"user_id":      params.UserID,
			"tier":         string(params.Tier),
			"plan_credits": fmt.Sprintf("%d", models.MonthlyAllotment(params.Tier)),
		},
	}
	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}

	sess, err := session.New(sessionParams)
	if err != nil {
		return nil, models.NewProviderError("stripe", "failed to create checkout session", err)
	}
	return sess, nil
}
