package billing

import (
	"context"

	"github.com/gridline-ai/gridline-backend/internal/models"
	"github.com/gridline-ai/gridline-backend/internal/services/entitlements"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Reconciler drives the entitlement store from normalized payment events.
// Each event kind maps to one atomic store transition; the asymmetry between
// top-ups (increment) and renewals (reset to allotment) is deliberate, since
// reset stays correct if a renewal is ever delivered twice.
type Reconciler struct {
	entitlements *entitlements.Service
}

func NewReconciler(entitlements *entitlements.Service) *Reconciler {
	return &Reconciler{entitlements: entitlements}
}

// Apply executes the state transition for one event. Unresolvable-account and
// malformed errors are permanent; callers should log and acknowledge them.
// Store errors are transient and should surface as non-2xx so the provider
// redelivers.
func (r *Reconciler) Apply(ctx context.Context, event *models.PaymentEvent) error {
	switch event.Kind {
	case models.EventCheckoutCompleted:
		if event.IsSubscriptionCheckout() {
			return r.applySubscriptionStart(ctx, event)
		}
		return r.applyTopUp(ctx, event)

	case models.EventSubscriptionActivated:
		return r.applySubscriptionStart(ctx, event)

	case models.EventSubscriptionRenewed:
		return r.entitlements.RenewSubscription(ctx, event.SubscriptionID)

	case models.EventSubscriptionCancelled:
		return r.entitlements.CancelSubscription(ctx, event.SubscriptionID)

	case models.EventUnknown:
		fiberlog.Infof("ignoring unhandled payment event %s", event.EventID)
		return nil

	default:
		return models.NewMalformedEventError("unclassified payment event kind", nil)
	}
}

func (r *Reconciler) applyTopUp(ctx context.Context, event *models.PaymentEvent) error {
	if event.RefillCreditsDelta <= 0 {
		return models.NewMalformedEventError("checkout event carries no credit amounts", nil)
	}
	return r.entitlements.AddRefillCredits(ctx, event.UserID, event.RefillCreditsDelta)
}

func (r *Reconciler) applySubscriptionStart(ctx context.Context, event *models.PaymentEvent) error {
	if event.Tier != "" && !models.ValidTier(event.Tier) {
		fiberlog.Warnf("payment event %s names unknown tier %q, keeping current tier", event.EventID, event.Tier)
		event.Tier = ""
	}
	return r.entitlements.ActivateSubscription(ctx, event.UserID, event.Tier, event.PlanCreditsDelta, event.SubscriptionID)
}
