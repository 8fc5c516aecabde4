package models

// PaymentEventKind classifies normalized payment-provider webhook events.
type PaymentEventKind string

const (
	EventCheckoutCompleted     PaymentEventKind = "checkout_completed"
	EventSubscriptionActivated PaymentEventKind = "subscription_activated"
	EventSubscriptionRenewed   PaymentEventKind = "subscription_renewed"
	EventSubscriptionCancelled PaymentEventKind = "subscription_cancelled"
	// EventUnknown marks provider event types this release does not handle.
	// They are acknowledged and skipped for forward compatibility.
	EventUnknown PaymentEventKind = "unknown"
)

// PaymentEvent is the canonical view of one inbound payment webhook after the
// normalizer has flattened the provider's schema drift (metadata location,
// snake_case vs camelCase keys) into fixed fields.
type PaymentEvent struct {
	EventID            string
	Kind               PaymentEventKind
	UserID             string
	PlanCreditsDelta   int64
	RefillCreditsDelta int64
	Tier               Tier
	SubscriptionID     string
}

// IsSubscriptionCheckout reports whether a checkout event represents a
// subscription start rather than a one-time refill purchase. The provider
// overloads checkout_completed for both; the shape of the metadata decides.
func (e *PaymentEvent) IsSubscriptionCheckout() bool {
	return e.Tier != "" || e.PlanCreditsDelta > 0
}
