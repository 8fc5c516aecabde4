// Package billing contains the payment-provider boundary: normalizing webhook
// payloads into canonical events, reconciling them against the entitlement
// store, deduplicating deliveries and creating checkout sessions.
package billing

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gridline-ai/gridline-backend/internal/models"
)

// Key aliases tolerated in webhook metadata. Providers have shipped both
// snake_case and camelCase variants across SDK versions; the reconciler must
// not care which one arrived.
var (
	userIDKeys         = []string{"user_id", "userId", "uid"}
	planCreditsKeys    = []string{"plan_credits", "planCredits", "credits"}
	refillCreditsKeys  = []string{"refill_credits", "refillCredits", "refill"}
	tierKeys           = []string{"tier", "plan"}
	subscriptionIDKeys = []string{"subscription_id", "subscriptionId"}
)

type webhookEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Normalize flattens a raw webhook body into a canonical PaymentEvent.
// eventID is the provider's delivery id from the webhook-id header. Unknown
// event types normalize to EventUnknown rather than erroring so new provider
// event types don't break ingestion.
func Normalize(eventID string, payload []byte) (*models.PaymentEvent, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, models.NewMalformedEventError("webhook body is not valid JSON", err)
	}
	if envelope.Type == "" {
		return nil, models.NewMalformedEventError("webhook body has no type field", nil)
	}

	event := &models.PaymentEvent{
		EventID: eventID,
		Kind:    classifyKind(envelope.Type),
	}
	if event.Kind == models.EventUnknown {
		return event, nil
	}

	var data map[string]any
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, models.NewMalformedEventError("webhook data is not an object", err)
		}
	}

	meta := metadataBag(data)
	event.UserID = firstString(meta, userIDKeys)
	if event.UserID == "" {
		event.UserID = firstString(data, userIDKeys)
	}
	event.PlanCreditsDelta = firstInt(meta, planCreditsKeys)
	event.RefillCreditsDelta = firstInt(meta, refillCreditsKeys)
	if tier := firstString(meta, tierKeys); tier != "" {
		event.Tier = models.Tier(strings.ToLower(tier))
	}
	event.SubscriptionID = firstString(data, subscriptionIDKeys)
	if event.SubscriptionID == "" {
		event.SubscriptionID = firstString(meta, subscriptionIDKeys)
	}

	switch event.Kind {
	case models.EventCheckoutCompleted, models.EventSubscriptionActivated:
		if event.UserID == "" {
			return nil, models.NewMalformedEventError("event carries no user id under any known key", nil)
		}
	case models.EventSubscriptionRenewed, models.EventSubscriptionCancelled:
		// Renewals and cancellations may legitimately omit the user id;
		// the account is located by subscription reference instead.
		if event.SubscriptionID == "" {
			return nil, models.NewMalformedEventError("event carries no subscription id", nil)
		}
	}

	return event, nil
}

// metadataBag extracts the metadata object from either data.metadata or
// data.payload.metadata, whichever is non-empty.
func metadataBag(data map[string]any) map[string]any {
	if m, ok := data["metadata"].(map[string]any); ok && len(m) > 0 {
		return m
	}
	if p, ok := data["payload"].(map[string]any); ok {
		if m, ok := p["metadata"].(map[string]any); ok && len(m) > 0 {
			return m
		}
	}
	return nil
}

func classifyKind(eventType string) models.PaymentEventKind {
	normalized := strings.ToLower(strings.ReplaceAll(eventType, "_", "."))

	switch normalized {
	case "checkout.completed", "checkout.session.completed", "checkout.succeeded":
		return models.EventCheckoutCompleted
	case "subscription.activated", "subscription.active":
		return models.EventSubscriptionActivated
	case "subscription.renewed", "subscription.renewal":
		return models.EventSubscriptionRenewed
	case "subscription.cancelled", "subscription.canceled", "subscription.expired":
		return models.EventSubscriptionCancelled
	default:
		return models.EventUnknown
	}
}

func firstString(bag map[string]any, keys []string) string {
	for _, key := range keys {
		if v, ok := bag[key]; ok {
			switch s := v.(type) {
			case string:
				if s != "" {
					return s
				}
			}
		}
	}
	return ""
}

// firstInt coerces the first present alias to an integer. Providers send
// numbers as JSON numbers or strings depending on SDK version; missing or
// unparseable values default to zero, not an error.
func firstInt(bag map[string]any, keys []string) int64 {
	for _, key := range keys {
		v, ok := bag[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int64(n)
		case string:
			if parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
				return parsed
			}
		case json.Number:
			if parsed, err := n.Int64(); err == nil {
				return parsed
			}
		}
	}
	return 0
}
