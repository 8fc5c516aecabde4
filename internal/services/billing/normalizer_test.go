package billing

import (
	"errors"
	"testing"

	"github.com/gridline-ai/gridline-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTopUpCheckout(t *testing.T) {
	payload := []byte(`{
		"type": "checkout.completed",
		"data": {
			"metadata": {"user_id": "user_1", "refill_credits": "500"}
		}
	}`)

	event, err := Normalize("msg_1", payload)
	require.NoError(t, err)

	assert.Equal(t, "msg_1", event.EventID)
	assert.Equal(t, models.EventCheckoutCompleted, event.Kind)
	assert.Equal(t, "user_1", event.UserID)
	assert.Equal(t, int64(500), event.RefillCreditsDelta)
	assert.Equal(t, int64(0), event.PlanCreditsDelta)
	assert.False(t, event.IsSubscriptionCheckout())
}

func TestNormalizeSubscriptionCheckoutByMetadataShape(t *testing.T) {
	payload := []byte(`{
		"type": "checkout_completed",
		"data": {
			"subscription_id": "sub_9",
			"metadata": {"userId": "user_2", "planCredits": 1000, "tier": "pro"}
		}
	}`)

	event, err := Normalize("msg_2", payload)
	require.NoError(t, err)

	assert.Equal(t, models.EventCheckoutCompleted, event.Kind)
	assert.Equal(t, "user_2", event.UserID)
	assert.Equal(t, int64(1000), event.PlanCreditsDelta)
	assert.Equal(t, models.TierPro, event.Tier)
	assert.Equal(t, "sub_9", event.SubscriptionID)
	assert.True(t, event.IsSubscriptionCheckout())
}

func TestNormalizeNestedPayloadMetadata(t *testing.T) {
	payload := []byte(`{
		"type": "subscription.activated",
		"data": {
			"payload": {"metadata": {"user_id": "user_3", "tier": "starter", "plan_credits": 300}}
		}
	}`)

	event, err := Normalize("msg_3", payload)
	require.NoError(t, err)

	assert.Equal(t, models.EventSubscriptionActivated, event.Kind)
	assert.Equal(t, "user_3", event.UserID)
	assert.Equal(t, models.TierStarter, event.Tier)
	assert.Equal(t, int64(300), event.PlanCreditsDelta)
}

func TestNormalizeTopLevelMetadataWinsWhenNonEmpty(t *testing.T) {
	payload := []byte(`{
		"type": "checkout.completed",
		"data": {
			"metadata": {"user_id": "direct"},
			"payload": {"metadata": {"user_id": "nested", "refill_credits": 10}}
		}
	}`)

	event, err := Normalize("msg_4", payload)
	require.NoError(t, err)
	assert.Equal(t, "direct", event.UserID)
	// Deltas were only present in the shadowed bag; they default to zero.
	assert.Equal(t, int64(0), event.RefillCreditsDelta)
}

func TestNormalizeRenewalNeedsOnlySubscriptionID(t *testing.T) {
	payload := []byte(`{
		"type": "subscription.renewed",
		"data": {"subscription_id": "sub_42"}
	}`)

	event, err := Normalize("msg_5", payload)
	require.NoError(t, err)

	assert.Equal(t, models.EventSubscriptionRenewed, event.Kind)
	assert.Empty(t, event.UserID)
	assert.Equal(t, "sub_42", event.SubscriptionID)
}

func TestNormalizeCancellationVariants(t *testing.T) {
	for _, eventType := range []string{"subscription.cancelled", "subscription.canceled", "subscription_expired"} {
		payload := []byte(`{"type": "` + eventType + `", "data": {"subscriptionId": "sub_7"}}`)

		event, err := Normalize("msg_6", payload)
		require.NoError(t, err, eventType)
		assert.Equal(t, models.EventSubscriptionCancelled, event.Kind, eventType)
		assert.Equal(t, "sub_7", event.SubscriptionID, eventType)
	}
}

func TestNormalizeMissingUserIDIsMalformed(t *testing.T) {
	payload := []byte(`{
		"type": "checkout.completed",
		"data": {"metadata": {"refill_credits": 100}}
	}`)

	_, err := Normalize("msg_7", payload)
	require.Error(t, err)

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.ErrorTypeMalformedEvent, appErr.Type)
}

func TestNormalizeUnknownTypeIsIgnoredNotError(t *testing.T) {
	payload := []byte(`{"type": "refund.created", "data": {}}`)

	event, err := Normalize("msg_8", payload)
	require.NoError(t, err)
	assert.Equal(t, models.EventUnknown, event.Kind)
}

func TestNormalizeMissingDeltasDefaultToZero(t *testing.T) {
	payload := []byte(`{
		"type": "subscription.activated",
		"data": {"metadata": {"user_id": "user_9", "tier": "business"}}
	}`)

	event, err := Normalize("msg_9", payload)
	require.NoError(t, err)
	assert.Equal(t, int64(0), event.PlanCreditsDelta)
	assert.Equal(t, int64(0), event.RefillCreditsDelta)
}

func TestNormalizeGarbageBody(t *testing.T) {
	_, err := Normalize("msg_10", []byte("not json"))
	require.Error(t, err)
}
