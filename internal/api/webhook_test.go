package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gridline-ai/gridline-backend/internal/services/billing"
	"github.com/gridline-ai/gridline-backend/internal/services/entitlements"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var webhookTestKey = []byte("0123456789abcdef0123456789abcdef")

// memoryGuard stands in for the redis idempotency guard.
type memoryGuard struct {
	seen map[string]bool
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{seen: make(map[string]bool)}
}

func (g *memoryGuard) CheckAndMark(ctx context.Context, messageID string) (bool, error) {
	if g.seen[messageID] {
		return false, nil
	}
	g.seen[messageID] = true
	return true, nil
}

func (g *memoryGuard) Release(ctx context.Context, messageID string) error {
	delete(g.seen, messageID)
	return nil
}

func newWebhookTestApp(t *testing.T) (*fiber.App, *entitlements.Service, *memoryGuard) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	svc := entitlements.NewService(db)
	require.NoError(t, svc.AutoMigrate())

	guard := newMemoryGuard()
	secret := "whsec_" + base64.StdEncoding.EncodeToString(webhookTestKey)
	handler := NewPaymentWebhookHandler(secret, guard, billing.NewReconciler(svc))

	app := fiber.New()
	app.Post("/webhooks/payments", handler.HandleWebhook)
	return app, svc, guard
}

// signedRequest builds a delivery carrying a valid standard-webhooks
// signature over {id}.{timestamp}.{body}.
func signedRequest(messageID string, body []byte) *http.Request {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	mac := hmac.New(sha256.New, webhookTestKey)
	mac.Write([]byte(messageID + "." + timestamp + "." + string(body)))
	signature := "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("webhook-id", messageID)
	req.Header.Set("webhook-timestamp", timestamp)
	req.Header.Set("webhook-signature", signature)
	return req
}

func TestWebhookTopUpCreditsAccount(t *testing.T) {
	app, svc, _ := newWebhookTestApp(t)
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, "user_1", "user_1@example.com")
	require.NoError(t, err)

	body := []byte(`{"type":"checkout.completed","data":{"metadata":{"user_id":"user_1","refill_credits":500}}}`)
	resp, err := app.Test(signedRequest("msg_topup_1", body), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	account, err := svc.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), account.RefillCredits)
}

func TestWebhookTamperedBodyIsRejected(t *testing.T) {
	app, svc, _ := newWebhookTestApp(t)
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, "user_1", "user_1@example.com")
	require.NoError(t, err)

	// Sign one body, deliver another.
	signed := signedRequest("msg_tamper_1", []byte(`{"type":"checkout.completed","data":{"metadata":{"user_id":"user_1","refill_credits":500}}}`))
	tampered := []byte(`{"type":"checkout.completed","data":{"metadata":{"user_id":"user_1","refill_credits":999999}}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(tampered))
	for _, name := range []string{"Content-Type", "webhook-id", "webhook-timestamp", "webhook-signature"} {
		req.Header.Set(name, signed.Header.Get(name))
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	account, err := svc.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.RefillCredits)
}

func TestWebhookDuplicateDeliveryAppliesOnce(t *testing.T) {
	app, svc, _ := newWebhookTestApp(t)
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, "user_1", "user_1@example.com")
	require.NoError(t, err)

	body := []byte(`{"type":"checkout.completed","data":{"metadata":{"user_id":"user_1","refill_credits":100}}}`)

	resp, err := app.Test(signedRequest("msg_dup_1", body), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(signedRequest("msg_dup_1", body), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	account, err := svc.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.RefillCredits)
}

func TestWebhookMalformedPayloadIsAcknowledged(t *testing.T) {
	app, _, guard := newWebhookTestApp(t)

	body := []byte(`{"type":"checkout.completed","data":{"metadata":{"refill_credits":100}}}`)
	resp, err := app.Test(signedRequest("msg_malformed_1", body), -1)
	require.NoError(t, err)

	// Missing user id will never parse on redelivery; ack and keep the mark.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, guard.seen["msg_malformed_1"])
}

func TestWebhookUnresolvableAccountIsAcknowledged(t *testing.T) {
	app, _, guard := newWebhookTestApp(t)

	body := []byte(`{"type":"checkout.completed","data":{"metadata":{"user_id":"ghost","refill_credits":100}}}`)
	resp, err := app.Test(signedRequest("msg_ghost_1", body), -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, guard.seen["msg_ghost_1"])
}

func TestWebhookUnknownEventTypeIsAcknowledged(t *testing.T) {
	app, _, _ := newWebhookTestApp(t)

	body := []byte(`{"type":"refund.created","data":{}}`)
	resp, err := app.Test(signedRequest("msg_unknown_1", body), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
