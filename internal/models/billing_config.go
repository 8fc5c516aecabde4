package models

// BillingConfig wires the payment provider. Checkout sessions are created
// against Stripe; webhook deliveries arrive through the provider's event
// gateway and carry standard-webhooks signatures (webhook-id / -timestamp /
// -signature headers, base64 HMAC secret).
type BillingConfig struct {
	StripeSecretKey string `json:"stripe_secret_key" yaml:"stripe_secret_key"`
	WebhookSecret   string `json:"webhook_secret" yaml:"webhook_secret"`
	// CronSecret protects the scheduled-sweep trigger endpoint.
	CronSecret string `json:"cron_secret" yaml:"cron_secret"`
	SuccessURL string `json:"success_url" yaml:"success_url"`
	CancelURL  string `json:"cancel_url" yaml:"cancel_url"`
}
