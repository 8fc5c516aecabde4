package models

import "time"

// Tier is the subscription level. It determines the monthly plan-credit
// allotment and the per-batch conversion limits.
type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierBusiness   Tier = "business"
	TierEnterprise Tier = "enterprise"
)

// SubscriptionStatus tracks the payment provider's view of the account.
type SubscriptionStatus string

const (
	SubscriptionNone      SubscriptionStatus = "none"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// SignupBonusCredits is granted to planCredits when an account is first
// provisioned on sign-in.
const SignupBonusCredits int64 = 10

// BillingCycleDays is the length of one plan-credit cycle. An account whose
// cycle started this many days ago (or more) is due for an allotment reset.
const BillingCycleDays = 30

// Account is the entitlement document for one end user. Credits live in two
// buckets: plan credits reset each billing cycle, refill credits are one-time
// purchases that never expire. Both must stay non-negative; all mutations go
// through atomic column expressions, never read-modify-write.
type Account struct {
	ID                 string             `gorm:"primaryKey" json:"id"`
	Email              string             `gorm:"index" json:"email,omitzero"`
	Tier               Tier               `gorm:"not null;default:free" json:"tier"`
	PlanCredits        int64              `gorm:"not null;default:0" json:"plan_credits"`
	RefillCredits      int64              `gorm:"not null;default:0" json:"refill_credits"`
	SubscriptionStatus SubscriptionStatus `gorm:"not null;default:none" json:"subscription_status"`
	SubscriptionID     string             `gorm:"index" json:"subscription_id,omitzero"`
	BillingCycleStart  time.Time          `gorm:"not null" json:"billing_cycle_start"`
	LastPaymentAt      *time.Time         `json:"last_payment_at,omitempty"`
	CreatedAt          time.Time          `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// TotalCredits is the spendable balance across both buckets.
func (a *Account) TotalCredits() int64 {
	return a.PlanCredits + a.RefillCredits
}

// TierPolicy holds the per-tier limits that drive pricing and batch caps.
type TierPolicy struct {
	MonthlyAllotment int64
	MaxFilesPerBatch int
	// PDFPagesPerUnit is how many PDF pages one credit unit buys.
	PDFPagesPerUnit int
	MaxFileBytes    int64
}

var tierPolicies = map[Tier]TierPolicy{
	TierFree:       {MonthlyAllotment: 10, MaxFilesPerBatch: 2, PDFPagesPerUnit: 5, MaxFileBytes: 20 << 20},
	TierStarter:    {MonthlyAllotment: 300, MaxFilesPerBatch: 10, PDFPagesPerUnit: 10, MaxFileBytes: 50 << 20},
	TierPro:        {MonthlyAllotment: 1000, MaxFilesPerBatch: 30, PDFPagesPerUnit: 15, MaxFileBytes: 100 << 20},
	TierBusiness:   {MonthlyAllotment: 4000, MaxFilesPerBatch: 100, PDFPagesPerUnit: 20, MaxFileBytes: 200 << 20},
	TierEnterprise: {MonthlyAllotment: 20000, MaxFilesPerBatch: 500, PDFPagesPerUnit: 25, MaxFileBytes: 500 << 20},
}

// PolicyForTier returns the limits for a tier, falling back to the free tier
// for unknown values so a corrupt row never grants unbounded access.
func PolicyForTier(tier Tier) TierPolicy {
	if p, ok := tierPolicies[tier]; ok {
		return p
	}
	return tierPolicies[TierFree]
}

// ValidTier reports whether the string names a known tier.
func ValidTier(tier Tier) bool {
	_, ok := tierPolicies[tier]
	return ok
}

// MonthlyAllotment returns the plan-credit allotment a renewal or scheduled
// reset sets for the tier.
func MonthlyAllotment(tier Tier) int64 {
	return PolicyForTier(tier).MonthlyAllotment
}
