// Package entitlements owns the per-user credit document. Every mutation is
// expressed as an atomic column update (increments and guarded decrements in
// SQL), never a read-modify-write in application code, so concurrent webhook
// deliveries and conversions for the same account cannot lose updates.
package entitlements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridline-ai/gridline-backend/internal/models"
	"github.com/gridline-ai/gridline-backend/internal/services/ledger"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// AutoMigrate runs database migrations for the accounts table
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&models.Account{})
}

// GetOrCreate retrieves the account for a user, provisioning it with the
// signup bonus on first sign-in.
func (s *Service) GetOrCreate(ctx context.Context, userID, email string) (*models.Account, error) {
	if userID == "" {
		return nil, models.NewValidationError("user id is required", nil)
	}

	var account models.Account
	err := s.db.WithContext(ctx).
		Where("id = ?", userID).
		First(&account).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		account = models.Account{
			ID:                 userID,
			Email:              email,
			Tier:               models.TierFree,
			PlanCredits:        models.SignupBonusCredits,
			RefillCredits:      0,
			SubscriptionStatus: models.SubscriptionNone,
			BillingCycleStart:  time.Now().UTC(),
		}
		if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
			return nil, models.NewStoreError("failed to create account", err)
		}
		return &account, nil
	}
	if err != nil {
		return nil, models.NewStoreError("failed to get account", err)
	}

	return &account, nil
}

// Get retrieves an account by user id.
func (s *Service) Get(ctx context.Context, userID string) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).
		Where("id = ?", userID).
		First(&account).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewUnresolvableAccountError("user " + userID)
	}
	if err != nil {
		return nil, models.NewStoreError("failed to get account", err)
	}
	return &account, nil
}

// GetBySubscriptionID locates the account holding a subscription reference.
// Renewal and cancellation events carry only this id, not the user id.
func (s *Service) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Account, error) {
	if subscriptionID == "" {
		return nil, models.NewValidationError("subscription id is required", nil)
	}

	var account models.Account
	err := s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Limit(1).
		First(&account).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewUnresolvableAccountError("subscription " + subscriptionID)
	}
	if err != nil {
		return nil, models.NewStoreError("failed to find account by subscription", err)
	}
	return &account, nil
}

// AddRefillCredits applies a one-time top-up. Additive: a purchase adds fuel.
func (s *Service) AddRefillCredits(ctx context.Context, userID string, delta int64) error {
	if delta <= 0 {
		return models.NewValidationError("refill delta must be positive", nil)
	}

	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"refill_credits":  gorm.Expr("refill_credits + ?", delta),
			"last_payment_at": time.Now().UTC(),
		})

	if result.Error != nil {
		return models.NewStoreError("failed to add refill credits", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewUnresolvableAccountError("user " + userID)
	}
	return nil
}

// ActivateSubscription applies a subscription start: tier change, plan-credit
// grant, active status and the provider's subscription reference. The credit
// grant is an atomic increment; the remaining fields are plain sets, which
// keeps redelivery of the same activation monotonic-safe for everything but
// the grant (the idempotency guard covers that).
func (s *Service) ActivateSubscription(ctx context.Context, userID string, tier models.Tier, planDelta int64, subscriptionID string) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"subscription_status": models.SubscriptionActive,
		"billing_cycle_start": now,
		"last_payment_at":     now,
	}
	if planDelta > 0 {
		updates["plan_credits"] = gorm.Expr("plan_credits + ?", planDelta)
	}
	if models.ValidTier(tier) {
		updates["tier"] = tier
	}
	if subscriptionID != "" {
		updates["subscription_id"] = subscriptionID
	}

	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", userID).
		Updates(updates)

	if result.Error != nil {
		return models.NewStoreError("failed to activate subscription", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewUnresolvableAccountError("user " + userID)
	}
	return nil
}

// RenewSubscription resets plan credits to the tier's monthly allotment and
// advances the billing cycle. Reset, not increment: a duplicate renewal
// delivery lands on the same balance instead of accumulating.
func (s *Service) RenewSubscription(ctx context.Context, subscriptionID string) error {
	account, err := s.GetBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("subscription_id = ?", subscriptionID).
		Updates(map[string]any{
			"plan_credits":        models.MonthlyAllotment(account.Tier),
			"billing_cycle_start": time.Now().UTC(),
			"subscription_status": models.SubscriptionActive,
			"last_payment_at":     time.Now().UTC(),
		})

	if result.Error != nil {
		return models.NewStoreError("failed to renew subscription", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewUnresolvableAccountError("subscription " + subscriptionID)
	}
	return nil
}

// CancelSubscription drops the account to the free tier and zeroes plan
// credits. Refill credits are purchased outright and survive cancellation.
func (s *Service) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return models.NewValidationError("subscription id is required", nil)
	}

	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("subscription_id = ?", subscriptionID).
		Updates(map[string]any{
			"tier":                models.TierFree,
			"plan_credits":        0,
			"subscription_status": models.SubscriptionCancelled,
		})

	if result.Error != nil {
		return models.NewStoreError("failed to cancel subscription", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewUnresolvableAccountError("subscription " + subscriptionID)
	}
	return nil
}

// CommitDebit applies a burn plan as one conditional atomic decrement. The
// WHERE guard re-checks both buckets so a balance that moved between reserve
// and commit fails the update instead of going negative; zero rows affected
// on an existing account means the reservation is stale.
func (s *Service) CommitDebit(ctx context.Context, userID string, plan ledger.BurnPlan) error {
	if plan.Units() <= 0 {
		return models.NewValidationError("burn plan is empty", nil)
	}

	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND plan_credits >= ? AND refill_credits >= ?", userID, plan.PlanDebit, plan.RefillDebit).
		Updates(map[string]any{
			"plan_credits":   gorm.Expr("plan_credits - ?", plan.PlanDebit),
			"refill_credits": gorm.Expr("refill_credits - ?", plan.RefillDebit),
		})

	if result.Error != nil {
		return models.NewStoreError("failed to commit debit", result.Error)
	}
	if result.RowsAffected == 0 {
		// Either the account vanished or a concurrent debit won the race.
		account, err := s.Get(ctx, userID)
		if err != nil {
			return err
		}
		shortfall := plan.Units() - account.TotalCredits()
		if shortfall < 1 {
			shortfall = 1
		}
		return models.NewInsufficientBalanceError(shortfall)
	}
	return nil
}

// ResetExpiredCycles is the scheduled allotment sweep: every account whose
// cycle started BillingCycleDays or more ago gets plan credits reset to its
// tier's allotment and the cycle start advanced, in one statement per tier
// inside a single transaction. Credits and cycle start always move together.
func (s *Service) ResetExpiredCycles(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-models.BillingCycleDays * 24 * time.Hour)

	var total int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, tier := range []models.Tier{models.TierFree, models.TierStarter, models.TierPro, models.TierBusiness, models.TierEnterprise} {
			result := tx.Model(&models.Account{}).
				Where("tier = ? AND billing_cycle_start <= ?", tier, cutoff).
				Updates(map[string]any{
					"plan_credits":        models.MonthlyAllotment(tier),
					"billing_cycle_start": now,
				})
			if result.Error != nil {
				return fmt.Errorf("failed to reset %s accounts: %w", tier, result.Error)
			}
			total += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, models.NewStoreError("cycle reset sweep failed", err)
	}

	return total, nil
}
