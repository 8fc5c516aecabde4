package entitlements

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gridline-ai/gridline-backend/internal/models"
	"github.com/gridline-ai/gridline-backend/internal/services/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	svc := NewService(db)
	require.NoError(t, svc.AutoMigrate())
	return svc
}

func seedAccount(t *testing.T, svc *Service, account models.Account) {
	t.Helper()
	if account.BillingCycleStart.IsZero() {
		account.BillingCycleStart = time.Now().UTC()
	}
	require.NoError(t, svc.db.Create(&account).Error)
}

func TestGetOrCreateProvisionsSignupBonus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	account, err := svc.GetOrCreate(ctx, "user_1", "u1@example.com")
	require.NoError(t, err)

	assert.Equal(t, models.TierFree, account.Tier)
	assert.Equal(t, models.SignupBonusCredits, account.PlanCredits)
	assert.Equal(t, int64(0), account.RefillCredits)
	assert.Equal(t, models.SubscriptionNone, account.SubscriptionStatus)

	// Second call returns the same row, no double bonus.
	again, err := svc.GetOrCreate(ctx, "user_1", "u1@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.PlanCredits, again.PlanCredits)
}

func TestConservationAcrossOperations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seedAccount(t, svc, models.Account{ID: "user_2", Tier: models.TierPro, PlanCredits: 50, RefillCredits: 20})
	start := int64(70)

	require.NoError(t, svc.AddRefillCredits(ctx, "user_2", 30))

	plan, err := ledger.Reserve(50, 50, 12)
	require.NoError(t, err)
	require.NoError(t, svc.CommitDebit(ctx, "user_2", plan))

	plan, err = ledger.Reserve(38, 50, 45)
	require.NoError(t, err)
	require.NoError(t, svc.CommitDebit(ctx, "user_2", plan))

	account, err := svc.Get(ctx, "user_2")
	require.NoError(t, err)
	assert.Equal(t, start+30-12-45, account.TotalCredits())
	assert.GreaterOrEqual(t, account.PlanCredits, int64(0))
	assert.GreaterOrEqual(t, account.RefillCredits, int64(0))
}

func TestCommitDebitGuardRejectsStaleReservation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seedAccount(t, svc, models.Account{ID: "user_3", Tier: models.TierFree, PlanCredits: 5, RefillCredits: 0})

	// Reservation computed against a balance that no longer exists.
	stale := ledger.BurnPlan{PlanDebit: 5, RefillDebit: 3}
	err := svc.CommitDebit(ctx, "user_3", stale)
	require.Error(t, err)

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.ErrorTypeInsufficientBalance, appErr.Type)

	account, err := svc.Get(ctx, "user_3")
	require.NoError(t, err)
	assert.Equal(t, int64(5), account.PlanCredits)
	assert.Equal(t, int64(0), account.RefillCredits)
}

func TestAddRefillCreditsUnknownAccount(t *testing.T) {
	svc := newTestService(t)

	err := svc.AddRefillCredits(context.Background(), "ghost", 10)
	require.Error(t, err)

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.ErrorTypeUnresolvableAccount, appErr.Type)
}

func TestCancelSubscriptionPreservesRefill(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seedAccount(t, svc, models.Account{
		ID: "user_4", Tier: models.TierPro,
		PlanCredits: 40, RefillCredits: 25,
		SubscriptionStatus: models.SubscriptionActive,
		SubscriptionID:     "sub_123",
	})

	require.NoError(t, svc.CancelSubscription(ctx, "sub_123"))

	account, err := svc.Get(ctx, "user_4")
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, account.Tier)
	assert.Equal(t, int64(0), account.PlanCredits)
	assert.Equal(t, int64(25), account.RefillCredits)
	assert.Equal(t, models.SubscriptionCancelled, account.SubscriptionStatus)
}

func TestRenewSubscriptionResetsNotIncrements(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seedAccount(t, svc, models.Account{
		ID: "user_5", Tier: models.TierStarter,
		PlanCredits: 123, RefillCredits: 7,
		SubscriptionStatus: models.SubscriptionActive,
		SubscriptionID:     "sub_456",
	})

	require.NoError(t, svc.RenewSubscription(ctx, "sub_456"))
	require.NoError(t, svc.RenewSubscription(ctx, "sub_456"))

	account, err := svc.Get(ctx, "user_5")
	require.NoError(t, err)
	assert.Equal(t, models.MonthlyAllotment(models.TierStarter), account.PlanCredits)
	assert.Equal(t, int64(7), account.RefillCredits)
}

func TestResetExpiredCyclesBoundary(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedAccount(t, svc, models.Account{
		ID: "fresh", Tier: models.TierPro,
		PlanCredits:       3,
		BillingCycleStart: now.Add(-29 * 24 * time.Hour),
	})
	seedAccount(t, svc, models.Account{
		ID: "due", Tier: models.TierPro,
		PlanCredits:       3,
		BillingCycleStart: now.Add(-30 * 24 * time.Hour),
	})

	count, err := svc.ResetExpiredCycles(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	fresh, err := svc.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, int64(3), fresh.PlanCredits)
	assert.Equal(t, now.Add(-29*24*time.Hour).Unix(), fresh.BillingCycleStart.Unix())

	due, err := svc.Get(ctx, "due")
	require.NoError(t, err)
	assert.Equal(t, models.MonthlyAllotment(models.TierPro), due.PlanCredits)
	assert.Equal(t, now.Unix(), due.BillingCycleStart.Unix())
}

func TestResetExpiredCyclesNeverTouchesRefill(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedAccount(t, svc, models.Account{
		ID: "user_6", Tier: models.TierFree,
		PlanCredits: 1, RefillCredits: 99,
		BillingCycleStart: now.Add(-45 * 24 * time.Hour),
	})

	_, err := svc.ResetExpiredCycles(ctx, now)
	require.NoError(t, err)

	account, err := svc.Get(ctx, "user_6")
	require.NoError(t, err)
	assert.Equal(t, models.MonthlyAllotment(models.TierFree), account.PlanCredits)
	assert.Equal(t, int64(99), account.RefillCredits)
}
