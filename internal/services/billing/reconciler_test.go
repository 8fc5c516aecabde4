package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gridline-ai/gridline-backend/internal/models"
	"github.com/gridline-ai/gridline-backend/internal/services/entitlements"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestReconciler(t *testing.T) (*Reconciler, *entitlements.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	svc := entitlements.NewService(db)
	require.NoError(t, svc.AutoMigrate())
	return NewReconciler(svc), svc
}

func createAccount(t *testing.T, svc *entitlements.Service, id string) {
	t.Helper()
	_, err := svc.GetOrCreate(context.Background(), id, id+"@example.com")
	require.NoError(t, err)
}

func TestApplyTopUpIncrementsRefill(t *testing.T) {
	reconciler, svc := newTestReconciler(t)
	ctx := context.Background()
	createAccount(t, svc, "user_1")

	event := &models.PaymentEvent{
		EventID:            "evt_1",
		Kind:               models.EventCheckoutCompleted,
		UserID:             "user_1",
		RefillCreditsDelta: 500,
	}
	require.NoError(t, reconciler.Apply(ctx, event))
	require.NoError(t, reconciler.Apply(ctx, event))

	account, err := svc.Get(ctx, "user_1")
	require.NoError(t, err)
	// Top-ups are additive by nature; dedup happens at the guard, not here.
	assert.Equal(t, int64(1000), account.RefillCredits)
	assert.Equal(t, models.SignupBonusCredits, account.PlanCredits)
	require.NotNil(t, account.LastPaymentAt)
}

func TestApplySubscriptionCheckout(t *testing.T) {
	reconciler, svc := newTestReconciler(t)
	ctx := context.Background()
	createAccount(t, svc, "user_2")

	event := &models.PaymentEvent{
		EventID:          "evt_2",
		Kind:             models.EventCheckoutCompleted,
		UserID:           "user_2",
		PlanCreditsDelta: 1000,
		Tier:             models.TierPro,
		SubscriptionID:   "sub_pro_1",
	}
	require.NoError(t, reconciler.Apply(ctx, event))

	account, err := svc.Get(ctx, "user_2")
	require.NoError(t, err)
	assert.Equal(t, models.TierPro, account.Tier)
	assert.Equal(t, models.SignupBonusCredits+1000, account.PlanCredits)
	assert.Equal(t, models.SubscriptionActive, account.SubscriptionStatus)
	assert.Equal(t, "sub_pro_1", account.SubscriptionID)
}

func TestApplyRenewalIsIdempotentByReset(t *testing.T) {
	reconciler, svc := newTestReconciler(t)
	ctx := context.Background()
	createAccount(t, svc, "user_3")

	require.NoError(t, reconciler.Apply(ctx, &models.PaymentEvent{
		EventID:          "evt_3",
		Kind:             models.EventSubscriptionActivated,
		UserID:           "user_3",
		Tier:             models.TierStarter,
		PlanCreditsDelta: 300,
		SubscriptionID:   "sub_starter_1",
	}))

	renewal := &models.PaymentEvent{
		EventID:        "evt_4",
		Kind:           models.EventSubscriptionRenewed,
		SubscriptionID: "sub_starter_1",
	}
	require.NoError(t, reconciler.Apply(ctx, renewal))

	account, err := svc.Get(ctx, "user_3")
	require.NoError(t, err)
	first := account.PlanCredits
	assert.Equal(t, models.MonthlyAllotment(models.TierStarter), first)

	require.NoError(t, reconciler.Apply(ctx, renewal))

	account, err = svc.Get(ctx, "user_3")
	require.NoError(t, err)
	assert.Equal(t, first, account.PlanCredits)
}

func TestApplyCancellationZeroesPlanPreservesRefill(t *testing.T) {
	reconciler, svc := newTestReconciler(t)
	ctx := context.Background()
	createAccount(t, svc, "user_4")

	require.NoError(t, reconciler.Apply(ctx, &models.PaymentEvent{
		EventID:          "evt_5",
		Kind:             models.EventSubscriptionActivated,
		UserID:           "user_4",
		Tier:             models.TierPro,
		PlanCreditsDelta: 30,
		SubscriptionID:   "sub_pro_2",
	}))
	require.NoError(t, svc.AddRefillCredits(ctx, "user_4", 25))

	require.NoError(t, reconciler.Apply(ctx, &models.PaymentEvent{
		EventID:        "evt_6",
		Kind:           models.EventSubscriptionCancelled,
		SubscriptionID: "sub_pro_2",
	}))

	account, err := svc.Get(ctx, "user_4")
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, account.Tier)
	assert.Equal(t, int64(0), account.PlanCredits)
	assert.Equal(t, int64(25), account.RefillCredits)
	assert.Equal(t, models.SubscriptionCancelled, account.SubscriptionStatus)
}

func TestApplyUnresolvableAccount(t *testing.T) {
	reconciler, _ := newTestReconciler(t)

	err := reconciler.Apply(context.Background(), &models.PaymentEvent{
		EventID:            "evt_7",
		Kind:               models.EventCheckoutCompleted,
		UserID:             "ghost",
		RefillCreditsDelta: 10,
	})
	require.Error(t, err)

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.ErrorTypeUnresolvableAccount, appErr.Type)
}

func TestApplyUnknownKindIsNoOp(t *testing.T) {
	reconciler, _ := newTestReconciler(t)

	err := reconciler.Apply(context.Background(), &models.PaymentEvent{
		EventID: "evt_8",
		Kind:    models.EventUnknown,
	})
	require.NoError(t, err)
}

func TestApplyTopUpWithoutAmountIsMalformed(t *testing.T) {
	reconciler, svc := newTestReconciler(t)
	ctx := context.Background()
	createAccount(t, svc, "user_5")

	err := reconciler.Apply(ctx, &models.PaymentEvent{
		EventID: "evt_9",
		Kind:    models.EventCheckoutCompleted,
		UserID:  "user_5",
	})
	require.Error(t, err)

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.ErrorTypeMalformedEvent, appErr.Type)

	// The malformed event must not have touched the account.
	account, err := svc.Get(ctx, "user_5")
	require.NoError(t, err)
	assert.Equal(t, models.SignupBonusCredits, account.PlanCredits)
	assert.Equal(t, int64(0), account.RefillCredits)
	assert.WithinDuration(t, time.Now().UTC(), account.BillingCycleStart, time.Minute)
}
