package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paylane/rewards-ledger/catalog"
	"github.com/paylane/rewards-ledger/ledger"
	"github.com/paylane/rewards-ledger/ledger/store"
)

func TestReconcile_CleanBalance_NoDrift(t *testing.T) {
	mem := store.NewMemory()
	svc := ledger.NewService(mem, catalog.Default())
	ctx := context.Background()

	mustRecord(t, svc, "user-1", ledger.PaymentRent, "1000")
	_, err := svc.Redeem(ctx, "user-1", "amazon-25")
	require.NoError(t, err)

	report, err := svc.Reconcile(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, report.Drifted)
	assert.False(t, report.Repaired)
	assert.Equal(t, int64(150), report.Derived.Points)
}

func TestReconcile_DriftedBalance_Repaired(t *testing.T) {
	// GIVEN: A stored balance corrupted out from under the service
	// WHEN: Reconciling against the immutable history
	// THEN: The drift is reported and the derived value written back

	mem := store.NewMemory()
	svc := ledger.NewService(mem, catalog.Default())
	ctx := context.Background()

	mustRecord(t, svc, "user-1", ledger.PaymentRent, "1000") // 250 points

	corrupted := ledger.RewardsBalance{
		UserID:      "user-1",
		Points:      999,
		TotalEarned: 999,
	}
	require.NoError(t, mem.SaveBalance(ctx, corrupted))

	report, err := svc.Reconcile(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, report.Drifted)
	assert.True(t, report.Repaired)
	assert.Equal(t, int64(999), report.Stored.Points)
	assert.Equal(t, int64(250), report.Derived.Points)

	balance, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(250), balance.Points)
	assert.Equal(t, int64(250), balance.TotalEarned)
	assert.True(t, balance.Consistent())
}

func TestVerifyBalance(t *testing.T) {
	mem := store.NewMemory()
	svc := ledger.NewService(mem, catalog.Default())
	ctx := context.Background()

	mustRecord(t, svc, "user-1", ledger.PaymentRent, "1000")
	require.NoError(t, svc.VerifyBalance(ctx, "user-1"))

	require.NoError(t, mem.SaveBalance(ctx, ledger.RewardsBalance{UserID: "user-1", Points: 1, TotalEarned: 1}))

	err := svc.VerifyBalance(ctx, "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrBalanceDrift)

	var drift *ledger.BalanceDriftError
	require.ErrorAs(t, err, &drift)
	assert.Equal(t, int64(1), drift.Stored.Points)
	assert.Equal(t, int64(250), drift.Derived.Points)
}

func TestReconcile_NoHistory_ZeroDerived(t *testing.T) {
	mem := store.NewMemory()
	svc := ledger.NewService(mem, catalog.Default())

	report, err := svc.Reconcile(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, report.Drifted)
	assert.Zero(t, report.Derived.Points)
}
