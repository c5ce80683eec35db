package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/chatpay_server/internal/model"
	"github.com/qs3c/chatpay_server/internal/repository"
	"github.com/qs3c/chatpay_server/internal/testutil"
)

func setupQuotaService(t *testing.T) (*QuotaService, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	service := NewQuotaService(repository.NewSubscriptionRepository(db))

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return service, cleanup
}

func TestQuotaService_QuotaFor(t *testing.T) {
	service := NewQuotaService(nil)

	tests := []struct {
		planID string
		want   int
	}{
		{model.PlanFree, 1000},
		{model.PlanPremium, 10000},
		{model.PlanPro, 50000},
		{"", 1000},
		{"enterprise", 1000},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, service.QuotaFor(tt.planID), "plan %q", tt.planID)
	}
}

func TestQuotaService_GetBudget_NoSubscription(t *testing.T) {
	service, cleanup := setupQuotaService(t)
	defer cleanup()

	info, err := service.GetBudget(context.Background(), "unknown_user")
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, info.PlanID)
	assert.Equal(t, "none", info.Status)
	assert.Equal(t, 1000, info.TokenLimit)
}

func TestQuotaService_GetBudget_ActivePro(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	service := NewQuotaService(repository.NewSubscriptionRepository(db))
	user := testutil.TestUser(t, db, testutil.WithSubscription(model.PlanPro, model.StatusActive, time.Now()))

	info, err := service.GetBudget(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, info.PlanID)
	assert.Equal(t, "active", info.Status)
	assert.Equal(t, 50000, info.TokenLimit)
}

func TestQuotaService_GetBudget_BoundaryOfPeriod(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	service := NewQuotaService(repository.NewSubscriptionRepository(db))
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	user := testutil.TestUser(t, db, testutil.WithSubscription(model.PlanPremium, model.StatusActive, start))
	end := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)

	// endDate 当刻仍然有效
	service.now = fixedClock(end)
	info, err := service.GetBudget(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10000, info.TokenLimit)

	service.now = fixedClock(end.Add(time.Second))
	info, err = service.GetBudget(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, info.PlanID)
	assert.Equal(t, "expired", info.Status)
	assert.Equal(t, 1000, info.TokenLimit)
}

func TestQuotaService_GetBudget_PendingIsFree(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	service := NewQuotaService(repository.NewSubscriptionRepository(db))
	user := testutil.TestUser(t, db, testutil.WithSubscription(model.PlanPro, model.StatusPending, time.Now()))

	info, err := service.GetBudget(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, info.PlanID)
	assert.Equal(t, "pending", info.Status)
}

func TestQuotaService_GetBudget_Errors(t *testing.T) {
	_, err := NewQuotaService(failingStore{}).GetBudget(context.Background(), "uid")
	assert.ErrorIs(t, err, ErrStorage)

	_, err = NewQuotaService(failingStore{}).GetBudget(context.Background(), "")
	assert.ErrorIs(t, err, ErrAuth)
}
