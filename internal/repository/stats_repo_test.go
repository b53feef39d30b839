package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/qrcode_go_server/internal/testutil"
)

func TestStatsRepository_Aggregates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewStatsRepository(db)
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	monthStart := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(10 * 24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	active := testutil.TestUser(t, db, testutil.WithPlan("pro", &future), testutil.WithCreatedAt(now.Add(-30*time.Minute)))
	testutil.TestUser(t, db, testutil.WithPlan("pro", &future), testutil.WithCancelled(), testutil.WithCreatedAt(now.Add(-48*time.Hour)))
	testutil.TestUser(t, db, testutil.WithPlan("starter", &past), testutil.WithCreatedAt(now.Add(-48*time.Hour)))
	testutil.TestUser(t, db, testutil.WithCreatedAt(now.Add(-48*time.Hour)))

	testutil.TestQRCode(t, db, active.ID, "", testutil.WithQRCodeCreatedAt(now.Add(-10*time.Minute)))
	testutil.TestQRCode(t, db, active.ID, "", testutil.WithQRCodeCreatedAt(now.Add(-5*time.Hour)))

	testutil.TestPayment(t, db, active.ID, 199, "month", now.Add(-time.Hour))
	testutil.TestPayment(t, db, active.ID, 1672, "year", now.Add(-2*time.Hour))
	testutil.TestPayment(t, db, active.ID, 0, "code", now.Add(-3*time.Hour))
	testutil.TestPayment(t, db, active.ID, 99, "month", monthStart.Add(-time.Hour))

	users, err := repo.CountUsersBetween(now.Add(-time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), users)

	codes, err := repo.CountQRCodesBetween(now.Add(-time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), codes)

	revenue, err := repo.SumRevenueSince(monthStart)
	require.NoError(t, err)
	assert.Equal(t, int64(199+1672), revenue)

	total, err := repo.SumRevenue()
	require.NoError(t, err)
	assert.Equal(t, int64(199+1672+99), total)

	monthly, err := repo.CountPaymentsSince("month", monthStart)
	require.NoError(t, err)
	assert.Equal(t, int64(1), monthly)

	activeSubs, err := repo.CountActiveSubscriptions("basic", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), activeSubs)

	plans, err := repo.PlanCounts()
	require.NoError(t, err)
	assert.Equal(t, int64(2), plans["pro"])
	assert.Equal(t, int64(1), plans["starter"])
	assert.Equal(t, int64(1), plans["basic"])
}

func TestStatsRepository_EmptyRevenue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewStatsRepository(db)
	total, err := repo.SumRevenue()
	require.NoError(t, err)
	assert.Zero(t, total)
}
