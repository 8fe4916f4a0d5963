package tokens

import (
	"context"
	"strings"
	"testing"
	"time"

	"siteforge/pkg/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, balance int64, tier string, lastReset time.Time) *models.User {
	t.Helper()
	user := &models.User{
		Username:         "tester",
		Email:            "tester@example.com",
		PasswordHash:     "x",
		SubscriptionTier: tier,
		TokenBalance:     balance,
		LastReset:        lastReset,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		opts   CostOptions
		want   int64
	}{
		{"empty prompt is base cost", "", CostOptions{}, 1000},
		{"50 chars rounds up to one chunk", strings.Repeat("a", 50), CostOptions{}, 1050},
		{"100 chars is exactly one chunk", strings.Repeat("a", 100), CostOptions{}, 1050},
		{"101 chars rounds up to two chunks", strings.Repeat("a", 101), CostOptions{}, 1100},
		{"1000 chars is ten chunks", strings.Repeat("a", 1000), CostOptions{}, 1500},
		{"screenshot adds 2000", strings.Repeat("a", 50), CostOptions{UseScreenshot: true}, 3050},
		{"collaborative adds 500", strings.Repeat("a", 50), CostOptions{Collaborative: true}, 1550},
		{"both options stack", strings.Repeat("a", 50), CostOptions{UseScreenshot: true, Collaborative: true}, 3550},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateCost(tt.prompt, tt.opts))
		})
	}
}

func TestEstimateCost_MonotonicInPromptLength(t *testing.T) {
	prev := int64(-1)
	for n := 0; n <= 1200; n += 17 {
		cost := EstimateCost(strings.Repeat("x", n), CostOptions{})
		if cost < prev {
			t.Fatalf("cost decreased from %d to %d at length %d", prev, cost, n)
		}
		prev = cost
	}
}

func TestEstimateCost_ScreenshotDeltaIsConstant(t *testing.T) {
	for _, prompt := range []string{"", "short", strings.Repeat("y", 999)} {
		with := EstimateCost(prompt, CostOptions{UseScreenshot: true})
		without := EstimateCost(prompt, CostOptions{})
		assert.Equal(t, int64(2000), with-without)
	}
}

func TestAuthorizeAndDebit(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db, 150000, "pro", time.Now())
	ledger := NewLedger(db, nil, nil)
	ctx := context.Background()

	cost := EstimateCost(strings.Repeat("p", 50), CostOptions{})
	require.Equal(t, int64(1050), cost)

	require.NoError(t, ledger.Authorize(ctx, user.ID, cost))
	require.NoError(t, ledger.Debit(ctx, user.ID, cost))

	balance, err := ledger.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(148950), balance)
}

func TestAuthorize_RejectsUnaffordable(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db, 500, "pro", time.Now())
	ledger := NewLedger(db, nil, nil)

	err := ledger.Authorize(context.Background(), user.ID, 1000)
	assert.ErrorIs(t, err, ErrInsufficientTokens)
}

func TestDebit_NeverGoesBelowZero(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db, 900, "pro", time.Now())
	ledger := NewLedger(db, nil, nil)
	ctx := context.Background()

	err := ledger.Debit(ctx, user.ID, 1000)
	assert.ErrorIs(t, err, ErrInsufficientTokens)

	// Balance untouched by the rejected debit.
	balance, err := ledger.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance)
}

func TestDebit_UnknownUser(t *testing.T) {
	db := testDB(t)
	ledger := NewLedger(db, nil, nil)

	err := ledger.Debit(context.Background(), 42, 100)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRefreshIfStale_FreeTierResetsAfter24h(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db, 137, "free", time.Now().Add(-25*time.Hour))
	ledger := NewLedger(db, nil, nil)

	// Reset applies on the next balance read, regardless of prior balance.
	balance, err := ledger.GetBalance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, FreeTierAllotment, balance)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, FreeTierAllotment, stored.TokenBalance)
	assert.WithinDuration(t, time.Now(), stored.LastReset, time.Minute)
}

func TestRefreshIfStale_RecentResetUntouched(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db, 137, "free", time.Now().Add(-23*time.Hour))
	ledger := NewLedger(db, nil, nil)

	balance, err := ledger.GetBalance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(137), balance)
}

func TestRefreshIfStale_PaidTiersUntouched(t *testing.T) {
	db := testDB(t)
	ledger := NewLedger(db, nil, nil)

	for _, tier := range []string{"pro", "enterprise"} {
		user := &models.User{
			Username:         "paid-" + tier,
			Email:            tier + "@example.com",
			PasswordHash:     "x",
			SubscriptionTier: tier,
			TokenBalance:     42,
			LastReset:        time.Now().Add(-48 * time.Hour),
		}
		require.NoError(t, db.Create(user).Error)

		balance, err := ledger.GetBalance(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(42), balance, "tier %s must not be refreshed", tier)
	}
}

func TestCredit(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db, 100, "pro", time.Now())
	ledger := NewLedger(db, nil, nil)
	ctx := context.Background()

	require.NoError(t, ledger.Credit(ctx, user.ID, 50000))

	balance, err := ledger.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50100), balance)
}
