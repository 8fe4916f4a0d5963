// Package tokens implements the per-user generation quota ledger.
// Balances are debited in whole "tokens" per generation request; the
// unit is a usage quota, unrelated to LLM tokenization.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"siteforge/pkg/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInsufficientTokens is returned when an authorization or debit
	// would take the balance below zero.
	ErrInsufficientTokens = errors.New("insufficient tokens")

	// ErrUserNotFound is returned when the ledger has no row for the user.
	ErrUserNotFound = errors.New("user not found")
)

// Cost constants for a generation request.
const (
	BaseCost          int64 = 1000
	PerChunkCost      int64 = 50
	PromptChunkSize         = 100
	ScreenshotCost    int64 = 2000
	CollaborativeCost int64 = 500

	// FreeTierAllotment is the balance a free-tier account resets to.
	FreeTierAllotment int64 = 150000

	// FreeTierResetInterval is the minimum age of last_reset before a
	// free-tier balance refresh is applied.
	FreeTierResetInterval = 24 * time.Hour
)

// CostOptions are the request options that affect pricing.
type CostOptions struct {
	UseScreenshot bool `json:"use_screenshot"`
	Collaborative bool `json:"collaborative"`
}

// EstimateCost computes the token cost of a generation request.
// Pure and deterministic:
//
//	cost = 1000 + ceil(len(prompt)/100)*50
//	       + 2000 if screenshot analysis is requested
//	       + 500 if collaborative mode is requested
func EstimateCost(prompt string, opts CostOptions) int64 {
	chunks := (int64(len(prompt)) + int64(PromptChunkSize) - 1) / int64(PromptChunkSize)
	cost := BaseCost + chunks*PerChunkCost
	if opts.UseScreenshot {
		cost += ScreenshotCost
	}
	if opts.Collaborative {
		cost += CollaborativeCost
	}
	return cost
}

// Ledger tracks and mutates per-user token balances. Balance reads go
// through a Redis cache when one is configured; debits and credits are
// atomic conditional updates against the database.
type Ledger struct {
	db    *gorm.DB
	cache *redis.Client
	log   *zap.Logger
}

// NewLedger creates a ledger backed by the given database. cache may be
// nil; balance reads then always hit the database.
func NewLedger(db *gorm.DB, cache *redis.Client, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{db: db, cache: cache, log: log}
}

func balanceKey(userID uint) string {
	return fmt.Sprintf("tokens:balance:%d", userID)
}

// GetBalance returns the user's current balance, applying the free-tier
// refresh first so stale free accounts always read the full allotment.
func (l *Ledger) GetBalance(ctx context.Context, userID uint) (int64, error) {
	var user models.User
	if err := l.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("load user %d: %w", userID, err)
	}

	refreshed, err := l.RefreshIfStale(ctx, &user)
	if err != nil {
		return 0, err
	}
	if refreshed {
		l.invalidate(ctx, userID)
	}

	l.cacheBalance(ctx, userID, user.TokenBalance)
	return user.TokenBalance, nil
}

// Authorize checks that the user can afford amount. It performs no
// mutation beyond a possible free-tier refresh and must be called before
// any session or project record is created.
func (l *Ledger) Authorize(ctx context.Context, userID uint, amount int64) error {
	balance, err := l.GetBalance(ctx, userID)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("%w: balance %d, need %d", ErrInsufficientTokens, balance, amount)
	}
	return nil
}

// Debit atomically decrements the user's balance by amount. The update
// is conditional on balance >= amount, so two concurrent requests can
// never drive the balance below zero even when both passed Authorize
// against the same snapshot.
func (l *Ledger) Debit(ctx context.Context, userID uint, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("debit amount must be non-negative, got %d", amount)
	}

	res := l.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND token_balance >= ?", userID, amount).
		Updates(map[string]any{
			"token_balance":      gorm.Expr("token_balance - ?", amount),
			"total_tokens_spent": gorm.Expr("total_tokens_spent + ?", amount),
			"total_generations":  gorm.Expr("total_generations + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("debit user %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		l.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count)
		if count == 0 {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: debit of %d rejected", ErrInsufficientTokens, amount)
	}

	l.invalidate(ctx, userID)
	l.log.Info("tokens debited",
		zap.Uint("user_id", userID),
		zap.Int64("amount", amount))
	return nil
}

// Credit adds amount to the user's balance (token pack purchases,
// goodwill refunds).
func (l *Ledger) Credit(ctx context.Context, userID uint, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("credit amount must be non-negative, got %d", amount)
	}

	res := l.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("token_balance", gorm.Expr("token_balance + ?", amount))
	if res.Error != nil {
		return fmt.Errorf("credit user %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}

	l.invalidate(ctx, userID)
	l.log.Info("tokens credited",
		zap.Uint("user_id", userID),
		zap.Int64("amount", amount))
	return nil
}

// RefreshIfStale resets a free-tier balance to the full allotment when
// at least 24h have elapsed since the last reset. Paid tiers are left
// untouched. The passed user is updated in place on refresh.
func (l *Ledger) RefreshIfStale(ctx context.Context, user *models.User) (bool, error) {
	if !user.IsFreeTier() {
		return false, nil
	}
	if time.Since(user.LastReset) < FreeTierResetInterval {
		return false, nil
	}

	now := time.Now().UTC()
	res := l.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"token_balance": FreeTierAllotment,
			"last_reset":    now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("refresh balance for user %d: %w", user.ID, res.Error)
	}

	user.TokenBalance = FreeTierAllotment
	user.LastReset = now
	l.log.Info("free tier balance refreshed", zap.Uint("user_id", user.ID))
	return true, nil
}

func (l *Ledger) cacheBalance(ctx context.Context, userID uint, balance int64) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Set(ctx, balanceKey(userID), balance, 5*time.Minute).Err(); err != nil {
		l.log.Warn("balance cache write failed", zap.Error(err))
	}
}

// CachedBalance returns the cached balance if present. Used by the
// dashboard polling endpoint to avoid hammering the database.
func (l *Ledger) CachedBalance(ctx context.Context, userID uint) (int64, bool) {
	if l.cache == nil {
		return 0, false
	}
	val, err := l.cache.Get(ctx, balanceKey(userID)).Int64()
	if err != nil {
		return 0, false
	}
	return val, true
}

func (l *Ledger) invalidate(ctx context.Context, userID uint) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Del(ctx, balanceKey(userID)).Err(); err != nil && err != redis.Nil {
		l.log.Warn("balance cache invalidation failed", zap.Error(err))
	}
}
