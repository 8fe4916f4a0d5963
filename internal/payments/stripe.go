// Package payments sells token packs through Stripe Checkout and
// credits the ledger when the webhook confirms payment.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"siteforge/internal/metrics"
	"siteforge/internal/tokens"
	"siteforge/pkg/models"

	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotConfigured  = errors.New("stripe is not configured")
	ErrInvalidPack    = errors.New("unknown token pack")
	ErrInvalidWebhook = errors.New("invalid webhook signature")
)

// TokenPack is a purchasable bundle of generation tokens.
type TokenPack struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Tokens      int64  `json:"tokens"`
	AmountCents int64  `json:"amount_cents"`
}

// Packs is the catalog of purchasable token packs.
var Packs = []TokenPack{
	{ID: "starter", Name: "Starter Pack", Tokens: 100_000, AmountCents: 500},
	{ID: "builder", Name: "Builder Pack", Tokens: 500_000, AmountCents: 2000},
	{ID: "studio", Name: "Studio Pack", Tokens: 2_000_000, AmountCents: 6000},
}

// PackByID returns the pack with the given ID.
func PackByID(id string) *TokenPack {
	for i := range Packs {
		if Packs[i].ID == id {
			return &Packs[i]
		}
	}
	return nil
}

// StripeService drives checkout and webhook processing for token
// purchases.
type StripeService struct {
	db            *gorm.DB
	ledger        *tokens.Ledger
	secretKey     string
	webhookSecret string
	log           *zap.Logger
}

// NewStripeService creates the service. With an empty secret key every
// checkout call fails with ErrNotConfigured; the rest of the API stays
// usable.
func NewStripeService(db *gorm.DB, ledger *tokens.Ledger, secretKey string, log *zap.Logger) *StripeService {
	if secretKey == "" {
		secretKey = os.Getenv("STRIPE_SECRET_KEY")
	}
	stripe.Key = secretKey
	if log == nil {
		log = zap.NewNop()
	}
	return &StripeService{
		db:            db,
		ledger:        ledger,
		secretKey:     secretKey,
		webhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		log:           log,
	}
}

// IsConfigured reports whether a usable Stripe key is present.
func (s *StripeService) IsConfigured() bool {
	return s.secretKey != "" && s.secretKey != "sk_test_xxx"
}

// CheckoutResult is returned to the frontend to redirect the buyer.
type CheckoutResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreateCheckout opens a one-time-payment Checkout session for a token
// pack. The user and pack ride along as metadata so the webhook can
// credit the right account.
func (s *StripeService) CreateCheckout(ctx context.Context, userID uint, packID, successURL, cancelURL string) (*CheckoutResult, error) {
	if !s.IsConfigured() {
		return nil, ErrNotConfigured
	}
	pack := PackByID(packID)
	if pack == nil {
		return nil, ErrInvalidPack
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(pack.Name),
					},
					UnitAmount: stripe.Int64(pack.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.AddMetadata("user_id", strconv.FormatUint(uint64(userID), 10))
	params.AddMetadata("pack_id", pack.ID)
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// HandleWebhook verifies and processes a Stripe webhook payload. Only
// checkout.session.completed does any work; every other event type is
// acknowledged and dropped.
func (s *StripeService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	var event stripe.Event
	var err error

	if s.webhookSecret != "" {
		event, err = webhook.ConstructEvent(payload, signature, s.webhookSecret)
		if err != nil {
			s.log.Warn("webhook signature verification failed", zap.Error(err))
			return ErrInvalidWebhook
		}
	} else {
		// Development without a webhook secret.
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("failed to parse webhook: %w", err)
		}
	}

	if event.Type != "checkout.session.completed" {
		return nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("failed to parse checkout session: %w", err)
	}
	return s.fulfill(ctx, &sess)
}

// fulfill credits the purchased tokens exactly once per checkout
// session. The unique index on stripe_session_id makes webhook
// redelivery idempotent.
func (s *StripeService) fulfill(ctx context.Context, sess *stripe.CheckoutSession) error {
	userID, err := strconv.ParseUint(sess.Metadata["user_id"], 10, 64)
	if err != nil {
		return fmt.Errorf("checkout session %s has no valid user_id metadata", sess.ID)
	}
	pack := PackByID(sess.Metadata["pack_id"])
	if pack == nil {
		return fmt.Errorf("checkout session %s references unknown pack %q", sess.ID, sess.Metadata["pack_id"])
	}

	purchase := &models.TokenPurchase{
		UserID:          uint(userID),
		PackID:          pack.ID,
		Tokens:          pack.Tokens,
		AmountCents:     pack.AmountCents,
		StripeSessionID: sess.ID,
	}
	if err := s.db.WithContext(ctx).Create(purchase).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.log.Info("duplicate webhook delivery ignored", zap.String("session_id", sess.ID))
			return nil
		}
		return fmt.Errorf("failed to record purchase: %w", err)
	}

	if err := s.ledger.Credit(ctx, uint(userID), pack.Tokens); err != nil {
		return fmt.Errorf("failed to credit tokens: %w", err)
	}
	metrics.Get().TokensCreditedTotal.Add(float64(pack.Tokens))

	s.log.Info("token pack fulfilled",
		zap.Uint64("user_id", userID),
		zap.String("pack_id", pack.ID),
		zap.Int64("tokens", pack.Tokens))
	return nil
}
