package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/burgerbus/memberclub/internal/config"
	"github.com/burgerbus/memberclub/internal/domain"
	"github.com/burgerbus/memberclub/internal/storage"
)

// PaymentService owns the payment method catalog, intent creation and the
// admin reconciliation operations.
type PaymentService struct {
	store  storage.Store
	club   config.ClubConfig
	prices PriceFeed
	logger *slog.Logger
	nowFn  func() time.Time
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(store storage.Store, club config.ClubConfig, prices PriceFeed, logger *slog.Logger) *PaymentService {
	if prices == nil {
		prices = StaticPriceFeed{Price: club.BCHPriceUSD}
	}
	return &PaymentService{
		store:  store,
		club:   club,
		prices: prices,
		logger: logger,
		nowFn:  time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *PaymentService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Methods returns the configured payment channel catalog. Channels without a
// configured destination handle are listed as unavailable so the UI can show
// them disabled; they are never selectable.
func (s *PaymentService) Methods() map[domain.Channel]domain.PaymentMethod {
	methods := map[domain.Channel]domain.PaymentMethod{
		domain.ChannelCashApp: {
			Channel:     domain.ChannelCashApp,
			DisplayName: "Cash App",
			AmountUSD:   s.club.DuesUSD,
			Handle:      s.club.CashAppHandle,
			Available:   s.club.CashAppHandle != "",
		},
		domain.ChannelVenmo: {
			Channel:     domain.ChannelVenmo,
			DisplayName: "Venmo",
			AmountUSD:   s.club.DuesUSD,
			Handle:      s.club.VenmoHandle,
			Available:   s.club.VenmoHandle != "",
		},
		domain.ChannelZelle: {
			Channel:     domain.ChannelZelle,
			DisplayName: "Zelle",
			AmountUSD:   s.club.DuesUSD,
			Handle:      s.club.ZelleHandle,
			Available:   s.club.ZelleHandle != "",
		},
		domain.ChannelBCH: {
			Channel:     domain.ChannelBCH,
			DisplayName: "Bitcoin Cash",
			AmountUSD:   s.club.DuesUSD,
			BonusUSD:    s.club.CashstampUSD,
			Handle:      s.club.BCHAddress,
			Cashstamp:   s.club.CashstampUSD > 0,
			Available:   s.club.BCHAddress != "",
		},
	}
	return methods
}

// CreateIntent opens a dues payment intent for the member on the chosen
// channel. The returned amounts and handle are authoritative; clients must
// render them verbatim. When a pending dues intent already exists the
// existing intent is returned together with ErrDuplicatePending so the
// caller can resume it instead of paying twice.
func (s *PaymentService) CreateIntent(ctx context.Context, memberEmail string, channel domain.Channel) (domain.PaymentIntent, error) {
	member, err := s.store.GetMemberByEmail(ctx, strings.ToLower(strings.TrimSpace(memberEmail)))
	if err != nil {
		return domain.PaymentIntent{}, err
	}

	method, ok := s.Methods()[channel]
	if !ok || !method.Available {
		return domain.PaymentIntent{}, domain.ErrInvalidChannel
	}

	now := s.nowFn().UTC()
	intent := domain.PaymentIntent{
		ID:           uuid.NewString(),
		MemberID:     member.ID,
		MemberEmail:  member.Email,
		Purpose:      domain.PurposeDues,
		Channel:      channel,
		AmountUSD:    method.AmountUSD,
		BonusUSD:     method.BonusUSD,
		Handle:       method.Handle,
		Instructions: paymentInstructions(method, member.Email),
		Status:       domain.IntentPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.club.IntentTTL),
	}

	if channel == domain.ChannelBCH {
		price, err := s.prices.BCHPriceUSD(ctx)
		if err != nil {
			return domain.PaymentIntent{}, fmt.Errorf("denominate bch intent: %w", err)
		}
		intent.AmountBCH = roundBCH(method.AmountUSD / price)
		uri := fmt.Sprintf("bitcoincash:%s?amount=%.8f", method.Handle, intent.AmountBCH)
		intent.QRPayload = encodeQR(uri)
	}

	if err := s.store.CreateIntent(ctx, intent); err != nil {
		if errors.Is(err, domain.ErrDuplicatePending) {
			existing, lookupErr := s.store.PendingIntent(ctx, member.ID, domain.PurposeDues)
			if lookupErr == nil {
				return existing, domain.ErrDuplicatePending
			}
		}
		return domain.PaymentIntent{}, err
	}

	s.logger.Info("payment intent created",
		"paymentId", intent.ID,
		"memberId", member.ID,
		"channel", channel,
		"amountUsd", intent.AmountUSD,
	)
	return intent, nil
}

// Status returns the current status of an intent. The server's answer is
// authoritative; clients overwrite local state with it.
func (s *PaymentService) Status(ctx context.Context, paymentID string) (domain.PaymentIntent, error) {
	return s.store.GetIntent(ctx, paymentID)
}

// ListPending returns unreconciled intents oldest-first, optionally filtered
// by purpose.
func (s *PaymentService) ListPending(ctx context.Context, purpose domain.Purpose) ([]domain.PaymentIntent, error) {
	switch purpose {
	case "", domain.PurposeDues, domain.PurposeAffiliatePayout:
	default:
		return nil, fmt.Errorf("%w: unknown purpose %q", domain.ErrValidation, purpose)
	}
	return s.store.ListPendingIntents(ctx, purpose)
}

// Verify records an externally observed transaction reference against a
// pending intent. Activation and commission settlement happen atomically in
// storage; re-verifying a terminal intent fails with ErrAlreadyVerified.
func (s *PaymentService) Verify(ctx context.Context, paymentID, transactionRef string) (storage.VerifyResult, error) {
	transactionRef = strings.TrimSpace(transactionRef)
	if transactionRef == "" {
		return storage.VerifyResult{}, fmt.Errorf("%w: transaction reference is required", domain.ErrValidation)
	}

	result, err := s.store.VerifyIntent(ctx, paymentID, transactionRef, s.nowFn().UTC())
	if err != nil {
		return storage.VerifyResult{}, err
	}

	s.logger.Info("payment verified",
		"paymentId", paymentID,
		"memberId", result.Member.ID,
		"purpose", result.Intent.Purpose,
		"activated", result.Activated,
	)
	return result, nil
}

// Reject marks a pending intent rejected (fraud or an invalid reference).
func (s *PaymentService) Reject(ctx context.Context, paymentID, reason string) (domain.PaymentIntent, error) {
	intent, err := s.store.RejectIntent(ctx, paymentID)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	s.logger.Info("payment rejected", "paymentId", paymentID, "reason", reason)
	return intent, nil
}

// CashstampInstructions derives the manual bonus-transfer packet for an
// already verified intent. Pure derivation: safe to call repeatedly, nothing
// is persisted and no transfer is executed. An empty recipient falls back to
// the member's stored wallet address.
func (s *PaymentService) CashstampInstructions(ctx context.Context, paymentID, recipientAddress string) (domain.CashstampInstruction, error) {
	intent, err := s.store.GetIntent(ctx, paymentID)
	if err != nil {
		return domain.CashstampInstruction{}, err
	}
	if intent.Status != domain.IntentVerified {
		return domain.CashstampInstruction{}, fmt.Errorf("%w: intent is not verified", domain.ErrValidation)
	}

	recipientAddress = strings.TrimSpace(recipientAddress)
	if recipientAddress == "" {
		member, err := s.store.GetMember(ctx, intent.MemberID)
		if err != nil {
			return domain.CashstampInstruction{}, err
		}
		recipientAddress = member.WalletAddress
	}
	if recipientAddress == "" {
		return domain.CashstampInstruction{}, fmt.Errorf("%w: recipient address is required and the member has no wallet on file", domain.ErrValidation)
	}

	price, err := s.prices.BCHPriceUSD(ctx)
	if err != nil {
		return domain.CashstampInstruction{}, fmt.Errorf("denominate cashstamp: %w", err)
	}

	return domain.CashstampInstruction{
		FromAddress: s.club.BCHAddress,
		ToAddress:   recipientAddress,
		AmountBCH:   roundBCH(s.club.CashstampUSD / price),
		AmountUSD:   s.club.CashstampUSD,
		Memo:        fmt.Sprintf("Welcome cashstamp - %s", intent.MemberEmail),
	}, nil
}

// CreatePayout opens an affiliate-payout intent covering the referrer's
// eligible unpaid commissions. Verifying it settles those commissions.
func (s *PaymentService) CreatePayout(ctx context.Context, referrerID string) (domain.PaymentIntent, error) {
	member, err := s.store.GetMember(ctx, referrerID)
	if err != nil {
		return domain.PaymentIntent{}, err
	}

	attrs, err := s.store.ListAttributionsByReferrer(ctx, referrerID)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	total := 0.0
	for _, attr := range attrs {
		if attr.Eligible && !attr.Paid {
			total += attr.CommissionUSD
		}
	}
	if total <= 0 {
		return domain.PaymentIntent{}, fmt.Errorf("%w: no unpaid commissions", domain.ErrNotFound)
	}

	handle := member.WalletAddress
	if handle == "" {
		handle = member.Email
	}

	now := s.nowFn().UTC()
	intent := domain.PaymentIntent{
		ID:           uuid.NewString(),
		MemberID:     member.ID,
		MemberEmail:  member.Email,
		Purpose:      domain.PurposeAffiliatePayout,
		Channel:      domain.ChannelBCH,
		AmountUSD:    total,
		Handle:       handle,
		Instructions: fmt.Sprintf("Send $%.2f commission payout to %s", total, handle),
		Status:       domain.IntentPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.club.IntentTTL),
	}
	if err := s.store.CreateIntent(ctx, intent); err != nil {
		if errors.Is(err, domain.ErrDuplicatePending) {
			existing, lookupErr := s.store.PendingIntent(ctx, member.ID, domain.PurposeAffiliatePayout)
			if lookupErr == nil {
				return existing, domain.ErrDuplicatePending
			}
		}
		return domain.PaymentIntent{}, err
	}
	return intent, nil
}

func paymentInstructions(method domain.PaymentMethod, email string) string {
	if method.Channel == domain.ChannelBCH {
		return fmt.Sprintf("Send the exact BCH amount to %s and include %s in the memo.", method.Handle, email)
	}
	return fmt.Sprintf("Send $%.2f via %s to %s and include %s in the payment note.",
		method.AmountUSD, method.DisplayName, method.Handle, email)
}

func roundBCH(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}

func encodeQR(uri string) string {
	png, err := qrcode.Encode(uri, qrcode.Medium, 256)
	if err != nil {
		// Fall back to the bare URI; the payload is opaque to clients either way.
		return uri
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
