package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/burgerbus/memberclub/internal/config"
	"github.com/burgerbus/memberclub/internal/domain"
	"github.com/burgerbus/memberclub/internal/storage/memory"
)

func testClubConfig() config.ClubConfig {
	return config.ClubConfig{
		DuesUSD:       21,
		CashstampUSD:  15,
		CommissionUSD: 5,
		IntentTTL:     24 * time.Hour,
		BCHPriceUSD:   300,
		BCHAddress:    "bitcoincash:qtestaddress",
		CashAppHandle: "$BurgerClub",
		VenmoHandle:   "@BurgerClub",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type paymentFixture struct {
	store    *memory.Store
	payments *PaymentService
	now      time.Time
}

func newPaymentFixture(t *testing.T, club config.ClubConfig) *paymentFixture {
	t.Helper()
	store := memory.New()
	payments := NewPaymentService(store, club, nil, discardLogger())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	payments.WithClock(func() time.Time { return now })
	return &paymentFixture{store: store, payments: payments, now: now}
}

func (f *paymentFixture) seedMember(t *testing.T, member domain.Member) domain.Member {
	t.Helper()
	if member.ID == "" {
		member.ID = "mem-" + member.Email
	}
	if err := f.store.CreateMember(context.Background(), member); err != nil {
		t.Fatalf("seed member: %v", err)
	}
	return member
}

func TestMethodsCatalog(t *testing.T) {
	club := testClubConfig()
	club.ZelleHandle = "" // not configured
	fix := newPaymentFixture(t, club)

	methods := fix.payments.Methods()

	if !methods[domain.ChannelCashApp].Available {
		t.Fatal("expected cashapp to be available")
	}
	if methods[domain.ChannelZelle].Available {
		t.Fatal("expected zelle without a handle to be unavailable")
	}
	bch := methods[domain.ChannelBCH]
	if !bch.Cashstamp || bch.BonusUSD != 15 {
		t.Fatalf("expected bch cashstamp bonus of 15, got %+v", bch)
	}
	for _, method := range methods {
		if method.AmountUSD != 21 {
			t.Fatalf("expected dues amount 21 on every channel, got %+v", method)
		}
	}
}

func TestCreateIntentUnavailableChannel(t *testing.T) {
	club := testClubConfig()
	club.ZelleHandle = ""
	fix := newPaymentFixture(t, club)
	fix.seedMember(t, domain.Member{Email: "a@example.com", AgreementSigned: true})

	if _, err := fix.payments.CreateIntent(context.Background(), "a@example.com", domain.ChannelZelle); !errors.Is(err, domain.ErrInvalidChannel) {
		t.Fatalf("expected ErrInvalidChannel, got %v", err)
	}
	if _, err := fix.payments.CreateIntent(context.Background(), "a@example.com", domain.Channel("paypal")); !errors.Is(err, domain.ErrInvalidChannel) {
		t.Fatalf("expected ErrInvalidChannel for unknown channel, got %v", err)
	}
}

func TestCreateIntentDuplicateReturnsExisting(t *testing.T) {
	fix := newPaymentFixture(t, testClubConfig())
	fix.seedMember(t, domain.Member{Email: "a@example.com", AgreementSigned: true})

	first, err := fix.payments.CreateIntent(context.Background(), "a@example.com", domain.ChannelCashApp)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	second, err := fix.payments.CreateIntent(context.Background(), "a@example.com", domain.ChannelVenmo)
	if !errors.Is(err, domain.ErrDuplicatePending) {
		t.Fatalf("expected ErrDuplicatePending, got %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the existing intent %s back, got %s", first.ID, second.ID)
	}
}

func TestCreateIntentBCHDenomination(t *testing.T) {
	fix := newPaymentFixture(t, testClubConfig())
	fix.seedMember(t, domain.Member{Email: "a@example.com", AgreementSigned: true})

	intent, err := fix.payments.CreateIntent(context.Background(), "a@example.com", domain.ChannelBCH)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if intent.AmountBCH != 0.07 {
		t.Fatalf("expected 21/300 = 0.07 BCH, got %v", intent.AmountBCH)
	}
	if intent.BonusUSD != 15 {
		t.Fatalf("expected cashstamp bonus 15, got %v", intent.BonusUSD)
	}
	if intent.QRPayload == "" {
		t.Fatal("expected a QR payload on bch intents")
	}
	if intent.ExpiresAt != fix.now.Add(24*time.Hour) {
		t.Fatalf("unexpected expiry %v", intent.ExpiresAt)
	}
}

func TestVerifyActivatesMembership(t *testing.T) {
	fix := newPaymentFixture(t, testClubConfig())
	member := fix.seedMember(t, domain.Member{Email: "a@example.com", AgreementSigned: true})

	intent, err := fix.payments.CreateIntent(context.Background(), member.Email, domain.ChannelCashApp)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	result, err := fix.payments.Verify(context.Background(), intent.ID, "CA-12345")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !result.Activated {
		t.Fatal("expected first verification to activate the membership")
	}
	if !result.Member.DuesSettled {
		t.Fatal("expected dues to be settled")
	}
	if result.Intent.Status != domain.IntentVerified || result.Intent.TransactionRef != "CA-12345" {
		t.Fatalf("unexpected intent state: %+v", result.Intent)
	}

	// Second verification must not double-apply side effects.
	if _, err := fix.payments.Verify(context.Background(), intent.ID, "CA-67890"); !errors.Is(err, domain.ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestVerifyRequiresTransactionRef(t *testing.T) {
	fix := newPaymentFixture(t, testClubConfig())
	if _, err := fix.payments.Verify(context.Background(), "whatever", "   "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank reference, got %v", err)
	}
}

func TestVerifyUnknownIntent(t *testing.T) {
	fix := newPaymentFixture(t, testClubConfig())
	if _, err := fix.payments.Verify(context.Background(), "missing", "TX-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVerifyMarksAttributionEligible(t *testing.T) {
	fix := newPaymentFixture(t, testClubConfig())
	referrer := fix.seedMember(t, domain.Member{Email: "ref@example.com", ReferralCode: "REFCODE1"})
	referred := fix.seedMember(t, domain.Member{Email: "new@example.com", ReferredBy: "REFCODE1", AgreementSigned: true})

	err := fix.store.CreateAttribution(context.Background(), domain.AffiliateAttribution{
		ReferralCode:     "REFCODE1",
		ReferrerID:       referrer.ID,
		ReferredMemberID: referred.ID,
		ReferredEmail:    referred.Email,
		CommissionUSD:    5,
		CreatedAt:        fix.now,
	})
	if err != nil {
		t.Fatalf("seed attribution: %v", err)
	}

	intent, err := fix.payments.CreateIntent(context.Background(), referred.Email, domain.ChannelVenmo)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := fix.payments.Verify(context.Background(), intent.ID, "VM-1"); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	eligible, err := fix.store.ListEligibleUnpaidAttributions(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(eligible) != 1 || eligible[0].ReferredMemberID != referred.ID {
		t.Fatalf("expected the referral commission to become eligible, got %+v", eligible)
	}
}

func TestListPendingFIFOAndPurposeFilter(t *testing.T) {
	fix := newPaymentFixture(t, testClubConfig())
	a := fix.seedMember(t, domain.Member{Email: "a@example.com"})
	b := fix.seedMember(t, domain.Member{Email: "b@example.com"})

	first, err := fix.payments.CreateIntent(context.Background(), a.Email, domain.ChannelCashApp)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	fix.payments.WithClock(func() time.Time { return fix.now.Add(time.Minute) })
	second, err := fix.payments.CreateIntent(context.Background(), b.Email, domain.ChannelVenmo)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	pending, err := fix.payments.ListPending(context.Background(), "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatalf("expected oldest-first ordering, got %+v", pending)
	}

	dues, err := fix.payments.ListPending(context.Background(), domain.PurposeDues)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(dues) != 2 {
		t.Fatalf("expected 2 dues intents, got %d", len(dues))
	}

	if _, err := fix.payments.ListPending(context.Background(), domain.Purpose("refund")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown purpose, got %v", err)
	}
}

func TestRejectIntent(t *testing.T) {
	fix := newPaymentFixture(t, testClubConfig())
	member := fix.seedMember(t, domain.Member{Email: "a@example.com"})

	intent, err := fix.payments.CreateIntent(context.Background(), member.Email, domain.ChannelCashApp)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	rejected, err := fix.payments.Reject(context.Background(), intent.ID, "no matching transfer")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != domain.IntentRejected {
		t.Fatalf("expected rejected status, got %s", rejected.Status)
	}

	// Rejection frees the slot for a fresh intent.
	if _, err := fix.payments.CreateIntent(context.Background(), member.Email, domain.ChannelVenmo); err != nil {
		t.Fatalf("expected a new intent after rejection, got %v", err)
	}

	if _, err := fix.payments.Reject(context.Background(), intent.ID, "again"); !errors.Is(err, domain.ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified on terminal intent, got %v", err)
	}
}

func TestCashstampInstructions(t *testing.T) {
	fix := newPaymentFixture(t, testClubConfig())
	member := fix.seedMember(t, domain.Member{Email: "a@example.com"})

	intent, err := fix.payments.CreateIntent(context.Background(), member.Email, domain.ChannelBCH)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := fix.payments.CashstampInstructions(context.Background(), intent.ID, "bitcoincash:qrecipient"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation before verification, got %v", err)
	}

	if _, err := fix.payments.Verify(context.Background(), intent.ID, "BCH-TX"); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	instr, err := fix.payments.CashstampInstructions(context.Background(), intent.ID, "bitcoincash:qrecipient")
	if err != nil {
		t.Fatalf("cashstamp failed: %v", err)
	}
	if instr.FromAddress != "bitcoincash:qtestaddress" || instr.ToAddress != "bitcoincash:qrecipient" {
		t.Fatalf("unexpected addresses: %+v", instr)
	}
	if instr.AmountBCH != 0.05 {
		t.Fatalf("expected 15/300 = 0.05 BCH, got %v", instr.AmountBCH)
	}
	if instr.AmountUSD != 15 {
		t.Fatalf("expected cashstamp amount 15, got %v", instr.AmountUSD)
	}
	if !strings.Contains(instr.Memo, member.Email) {
		t.Fatalf("expected memo to carry the member email, got %q", instr.Memo)
	}
}

func TestCashstampRecipientDefaultsToMemberWallet(t *testing.T) {
	fix := newPaymentFixture(t, testClubConfig())
	member := fix.seedMember(t, domain.Member{Email: "a@example.com", WalletAddress: "bitcoincash:qmemberwallet"})

	intent, err := fix.payments.CreateIntent(context.Background(), member.Email, domain.ChannelBCH)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := fix.payments.Verify(context.Background(), intent.ID, "BCH-TX"); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	instr, err := fix.payments.CashstampInstructions(context.Background(), intent.ID, "")
	if err != nil {
		t.Fatalf("cashstamp failed: %v", err)
	}
	if instr.ToAddress != "bitcoincash:qmemberwallet" {
		t.Fatalf("expected the member wallet as recipient, got %q", instr.ToAddress)
	}
}

func TestCashstampWithoutRecipientOrWallet(t *testing.T) {
	fix := newPaymentFixture(t, testClubConfig())
	member := fix.seedMember(t, domain.Member{Email: "a@example.com"})

	intent, err := fix.payments.CreateIntent(context.Background(), member.Email, domain.ChannelCashApp)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := fix.payments.Verify(context.Background(), intent.ID, "CA-TX"); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if _, err := fix.payments.CashstampInstructions(context.Background(), intent.ID, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation without a recipient or wallet, got %v", err)
	}
}

func TestCreatePayoutAndSettle(t *testing.T) {
	fix := newPaymentFixture(t, testClubConfig())
	referrer := fix.seedMember(t, domain.Member{Email: "ref@example.com", ReferralCode: "REFCODE1", WalletAddress: "bitcoincash:qreferrer"})

	for i, email := range []string{"n1@example.com", "n2@example.com"} {
		err := fix.store.CreateAttribution(context.Background(), domain.AffiliateAttribution{
			ReferralCode:     "REFCODE1",
			ReferrerID:       referrer.ID,
			ReferredMemberID: email,
			ReferredEmail:    email,
			CommissionUSD:    5,
			Eligible:         true,
			CreatedAt:        fix.now.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed attribution: %v", err)
		}
	}

	intent, err := fix.payments.CreatePayout(context.Background(), referrer.ID)
	if err != nil {
		t.Fatalf("create payout failed: %v", err)
	}
	if intent.Purpose != domain.PurposeAffiliatePayout {
		t.Fatalf("expected affiliate-payout purpose, got %s", intent.Purpose)
	}
	if intent.AmountUSD != 10 {
		t.Fatalf("expected payout of 10, got %v", intent.AmountUSD)
	}
	if intent.Handle != "bitcoincash:qreferrer" {
		t.Fatalf("expected the wallet address as handle, got %q", intent.Handle)
	}

	if _, err := fix.payments.Verify(context.Background(), intent.ID, "PAYOUT-TX"); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	unpaid, err := fix.store.ListEligibleUnpaidAttributions(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(unpaid) != 0 {
		t.Fatalf("expected all commissions settled, %d remain", len(unpaid))
	}

	// Nothing left to pay out.
	if _, err := fix.payments.CreatePayout(context.Background(), referrer.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound with no unpaid commissions, got %v", err)
	}
}
