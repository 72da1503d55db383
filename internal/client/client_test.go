package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/burgerbus/memberclub/internal/auth"
	"github.com/burgerbus/memberclub/internal/config"
	"github.com/burgerbus/memberclub/internal/domain"
	"github.com/burgerbus/memberclub/internal/server"
	"github.com/burgerbus/memberclub/internal/service"
	"github.com/burgerbus/memberclub/internal/storage/memory"
)

// newTestBackend boots the real router over the in-memory store so the SDK is
// exercised against actual handler behaviour, not stubs.
func newTestBackend(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	club := config.ClubConfig{
		DuesUSD:       21,
		CashstampUSD:  15,
		CommissionUSD: 5,
		IntentTTL:     24 * time.Hour,
		BCHPriceUSD:   300,
		BCHAddress:    "bitcoincash:qtestaddress",
		CashAppHandle: "$BurgerClub",
		VenmoHandle:   "@BurgerClub",
		ZelleHandle:   "club@example.com",
	}

	tokens, err := auth.NewTokenIssuer("test-secret", "memberclub", time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}

	membership := service.NewMembershipService(store, tokens, club, logger)
	payments := service.NewPaymentService(store, club, nil, logger)
	affiliates := service.NewAffiliateService(store, club, logger)
	if err := membership.EnsureAdmin(context.Background(), "admin@example.com", "adminpassword"); err != nil {
		t.Fatalf("admin bootstrap: %v", err)
	}

	handlers := server.NewAPIHandlers(logger, membership, payments, affiliates, tokens)
	router := server.NewRouter(logger, server.RouterDependencies{
		Health: server.StorageHealthService{Store: store},
		API:    handlers,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store
}

func TestClientRegisterAndSession(t *testing.T) {
	backend, _ := newTestBackend(t)
	api := New(backend.URL)

	profile, err := api.Register(context.Background(), RegisterParams{
		FullName: "Pat Doe",
		Email:    "pat@example.com",
		Password: "longenough",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if !api.Sessions().Authenticated() {
		t.Fatal("expected an authenticated session after registration")
	}
	if profile.ReferralCode == "" {
		t.Fatal("expected a referral code")
	}
	if CanOrder(profile) {
		t.Fatal("expected the gate closed with dues unpaid")
	}
}

func TestClientPaymentRoundTrip(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	member := New(backend.URL)
	if _, err := member.Register(ctx, RegisterParams{
		FullName: "Pat Doe", Email: "pat@example.com", Password: "longenough",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	methods, err := member.PaymentMethods(ctx)
	if err != nil {
		t.Fatalf("methods failed: %v", err)
	}
	if method := methods["cashapp"]; !method.Available || method.Amount != 21 {
		t.Fatalf("unexpected cashapp method: %+v", method)
	}

	intent, err := member.CreateDuesPayment(ctx, "cashapp")
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	if intent.PaymentID == "" || intent.Status != StatusPending {
		t.Fatalf("unexpected intent: %+v", intent)
	}

	// A duplicate maps to the conflict sentinel but still yields the open id.
	dup, err := member.CreateDuesPayment(ctx, "venmo")
	if !errors.Is(err, domain.ErrDuplicatePending) {
		t.Fatalf("expected ErrDuplicatePending, got %v", err)
	}
	if dup.PaymentID != intent.PaymentID {
		t.Fatalf("expected the open intent id back, got %q", dup.PaymentID)
	}

	admin := New(backend.URL)
	if _, err := admin.Login(ctx, "admin@example.com", "adminpassword"); err != nil {
		t.Fatalf("admin login failed: %v", err)
	}

	pending, err := admin.PendingPayments(ctx, "dues")
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].PaymentID != intent.PaymentID {
		t.Fatalf("unexpected pending queue: %+v", pending)
	}

	result, err := admin.VerifyPayment(ctx, intent.PaymentID, "CA-12345")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !result.Activated {
		t.Fatal("expected activation")
	}

	status, err := member.PaymentStatus(ctx, intent.PaymentID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status != StatusVerified {
		t.Fatalf("expected verified, got %q", status)
	}

	canOrder, err := member.CheckCanOrder(ctx)
	if err != nil {
		t.Fatalf("gate check failed: %v", err)
	}
	if !canOrder {
		t.Fatal("expected the gate open after verification")
	}
}

func TestClientPollAgainstBackend(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	member := New(backend.URL)
	if _, err := member.Register(ctx, RegisterParams{
		FullName: "Pat Doe", Email: "pat@example.com", Password: "longenough",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	intent, err := member.CreateDuesPayment(ctx, "cashapp")
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}

	admin := New(backend.URL)
	if _, err := admin.Login(ctx, "admin@example.com", "adminpassword"); err != nil {
		t.Fatalf("admin login failed: %v", err)
	}

	poll := member.StartStatusPoll(ctx, intent.PaymentID,
		WithPollInterval(10*time.Millisecond),
		WithPollTimeout(5*time.Second),
		WithPollLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	if _, err := admin.VerifyPayment(ctx, intent.PaymentID, "CA-12345"); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	select {
	case <-poll.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not observe the verification")
	}
	if outcome := poll.Outcome(); outcome.Status != StatusVerified || outcome.TimedOut {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestClientUnauthorizedMapsToSentinel(t *testing.T) {
	backend, _ := newTestBackend(t)
	api := New(backend.URL)

	if _, err := api.Profile(context.Background()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	var apiErr *APIError
	_, err := api.Login(context.Background(), "nobody@example.com", "wrongwrong")
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected an APIError, got %v", err)
	}
	if apiErr.Status != 401 {
		t.Fatalf("expected status 401, got %d", apiErr.Status)
	}
}

func TestClientSessionLifecycle(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()
	api := New(backend.URL)

	if _, err := api.Register(ctx, RegisterParams{
		FullName: "Pat Doe", Email: "pat@example.com", Password: "longenough",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if !api.Sessions().Authenticated() {
		t.Fatal("expected an authenticated session")
	}

	api.Logout()
	if api.Sessions().Authenticated() {
		t.Fatal("expected logout to clear the session")
	}

	// A rejected credential clears the stored session too.
	if _, err := api.Login(ctx, "pat@example.com", "longenough"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	api.Sessions().Set(Session{Token: "not-a-valid-token", Email: "pat@example.com"})
	if _, err := api.Profile(ctx); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if api.Sessions().Authenticated() {
		t.Fatal("expected the rejected credential to be dropped")
	}
}

func TestClientConflictSentinels(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	member := New(backend.URL)
	if _, err := member.Register(ctx, RegisterParams{
		FullName: "Pat Doe", Email: "pat@example.com", Password: "longenough",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// Re-registering the same email is an email conflict, not a duplicate
	// payment.
	other := New(backend.URL)
	if _, err := other.Register(ctx, RegisterParams{
		FullName: "Pat Clone", Email: "pat@example.com", Password: "longenough",
	}); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	intent, err := member.CreateDuesPayment(ctx, "cashapp")
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}

	admin := New(backend.URL)
	if _, err := admin.Login(ctx, "admin@example.com", "adminpassword"); err != nil {
		t.Fatalf("admin login failed: %v", err)
	}
	if _, err := admin.VerifyPayment(ctx, intent.PaymentID, "CA-1"); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	_, err = admin.VerifyPayment(ctx, intent.PaymentID, "CA-2")
	if !errors.Is(err, domain.ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified on re-verify, got %v", err)
	}
	if errors.Is(err, domain.ErrDuplicatePending) {
		t.Fatal("re-verify must not look like a duplicate pending intent")
	}
}

func TestClientScheduleAndFavorites(t *testing.T) {
	backend, store := newTestBackend(t)
	ctx := context.Background()

	seedLocations := []domain.TruckLocation{
		{ID: "loc-1", Name: "Market", Date: "2026-09-05", StartTime: "11:00"},
		{ID: "loc-2", Name: "Brewery Night", Date: "2026-09-12", StartTime: "18:00", MemberExclusive: true},
	}
	for _, loc := range seedLocations {
		if err := store.UpsertLocation(ctx, loc); err != nil {
			t.Fatalf("seed location: %v", err)
		}
	}
	if err := store.UpsertEvent(ctx, domain.MemberEvent{
		ID: "evt-1", Title: "Tasting", Date: "2026-09-19", MaxAttendees: 2,
	}); err != nil {
		t.Fatalf("seed event: %v", err)
	}

	api := New(backend.URL)

	public, err := api.PublicLocations(ctx)
	if err != nil {
		t.Fatalf("public locations failed: %v", err)
	}
	if len(public) != 1 || public[0].ID != "loc-1" {
		t.Fatalf("expected only the public stop, got %+v", public)
	}

	if _, err := api.Register(ctx, RegisterParams{
		FullName: "Pat Doe", Email: "pat@example.com", Password: "longenough",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	all, err := api.MemberLocations(ctx)
	if err != nil {
		t.Fatalf("member locations failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected the full schedule, got %+v", all)
	}

	event, err := api.JoinEvent(ctx, "evt-1")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if event.CurrentAttendees != 1 {
		t.Fatalf("expected 1 attendee, got %d", event.CurrentAttendees)
	}

	profile, err := api.UpdateFavorites(ctx, []string{"item-1", "item-2"})
	if err != nil {
		t.Fatalf("update favorites failed: %v", err)
	}
	if len(profile.FavoriteItems) != 2 {
		t.Fatalf("expected 2 favorites, got %+v", profile.FavoriteItems)
	}
	fetched, err := api.Profile(ctx)
	if err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	if len(fetched.FavoriteItems) != 2 || fetched.FavoriteItems[0] != "item-1" {
		t.Fatalf("expected favorites to persist, got %+v", fetched.FavoriteItems)
	}
}
