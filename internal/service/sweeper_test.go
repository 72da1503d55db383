package service

import (
	"context"
	"testing"
	"time"

	"github.com/burgerbus/memberclub/internal/domain"
)

func TestSweepOnceExpiresOverdueIntents(t *testing.T) {
	fix := newPaymentFixture(t, testClubConfig())
	member := fix.seedMember(t, domain.Member{Email: "a@example.com"})

	intent, err := fix.payments.CreateIntent(context.Background(), member.Email, domain.ChannelCashApp)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	sweeper := NewExpirySweeper(fix.store, time.Minute, discardLogger())

	// Before the window closes nothing changes.
	sweeper.WithClock(func() time.Time { return fix.now.Add(time.Hour) })
	sweeper.SweepOnce(context.Background())
	got, err := fix.payments.Status(context.Background(), intent.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if got.Status != domain.IntentPending {
		t.Fatalf("expected pending before the deadline, got %s", got.Status)
	}

	// Past the deadline the intent expires and frees the pending slot.
	sweeper.WithClock(func() time.Time { return fix.now.Add(25 * time.Hour) })
	sweeper.SweepOnce(context.Background())
	got, err = fix.payments.Status(context.Background(), intent.ID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if got.Status != domain.IntentExpired {
		t.Fatalf("expected expired after the deadline, got %s", got.Status)
	}

	if _, err := fix.payments.CreateIntent(context.Background(), member.Email, domain.ChannelVenmo); err != nil {
		t.Fatalf("expected a fresh intent after expiry, got %v", err)
	}
}
