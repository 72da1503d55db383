package service

import (
	"context"
	"testing"
	"time"

	"github.com/burgerbus/memberclub/internal/domain"
	"github.com/burgerbus/memberclub/internal/storage/memory"
)

func TestStatsZeroForNewMember(t *testing.T) {
	store := memory.New()
	affiliates := NewAffiliateService(store, testClubConfig(), discardLogger())

	member := domain.Member{ID: "mem-1", Email: "a@example.com", ReferralCode: "REFCODE1"}
	if err := store.CreateMember(context.Background(), member); err != nil {
		t.Fatalf("seed member: %v", err)
	}

	stats, err := affiliates.Stats(context.Background(), member.ID)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.ReferralCode != "REFCODE1" {
		t.Fatalf("expected the member's code, got %q", stats.ReferralCode)
	}
	if stats.TotalReferrals != 0 || stats.TotalCommissionEarned != 0 || stats.UnpaidCommission != 0 {
		t.Fatalf("expected zero totals, got %+v", stats)
	}
	if stats.CommissionPerReferral != 5 {
		t.Fatalf("expected configured commission rate 5, got %v", stats.CommissionPerReferral)
	}
}

func TestStatsRollup(t *testing.T) {
	store := memory.New()
	affiliates := NewAffiliateService(store, testClubConfig(), discardLogger())

	member := domain.Member{ID: "mem-1", Email: "a@example.com", ReferralCode: "REFCODE1"}
	if err := store.CreateMember(context.Background(), member); err != nil {
		t.Fatalf("seed member: %v", err)
	}

	now := time.Now().UTC()
	seed := []domain.AffiliateAttribution{
		{ReferredMemberID: "r1", ReferrerID: member.ID, CommissionUSD: 5, Eligible: true, Paid: true, CreatedAt: now},
		{ReferredMemberID: "r2", ReferrerID: member.ID, CommissionUSD: 5, Eligible: true, CreatedAt: now},
		// Signed up but dues never verified: counted as a referral only.
		{ReferredMemberID: "r3", ReferrerID: member.ID, CommissionUSD: 5, CreatedAt: now},
	}
	for _, attr := range seed {
		if err := store.CreateAttribution(context.Background(), attr); err != nil {
			t.Fatalf("seed attribution: %v", err)
		}
	}

	stats, err := affiliates.Stats(context.Background(), member.ID)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalReferrals != 3 {
		t.Fatalf("expected 3 referrals, got %d", stats.TotalReferrals)
	}
	if stats.TotalCommissionEarned != 10 {
		t.Fatalf("expected 10 earned, got %v", stats.TotalCommissionEarned)
	}
	if stats.UnpaidCommission != 5 {
		t.Fatalf("expected 5 unpaid, got %v", stats.UnpaidCommission)
	}
}
