package service

import (
	"context"
	"log/slog"

	"github.com/burgerbus/memberclub/internal/config"
	"github.com/burgerbus/memberclub/internal/domain"
	"github.com/burgerbus/memberclub/internal/storage"
)

// AffiliateService is a read-only rollup over backend-computed attribution
// truth.
type AffiliateService struct {
	store  storage.Store
	club   config.ClubConfig
	logger *slog.Logger
}

// NewAffiliateService constructs an AffiliateService.
func NewAffiliateService(store storage.Store, club config.ClubConfig, logger *slog.Logger) *AffiliateService {
	return &AffiliateService{store: store, club: club, logger: logger}
}

// Stats returns the member's referral code and commission totals. A member
// with no referrals gets zeros, never an error.
func (s *AffiliateService) Stats(ctx context.Context, memberID string) (domain.AffiliateStats, error) {
	member, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return domain.AffiliateStats{}, err
	}

	attrs, err := s.store.ListAttributionsByReferrer(ctx, memberID)
	if err != nil {
		return domain.AffiliateStats{}, err
	}

	stats := domain.AffiliateStats{
		ReferralCode:          member.ReferralCode,
		CommissionPerReferral: s.club.CommissionUSD,
	}
	for _, attr := range attrs {
		stats.TotalReferrals++
		if attr.Eligible {
			stats.TotalCommissionEarned += attr.CommissionUSD
			if !attr.Paid {
				stats.UnpaidCommission += attr.CommissionUSD
			}
		}
	}
	return stats, nil
}

// PendingPayouts lists eligible unpaid commissions oldest-first for the
// admin payout queue.
func (s *AffiliateService) PendingPayouts(ctx context.Context) ([]domain.AffiliateAttribution, error) {
	return s.store.ListEligibleUnpaidAttributions(ctx)
}
