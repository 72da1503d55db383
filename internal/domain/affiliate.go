package domain

import "time"

// AffiliateAttribution credits a referring member with a commission for one
// referred member. At most one attribution exists per referred member.
type AffiliateAttribution struct {
	ReferralCode     string
	ReferrerID       string
	ReferredMemberID string
	ReferredEmail    string
	CommissionUSD    float64
	Eligible         bool
	Paid             bool
	TransactionRef   string
	CreatedAt        time.Time
	PaidAt           *time.Time
}

// AffiliateStats is the read-only rollup surfaced to a referring member.
// Absence of data renders as zeros, never as an error.
type AffiliateStats struct {
	ReferralCode          string
	TotalReferrals        int
	TotalCommissionEarned float64
	UnpaidCommission      float64
	CommissionPerReferral float64
}
