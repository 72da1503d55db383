// Package storage defines the persistence contract required by the
// membership and reconciliation services.
package storage

import (
	"context"
	"time"

	"github.com/burgerbus/memberclub/internal/domain"
)

// VerifyResult reports the outcome of an atomic intent verification.
type VerifyResult struct {
	Intent    domain.PaymentIntent
	Member    domain.Member
	Activated bool
}

// Store is the storage contract. Implementations must make VerifyIntent
// atomic: the intent transition, the member activation (dues purpose) or
// commission settlement (payout purpose) and the referral eligibility flip
// commit together or not at all.
type Store interface {
	// Members
	CreateMember(ctx context.Context, member domain.Member) error
	GetMember(ctx context.Context, id string) (domain.Member, error)
	GetMemberByEmail(ctx context.Context, email string) (domain.Member, error)
	GetMemberByReferralCode(ctx context.Context, code string) (domain.Member, error)
	UpdateMember(ctx context.Context, member domain.Member) error

	// Payment intents
	CreateIntent(ctx context.Context, intent domain.PaymentIntent) error
	GetIntent(ctx context.Context, id string) (domain.PaymentIntent, error)
	PendingIntent(ctx context.Context, memberID string, purpose domain.Purpose) (domain.PaymentIntent, error)
	ListPendingIntents(ctx context.Context, purpose domain.Purpose) ([]domain.PaymentIntent, error)
	VerifyIntent(ctx context.Context, id, transactionRef string, at time.Time) (VerifyResult, error)
	RejectIntent(ctx context.Context, id string) (domain.PaymentIntent, error)
	ExpireIntents(ctx context.Context, now time.Time) (int, error)

	// Affiliate attribution
	CreateAttribution(ctx context.Context, attr domain.AffiliateAttribution) error
	ListAttributionsByReferrer(ctx context.Context, referrerID string) ([]domain.AffiliateAttribution, error)
	ListEligibleUnpaidAttributions(ctx context.Context) ([]domain.AffiliateAttribution, error)

	// Truck schedule and member events
	UpsertLocation(ctx context.Context, loc domain.TruckLocation) error
	ListLocations(ctx context.Context, includeExclusive bool) ([]domain.TruckLocation, error)
	UpsertEvent(ctx context.Context, event domain.MemberEvent) error
	ListEvents(ctx context.Context) ([]domain.MemberEvent, error)
	// JoinEvent increments the attendee count; the capacity check and the
	// increment are atomic. A full event fails with ErrValidation.
	JoinEvent(ctx context.Context, eventID string) (domain.MemberEvent, error)

	// Menu and orders
	UpsertMenuItem(ctx context.Context, item domain.MenuItem) error
	ListMenuItems(ctx context.Context) ([]domain.MenuItem, error)
	GetMenuItem(ctx context.Context, id string) (domain.MenuItem, error)
	CreateOrder(ctx context.Context, order domain.Order) error
	ListOrdersByMember(ctx context.Context, memberID string) ([]domain.Order, error)

	// Lifecycle
	Probe(ctx context.Context) error
	Close() error
}
