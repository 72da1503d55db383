// Package memory provides an in-memory Store implementation used for unit
// testing service and handler logic without a database file.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/burgerbus/memberclub/internal/domain"
	"github.com/burgerbus/memberclub/internal/storage"
)

// Store keeps all records in process memory guarded by a single mutex.
type Store struct {
	mu           sync.Mutex
	members      map[string]domain.Member
	intents      map[string]domain.PaymentIntent
	attributions map[string]domain.AffiliateAttribution // keyed by referred member ID
	menu         map[string]domain.MenuItem
	orders       map[string][]domain.Order
	locations    map[string]domain.TruckLocation
	events       map[string]domain.MemberEvent
	probeErr     error
}

// New instantiates an empty in-memory store.
func New() *Store {
	return &Store{
		members:      make(map[string]domain.Member),
		intents:      make(map[string]domain.PaymentIntent),
		attributions: make(map[string]domain.AffiliateAttribution),
		menu:         make(map[string]domain.MenuItem),
		orders:       make(map[string][]domain.Order),
		locations:    make(map[string]domain.TruckLocation),
		events:       make(map[string]domain.MemberEvent),
	}
}

// WithProbeError forces Probe to return the supplied error.
func (s *Store) WithProbeError(err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probeErr = err
	return s
}

func (s *Store) CreateMember(_ context.Context, member domain.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.members {
		if strings.EqualFold(existing.Email, member.Email) {
			return domain.ErrEmailTaken
		}
	}
	s.members[member.ID] = member
	return nil
}

func (s *Store) GetMember(_ context.Context, id string) (domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[id]
	if !ok {
		return domain.Member{}, domain.ErrNotFound
	}
	return member, nil
}

func (s *Store) GetMemberByEmail(_ context.Context, email string) (domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, member := range s.members {
		if strings.EqualFold(member.Email, email) {
			return member, nil
		}
	}
	return domain.Member{}, domain.ErrNotFound
}

func (s *Store) GetMemberByReferralCode(_ context.Context, code string) (domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, member := range s.members {
		if member.ReferralCode == code {
			return member, nil
		}
	}
	return domain.Member{}, domain.ErrNotFound
}

func (s *Store) UpdateMember(_ context.Context, member domain.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[member.ID]; !ok {
		return domain.ErrNotFound
	}
	s.members[member.ID] = member
	return nil
}

func (s *Store) CreateIntent(_ context.Context, intent domain.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.intents {
		if existing.MemberID == intent.MemberID &&
			existing.Purpose == intent.Purpose &&
			existing.Status == domain.IntentPending {
			return domain.ErrDuplicatePending
		}
	}
	s.intents[intent.ID] = intent
	return nil
}

func (s *Store) GetIntent(_ context.Context, id string) (domain.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return domain.PaymentIntent{}, domain.ErrNotFound
	}
	return intent, nil
}

func (s *Store) PendingIntent(_ context.Context, memberID string, purpose domain.Purpose) (domain.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, intent := range s.intents {
		if intent.MemberID == memberID && intent.Purpose == purpose && intent.Status == domain.IntentPending {
			return intent, nil
		}
	}
	return domain.PaymentIntent{}, domain.ErrNotFound
}

func (s *Store) ListPendingIntents(_ context.Context, purpose domain.Purpose) ([]domain.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []domain.PaymentIntent
	for _, intent := range s.intents {
		if intent.Status != domain.IntentPending {
			continue
		}
		if purpose != "" && intent.Purpose != purpose {
			continue
		}
		pending = append(pending, intent)
	}
	// Oldest first: admins clear the backlog in arrival order.
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

func (s *Store) VerifyIntent(_ context.Context, id, transactionRef string, at time.Time) (storage.VerifyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return storage.VerifyResult{}, domain.ErrNotFound
	}
	if intent.Status.Terminal() {
		return storage.VerifyResult{}, domain.ErrAlreadyVerified
	}

	member, ok := s.members[intent.MemberID]
	if !ok {
		return storage.VerifyResult{}, domain.ErrNotFound
	}

	intent.Status = domain.IntentVerified
	intent.TransactionRef = transactionRef
	verifiedAt := at
	intent.VerifiedAt = &verifiedAt
	s.intents[id] = intent

	result := storage.VerifyResult{Intent: intent}

	switch intent.Purpose {
	case domain.PurposeDues:
		result.Activated = !member.DuesSettled
		member.DuesSettled = true
		member.UpdatedAt = at
		s.members[member.ID] = member
		if member.ReferredBy != "" {
			if attr, ok := s.attributions[member.ID]; ok && !attr.Eligible {
				attr.Eligible = true
				s.attributions[member.ID] = attr
			}
		}
	case domain.PurposeAffiliatePayout:
		for referredID, attr := range s.attributions {
			if attr.ReferrerID == member.ID && attr.Eligible && !attr.Paid {
				attr.Paid = true
				attr.TransactionRef = transactionRef
				paidAt := at
				attr.PaidAt = &paidAt
				s.attributions[referredID] = attr
			}
		}
	}

	result.Member = member
	return result, nil
}

func (s *Store) RejectIntent(_ context.Context, id string) (domain.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return domain.PaymentIntent{}, domain.ErrNotFound
	}
	if intent.Status.Terminal() {
		return domain.PaymentIntent{}, domain.ErrAlreadyVerified
	}
	intent.Status = domain.IntentRejected
	s.intents[id] = intent
	return intent, nil
}

func (s *Store) ExpireIntents(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for id, intent := range s.intents {
		if intent.Expired(now) {
			intent.Status = domain.IntentExpired
			s.intents[id] = intent
			expired++
		}
	}
	return expired, nil
}

func (s *Store) CreateAttribution(_ context.Context, attr domain.AffiliateAttribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attributions[attr.ReferredMemberID]; ok {
		return domain.ErrAttributionExists
	}
	s.attributions[attr.ReferredMemberID] = attr
	return nil
}

func (s *Store) ListAttributionsByReferrer(_ context.Context, referrerID string) ([]domain.AffiliateAttribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.AffiliateAttribution
	for _, attr := range s.attributions {
		if attr.ReferrerID == referrerID {
			out = append(out, attr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListEligibleUnpaidAttributions(_ context.Context) ([]domain.AffiliateAttribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.AffiliateAttribution
	for _, attr := range s.attributions {
		if attr.Eligible && !attr.Paid {
			out = append(out, attr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpsertLocation(_ context.Context, loc domain.TruckLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[loc.ID] = loc
	return nil
}

func (s *Store) ListLocations(_ context.Context, includeExclusive bool) ([]domain.TruckLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.TruckLocation
	for _, loc := range s.locations {
		if loc.MemberExclusive && !includeExclusive {
			continue
		}
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (s *Store) UpsertEvent(_ context.Context, event domain.MemberEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = event
	return nil
}

func (s *Store) ListEvents(_ context.Context) ([]domain.MemberEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.MemberEvent, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

func (s *Store) JoinEvent(_ context.Context, eventID string) (domain.MemberEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return domain.MemberEvent{}, domain.ErrNotFound
	}
	if event.Full() {
		return domain.MemberEvent{}, fmt.Errorf("%w: event is full", domain.ErrValidation)
	}
	event.CurrentAttendees++
	s.events[eventID] = event
	return event, nil
}

func (s *Store) UpsertMenuItem(_ context.Context, item domain.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menu[item.ID] = item
	return nil
}

func (s *Store) ListMenuItems(_ context.Context) ([]domain.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]domain.MenuItem, 0, len(s.menu))
	for _, item := range s.menu {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *Store) GetMenuItem(_ context.Context, id string) (domain.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.menu[id]
	if !ok {
		return domain.MenuItem{}, domain.ErrNotFound
	}
	return item, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[order.MemberID]
	if !ok {
		return domain.ErrNotFound
	}
	s.orders[order.MemberID] = append(s.orders[order.MemberID], order)
	member.TotalOrders++
	member.UpdatedAt = order.CreatedAt
	s.members[member.ID] = member
	return nil
}

func (s *Store) ListOrdersByMember(_ context.Context, memberID string) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Order(nil), s.orders[memberID]...), nil
}

func (s *Store) Probe(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probeErr
}

func (s *Store) Close() error {
	return nil
}
