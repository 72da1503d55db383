package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/burgerbus/memberclub/internal/auth"
	"github.com/burgerbus/memberclub/internal/config"
	"github.com/burgerbus/memberclub/internal/domain"
	"github.com/burgerbus/memberclub/internal/storage"
)

const referralCodeLength = 8

// referralAlphabet avoids ambiguous characters in codes members share aloud.
const referralAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// MembershipService owns registration, authentication, profiles, the
// membership gate and ordering.
type MembershipService struct {
	store  storage.Store
	tokens *auth.TokenIssuer
	club   config.ClubConfig
	logger *slog.Logger
	nowFn  func() time.Time
}

// NewMembershipService constructs a MembershipService.
func NewMembershipService(store storage.Store, tokens *auth.TokenIssuer, club config.ClubConfig, logger *slog.Logger) *MembershipService {
	return &MembershipService{
		store:  store,
		tokens: tokens,
		club:   club,
		logger: logger,
		nowFn:  time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *MembershipService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// RegisterInput captures a membership registration submission. Reaching this
// point means the PMA agreement step was completed.
type RegisterInput struct {
	FullName     string
	Email        string
	Password     string
	Phone        string
	ReferralCode string
}

// AuthResult bundles the created/authenticated member with a bearer token.
type AuthResult struct {
	Member domain.Member
	Token  string
}

// Register creates a member account. The agreement flag is set immediately;
// dues are settled at once only when the configured dues amount is zero,
// otherwise activation waits for admin reconciliation.
func (s *MembershipService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return AuthResult{}, fmt.Errorf("%w: invalid email", domain.ErrValidation)
	}
	if strings.TrimSpace(input.FullName) == "" {
		return AuthResult{}, fmt.Errorf("%w: full name is required", domain.ErrValidation)
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	code, err := s.generateReferralCode(ctx)
	if err != nil {
		return AuthResult{}, err
	}

	var referrer domain.Member
	referredBy := strings.ToUpper(strings.TrimSpace(input.ReferralCode))
	if referredBy != "" {
		referrer, err = s.store.GetMemberByReferralCode(ctx, referredBy)
		if errors.Is(err, domain.ErrNotFound) {
			// Unknown codes do not block registration; they simply earn
			// nobody a commission.
			s.logger.Warn("registration with unknown referral code", "code", referredBy)
			referredBy = ""
			err = nil
		}
		if err != nil {
			return AuthResult{}, err
		}
	}

	now := s.nowFn().UTC()
	member := domain.Member{
		ID:              uuid.NewString(),
		Email:           email,
		FullName:        strings.TrimSpace(input.FullName),
		Phone:           strings.TrimSpace(input.Phone),
		PasswordHash:    hash,
		Role:            domain.RoleMember,
		AgreementSigned: true,
		DuesSettled:     s.club.DuesUSD == 0,
		MembershipTier:  "basic",
		ReferralCode:    code,
		ReferredBy:      referredBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.CreateMember(ctx, member); err != nil {
		return AuthResult{}, err
	}

	if referredBy != "" {
		attr := domain.AffiliateAttribution{
			ReferralCode:     referredBy,
			ReferrerID:       referrer.ID,
			ReferredMemberID: member.ID,
			ReferredEmail:    member.Email,
			CommissionUSD:    s.club.CommissionUSD,
			// Free membership has no dues to reconcile, so the commission
			// becomes eligible right away.
			Eligible:  member.DuesSettled,
			CreatedAt: now,
		}
		if err := s.store.CreateAttribution(ctx, attr); err != nil && !errors.Is(err, domain.ErrAttributionExists) {
			return AuthResult{}, err
		}
	}

	token, err := s.tokens.Issue(auth.Identity{MemberID: member.ID, Email: member.Email, Role: member.Role})
	if err != nil {
		return AuthResult{}, err
	}

	s.logger.Info("member registered",
		"memberId", member.ID,
		"duesSettled", member.DuesSettled,
		"referred", referredBy != "",
	)
	return AuthResult{Member: member, Token: token}, nil
}

// Login authenticates an email/password pair and issues a bearer token.
func (s *MembershipService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	member, err := s.store.GetMemberByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrNotFound) {
		return AuthResult{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	if err != nil {
		return AuthResult{}, err
	}
	if !auth.CheckPassword(member.PasswordHash, password) {
		return AuthResult{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}

	token, err := s.tokens.Issue(auth.Identity{MemberID: member.ID, Email: member.Email, Role: member.Role})
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Member: member, Token: token}, nil
}

// Profile returns the freshest member record. Callers gate ordering on this,
// not on state fetched at page load.
func (s *MembershipService) Profile(ctx context.Context, memberID string) (domain.Member, error) {
	return s.store.GetMember(ctx, memberID)
}

// EnsureAdmin bootstraps the admin account from configuration. Safe to call
// on every startup.
func (s *MembershipService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.store.GetMemberByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("admin bootstrap: %w", err)
	}
	code, err := s.generateReferralCode(ctx)
	if err != nil {
		return err
	}
	now := s.nowFn().UTC()
	admin := domain.Member{
		ID:              uuid.NewString(),
		Email:           email,
		FullName:        "Club Admin",
		PasswordHash:    hash,
		Role:            domain.RoleAdmin,
		AgreementSigned: true,
		DuesSettled:     true,
		MembershipTier:  "admin",
		ReferralCode:    code,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateMember(ctx, admin); err != nil {
		return fmt.Errorf("admin bootstrap: %w", err)
	}
	s.logger.Info("admin account bootstrapped", "email", email)
	return nil
}

// PublicMenu lists available items at public pricing.
func (s *MembershipService) PublicMenu(ctx context.Context) ([]domain.MenuItem, error) {
	items, err := s.store.ListMenuItems(ctx)
	if err != nil {
		return nil, err
	}
	visible := items[:0]
	for _, item := range items {
		if item.Available {
			visible = append(visible, item)
		}
	}
	return visible, nil
}

// MemberMenu lists available items with member pricing. Viewing does not
// require activation; ordering does.
func (s *MembershipService) MemberMenu(ctx context.Context) ([]domain.MenuItem, error) {
	return s.PublicMenu(ctx)
}

// OrderInput captures a member pre-order request.
type OrderInput struct {
	MemberID string
	ItemID   string
	Quantity int
	PickupAt *time.Time
}

// PlaceOrder creates a pre-order after re-evaluating the membership gate
// against the freshest profile. The earlier UI-level check can be stale.
func (s *MembershipService) PlaceOrder(ctx context.Context, input OrderInput) (domain.Order, error) {
	member, err := s.store.GetMember(ctx, input.MemberID)
	if err != nil {
		return domain.Order{}, err
	}
	if !member.CanOrder() {
		return domain.Order{}, fmt.Errorf("%w: membership incomplete", domain.ErrForbidden)
	}
	if input.Quantity <= 0 {
		input.Quantity = 1
	}

	item, err := s.store.GetMenuItem(ctx, input.ItemID)
	if err != nil {
		return domain.Order{}, err
	}
	if !item.Available {
		return domain.Order{}, fmt.Errorf("%w: item unavailable", domain.ErrValidation)
	}

	order := domain.Order{
		ID:        uuid.NewString(),
		MemberID:  member.ID,
		ItemID:    item.ID,
		ItemName:  item.Name,
		Quantity:  input.Quantity,
		TotalUSD:  item.MemberPrice * float64(input.Quantity),
		PickupAt:  input.PickupAt,
		CreatedAt: s.nowFn().UTC(),
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// UpdateFavorites replaces the member's favorite menu items.
func (s *MembershipService) UpdateFavorites(ctx context.Context, memberID string, favorites []string) (domain.Member, error) {
	member, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return domain.Member{}, err
	}
	member.FavoriteItems = favorites
	member.UpdatedAt = s.nowFn().UTC()
	if err := s.store.UpdateMember(ctx, member); err != nil {
		return domain.Member{}, err
	}
	return member, nil
}

// PublicLocations lists upcoming truck stops open to everyone.
func (s *MembershipService) PublicLocations(ctx context.Context) ([]domain.TruckLocation, error) {
	return s.store.ListLocations(ctx, false)
}

// MemberLocations lists the full schedule including member-exclusive stops.
func (s *MembershipService) MemberLocations(ctx context.Context) ([]domain.TruckLocation, error) {
	return s.store.ListLocations(ctx, true)
}

// Events lists upcoming member events.
func (s *MembershipService) Events(ctx context.Context) ([]domain.MemberEvent, error) {
	return s.store.ListEvents(ctx)
}

// JoinEvent claims a seat at an event. Capacity is enforced in storage.
func (s *MembershipService) JoinEvent(ctx context.Context, eventID string) (domain.MemberEvent, error) {
	event, err := s.store.JoinEvent(ctx, eventID)
	if err != nil {
		return domain.MemberEvent{}, err
	}
	s.logger.Info("event joined",
		"eventId", event.ID,
		"attendees", event.CurrentAttendees,
		"capacity", event.MaxAttendees,
	)
	return event, nil
}

// Orders lists the member's pre-orders.
func (s *MembershipService) Orders(ctx context.Context, memberID string) ([]domain.Order, error) {
	return s.store.ListOrdersByMember(ctx, memberID)
}

func (s *MembershipService) generateReferralCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		buf := make([]byte, referralCodeLength)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		for i, b := range buf {
			buf[i] = referralAlphabet[int(b)%len(referralAlphabet)]
		}
		code := string(buf)
		_, err := s.store.GetMemberByReferralCode(ctx, code)
		if errors.Is(err, domain.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("generate referral code: exhausted attempts")
}
