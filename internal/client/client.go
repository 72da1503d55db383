package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/burgerbus/memberclub/internal/domain"
)

// Client is an HTTP client for the membership API. It carries bearer
// authentication via a SessionStore shared with the status poller.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions *SessionStore
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

// WithSessionStore shares an existing session store.
func WithSessionStore(store *SessionStore) Option {
	return func(c *Client) {
		c.sessions = store
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 15 * time.Second},
		sessions: NewSessionStore(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sessions exposes the session store, e.g. to hand a token to a poller.
func (c *Client) Sessions() *SessionStore {
	return c.sessions
}

// APIError is a non-2xx response from the server. Code carries the server's
// machine-readable conflict discriminator when present.
type APIError struct {
	Status int
	Detail string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Detail)
}

// Unwrap maps HTTP status codes back onto domain sentinels so callers can
// use errors.Is against the same taxonomy the server works with.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return domain.ErrValidation
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		switch e.Code {
		case domain.CodeAlreadyVerified:
			return domain.ErrAlreadyVerified
		case domain.CodeEmailTaken:
			return domain.ErrEmailTaken
		case domain.CodeAlreadyPaid:
			return domain.ErrAlreadyPaid
		case domain.CodeAttributionExists:
			return domain.ErrAttributionExists
		default:
			return domain.ErrDuplicatePending
		}
	default:
		return nil
	}
}

// --- DTOs ---

type RegisterParams struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Phone        string `json:"phone"`
	ReferralCode string `json:"referral_code"`
}

type Profile struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	FullName       string   `json:"full_name"`
	Phone          string   `json:"phone"`
	PMAAgreed      bool     `json:"pma_agreed"`
	DuesPaid       bool     `json:"dues_paid"`
	MembershipTier string   `json:"membership_tier"`
	TotalOrders    int      `json:"total_orders"`
	ReferralCode   string   `json:"referral_code"`
	WalletAddress  string   `json:"wallet_address"`
	FavoriteItems  []string `json:"favorite_items"`
}

type authEnvelope struct {
	Success     bool    `json:"success"`
	AccessToken string  `json:"access_token"`
	User        Profile `json:"user"`
}

type PaymentMethod struct {
	DisplayName string  `json:"display_name"`
	Amount      float64 `json:"amount"`
	Bonus       float64 `json:"cashstamp_bonus"`
	Handle      string  `json:"handle"`
	Cashstamp   bool    `json:"cashstamp"`
	Available   bool    `json:"available"`
}

type PaymentIntent struct {
	PaymentID      string  `json:"payment_id"`
	UserEmail      string  `json:"user_email"`
	Purpose        string  `json:"purpose"`
	DisplayName    string  `json:"display_name"`
	Amount         float64 `json:"amount"`
	AmountBCH      float64 `json:"amount_bch"`
	Handle         string  `json:"handle"`
	Instructions   string  `json:"instructions"`
	QRCode         string  `json:"qr_code"`
	CashstampBonus float64 `json:"cashstamp_bonus"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"created_at"`
	ExpiresAt      string  `json:"expires_at"`
}

type VerifyResult struct {
	Success   bool   `json:"success"`
	Activated bool   `json:"activated"`
	Message   string `json:"message"`
}

type CashstampInstructions struct {
	FromAddress string  `json:"from_address"`
	ToAddress   string  `json:"to_address"`
	AmountBCH   float64 `json:"amount_bch"`
	Memo        string  `json:"memo"`
}

type CashstampResult struct {
	Success            bool                  `json:"success"`
	Instructions       CashstampInstructions `json:"instructions"`
	CashstampAmountUSD float64               `json:"cashstamp_amount_usd"`
}

type PendingPayout struct {
	ReferralCode     string  `json:"referral_code"`
	ReferrerID       string  `json:"referrer_id"`
	ReferredMemberID string  `json:"referred_member_id"`
	ReferredEmail    string  `json:"referred_email"`
	CommissionUSD    float64 `json:"commission_usd"`
	CreatedAt        string  `json:"created_at"`
}

type AffiliateStats struct {
	ReferralCode          string  `json:"referral_code"`
	TotalReferrals        int     `json:"total_referrals"`
	TotalCommissionEarned float64 `json:"total_commissions_earned"`
	UnpaidCommissions     float64 `json:"unpaid_commissions"`
	CommissionPerReferral float64 `json:"commission_per_referral"`
}

type MenuItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
}

type TruckLocation struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Address         string `json:"address"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	MemberExclusive bool   `json:"is_member_exclusive"`
}

type MemberEvent struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	Location         string `json:"location"`
	MaxAttendees     int    `json:"max_attendees"`
	CurrentAttendees int    `json:"current_attendees"`
}

type Order struct {
	ID        string  `json:"id"`
	ItemID    string  `json:"item_id"`
	ItemName  string  `json:"item_name"`
	Quantity  int     `json:"quantity"`
	TotalUSD  float64 `json:"total_usd"`
	PickupAt  string  `json:"pickup_at"`
	CreatedAt string  `json:"created_at"`
}

// --- Auth ---

func (c *Client) Register(ctx context.Context, params RegisterParams) (Profile, error) {
	var resp authEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", params, &resp); err != nil {
		return Profile{}, err
	}
	c.storeSession(resp)
	return resp.User, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (Profile, error) {
	var resp authEnvelope
	payload := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", payload, &resp); err != nil {
		return Profile{}, err
	}
	c.storeSession(resp)
	return resp.User, nil
}

func (c *Client) storeSession(resp authEnvelope) {
	c.sessions.Set(Session{
		Token:        resp.AccessToken,
		MemberID:     resp.User.ID,
		Email:        resp.User.Email,
		ReferralCode: resp.User.ReferralCode,
	})
}

// Logout drops the stored session. There is no server-side session to
// invalidate; the bearer token simply stops being sent.
func (c *Client) Logout() {
	c.sessions.Clear()
}

func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var resp Profile
	err := c.do(ctx, http.MethodGet, "/api/profile", nil, &resp)
	return resp, err
}

// UpdateFavorites replaces the favorite menu items on the member's profile.
func (c *Client) UpdateFavorites(ctx context.Context, favorites []string) (Profile, error) {
	payload := map[string]any{"favorite_items": favorites}
	var resp Profile
	err := c.do(ctx, http.MethodPut, "/api/profile", payload, &resp)
	return resp, err
}

// --- Payments ---

func (c *Client) PaymentMethods(ctx context.Context) (map[string]PaymentMethod, error) {
	var resp struct {
		PaymentMethods map[string]PaymentMethod `json:"payment_methods"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/payments/methods", nil, &resp); err != nil {
		return nil, err
	}
	return resp.PaymentMethods, nil
}

// CreateDuesPayment opens a payment intent on the given channel. When a
// pending intent already exists the returned intent carries its payment ID
// and the error unwraps to the conflict sentinel, so callers can resume
// polling the open intent instead of failing.
func (c *Client) CreateDuesPayment(ctx context.Context, channel string) (PaymentIntent, error) {
	payload := map[string]string{
		"payment_method": channel,
		"user_email":     c.sessions.Get().Email,
	}
	var resp PaymentIntent
	err := c.do(ctx, http.MethodPost, "/api/payments/p2p", payload, &resp)
	return resp, err
}

func (c *Client) PaymentStatus(ctx context.Context, paymentID string) (string, error) {
	var resp struct {
		PaymentID string `json:"payment_id"`
		Status    string `json:"status"`
	}
	path := "/api/payments/status/" + url.PathEscape(paymentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- Admin reconciliation ---

func (c *Client) PendingPayments(ctx context.Context, purpose string) ([]PaymentIntent, error) {
	path := "/api/admin/payments/pending"
	if purpose != "" {
		path += "?purpose=" + url.QueryEscape(purpose)
	}
	var resp struct {
		PendingPayments []PaymentIntent `json:"pending_payments"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.PendingPayments, nil
}

func (c *Client) VerifyPayment(ctx context.Context, paymentID, transactionID string) (VerifyResult, error) {
	payload := map[string]string{
		"payment_id":     paymentID,
		"transaction_id": transactionID,
	}
	var resp VerifyResult
	err := c.do(ctx, http.MethodPost, "/api/admin/payments/verify", payload, &resp)
	return resp, err
}

func (c *Client) RejectPayment(ctx context.Context, paymentID, reason string) error {
	payload := map[string]string{
		"payment_id": paymentID,
		"reason":     reason,
	}
	return c.do(ctx, http.MethodPost, "/api/admin/payments/reject", payload, nil)
}

func (c *Client) Cashstamp(ctx context.Context, paymentID, recipientAddress string) (CashstampResult, error) {
	payload := map[string]string{
		"payment_id":        paymentID,
		"recipient_address": recipientAddress,
	}
	var resp CashstampResult
	err := c.do(ctx, http.MethodPost, "/api/admin/payments/cashstamp", payload, &resp)
	return resp, err
}

func (c *Client) PendingPayouts(ctx context.Context) ([]PendingPayout, error) {
	var resp struct {
		PendingPayouts []PendingPayout `json:"pending_payouts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/affiliate/payouts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.PendingPayouts, nil
}

func (c *Client) CreatePayout(ctx context.Context, referrerMemberID string) (PaymentIntent, error) {
	payload := map[string]string{"referrer_member_id": referrerMemberID}
	var resp PaymentIntent
	err := c.do(ctx, http.MethodPost, "/api/admin/affiliate/payouts", payload, &resp)
	return resp, err
}

// --- Affiliate ---

func (c *Client) AffiliateStats(ctx context.Context) (AffiliateStats, error) {
	var resp AffiliateStats
	err := c.do(ctx, http.MethodGet, "/api/affiliate/stats", nil, &resp)
	return resp, err
}

// --- Menu & orders ---

func (c *Client) PublicMenu(ctx context.Context) ([]MenuItem, error) {
	var resp []MenuItem
	err := c.do(ctx, http.MethodGet, "/api/menu/public", nil, &resp)
	return resp, err
}

func (c *Client) MemberMenu(ctx context.Context) ([]MenuItem, error) {
	var resp []MenuItem
	err := c.do(ctx, http.MethodGet, "/api/menu/member", nil, &resp)
	return resp, err
}

// PublicLocations lists truck stops visible without authentication.
func (c *Client) PublicLocations(ctx context.Context) ([]TruckLocation, error) {
	var resp []TruckLocation
	err := c.do(ctx, http.MethodGet, "/api/locations/public", nil, &resp)
	return resp, err
}

// MemberLocations lists the full schedule including member-exclusive stops.
func (c *Client) MemberLocations(ctx context.Context) ([]TruckLocation, error) {
	var resp []TruckLocation
	err := c.do(ctx, http.MethodGet, "/api/locations/member", nil, &resp)
	return resp, err
}

// Events lists upcoming member events.
func (c *Client) Events(ctx context.Context) ([]MemberEvent, error) {
	var resp []MemberEvent
	err := c.do(ctx, http.MethodGet, "/api/events", nil, &resp)
	return resp, err
}

// JoinEvent claims a seat at an event. A full event maps to ErrValidation.
func (c *Client) JoinEvent(ctx context.Context, eventID string) (MemberEvent, error) {
	var resp struct {
		Success bool        `json:"success"`
		Event   MemberEvent `json:"event"`
	}
	path := "/api/events/" + url.PathEscape(eventID) + "/join"
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return MemberEvent{}, err
	}
	return resp.Event, nil
}

func (c *Client) PlaceOrder(ctx context.Context, itemID string, quantity int, pickupAt string) (Order, error) {
	payload := map[string]any{
		"item_id":   itemID,
		"quantity":  quantity,
		"pickup_at": pickupAt,
	}
	var resp Order
	err := c.do(ctx, http.MethodPost, "/api/orders", payload, &resp)
	return resp, err
}

func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	var resp []Order
	err := c.do(ctx, http.MethodGet, "/api/orders", nil, &resp)
	return resp, err
}

// --- Transport ---

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session := c.sessions.Get(); session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+session.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Detail    string `json:"detail"`
			Code      string `json:"code"`
			PaymentID string `json:"payment_id"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil {
			apiErr.Detail = envelope.Detail
			apiErr.Code = envelope.Code
			// Conflict responses carry the open intent's ID so the caller
			// can resume it.
			if envelope.PaymentID != "" {
				if intent, ok := out.(*PaymentIntent); ok {
					intent.PaymentID = envelope.PaymentID
				}
			}
		}
		// The stored credential is no longer accepted; drop it so the caller
		// lands back in the unauthenticated state.
		if resp.StatusCode == http.StatusUnauthorized {
			c.sessions.Clear()
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
