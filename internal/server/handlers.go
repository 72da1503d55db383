package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/burgerbus/memberclub/internal/auth"
	"github.com/burgerbus/memberclub/internal/domain"
	"github.com/burgerbus/memberclub/internal/service"
)

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger     *slog.Logger
	membership *service.MembershipService
	payments   *service.PaymentService
	affiliates *service.AffiliateService
	tokens     *auth.TokenIssuer
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, membership *service.MembershipService, payments *service.PaymentService, affiliates *service.AffiliateService, tokens *auth.TokenIssuer) *APIHandlers {
	return &APIHandlers{
		logger:     logger,
		membership: membership,
		payments:   payments,
		affiliates: affiliates,
		tokens:     tokens,
	}
}

// --- Auth ---

func (h *APIHandlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload registerRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.membership.Register(r.Context(), service.RegisterInput{
		FullName:     payload.FullName,
		Email:        payload.Email,
		Password:     payload.Password,
		Phone:        payload.Phone,
		ReferralCode: payload.ReferralCode,
	})
	if err != nil {
		h.writeDomainError(w, err, "registration failed")
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{
		Success:     true,
		AccessToken: result.Token,
		User:        toProfileResponse(result.Member),
	})
}

func (h *APIHandlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload loginRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.membership.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		h.writeDomainError(w, err, "login failed")
		return
	}

	respondJSON(w, http.StatusOK, authResponse{
		Success:     true,
		AccessToken: result.Token,
		User:        toProfileResponse(result.Member),
	})
}

func (h *APIHandlers) handleProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		member, err := h.membership.Profile(r.Context(), identity.MemberID)
		if err != nil {
			h.writeDomainError(w, err, "failed to load profile")
			return
		}
		respondJSON(w, http.StatusOK, toProfileResponse(member))

	case http.MethodPut:
		var payload updateProfileRequest
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		member, err := h.membership.UpdateFavorites(r.Context(), identity.MemberID, payload.FavoriteItems)
		if err != nil {
			h.writeDomainError(w, err, "failed to update profile")
			return
		}
		respondJSON(w, http.StatusOK, toProfileResponse(member))

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

// --- Payments (member side) ---

func (h *APIHandlers) handlePaymentMethods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	methods := h.payments.Methods()
	out := make(map[string]paymentMethodResponse, len(methods))
	for key, method := range methods {
		out[string(key)] = paymentMethodResponse{
			DisplayName: method.DisplayName,
			Amount:      method.AmountUSD,
			Bonus:       method.BonusUSD,
			Handle:      method.Handle,
			Cashstamp:   method.Cashstamp,
			Available:   method.Available,
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"payment_methods": out})
}

func (h *APIHandlers) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	identity, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	var payload createPaymentRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	email := payload.UserEmail
	if email == "" {
		email = identity.Email
	}
	// Members open intents for themselves only.
	if identity.Role != domain.RoleAdmin && !strings.EqualFold(email, identity.Email) {
		writeError(w, http.StatusForbidden, "cannot create a payment for another member")
		return
	}

	intent, err := h.payments.CreateIntent(r.Context(), email, domain.Channel(payload.PaymentMethod))
	if errors.Is(err, domain.ErrDuplicatePending) {
		// Point the caller back at the open intent instead of opening a second
		// payment channel for the same dues.
		respondJSON(w, http.StatusConflict, map[string]any{
			"detail":     "a pending payment already exists; resume it",
			"code":       domain.CodeDuplicatePending,
			"payment_id": intent.ID,
		})
		return
	}
	if err != nil {
		h.writeDomainError(w, err, "failed to create payment")
		return
	}

	paymentsCreatedTotal.WithLabelValues(string(intent.Channel)).Inc()
	respondJSON(w, http.StatusCreated, toIntentResponse(intent))
}

func (h *APIHandlers) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	identity, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	paymentID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/payments/status/"), "/")
	if paymentID == "" {
		writeError(w, http.StatusBadRequest, "payment ID is required")
		return
	}

	intent, err := h.payments.Status(r.Context(), paymentID)
	if err != nil {
		h.writeDomainError(w, err, "failed to fetch payment status")
		return
	}
	if identity.Role != domain.RoleAdmin && intent.MemberID != identity.MemberID {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"payment_id": intent.ID,
		"status":     string(intent.Status),
	})
}

// --- Admin reconciliation ---

func (h *APIHandlers) handlePendingPayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	purpose := domain.Purpose(r.URL.Query().Get("purpose"))
	intents, err := h.payments.ListPending(r.Context(), purpose)
	if err != nil {
		h.writeDomainError(w, err, "failed to list pending payments")
		return
	}

	out := make([]paymentIntentResponse, 0, len(intents))
	for _, intent := range intents {
		out = append(out, toIntentResponse(intent))
	}
	respondJSON(w, http.StatusOK, map[string]any{"pending_payments": out})
}

func (h *APIHandlers) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	var payload verifyPaymentRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.PaymentID == "" {
		writeError(w, http.StatusBadRequest, "payment_id is required")
		return
	}

	result, err := h.payments.Verify(r.Context(), payload.PaymentID, payload.TransactionID)
	if err != nil {
		h.writeDomainError(w, err, "verification failed")
		return
	}

	paymentsVerifiedTotal.Inc()
	if result.Activated {
		membersActivatedTotal.Inc()
	}
	respondJSON(w, http.StatusOK, verifyPaymentResponse{
		Success:   true,
		Activated: result.Activated,
		Message:   "payment verified",
	})
}

func (h *APIHandlers) handleRejectPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	var payload rejectPaymentRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.PaymentID == "" {
		writeError(w, http.StatusBadRequest, "payment_id is required")
		return
	}

	intent, err := h.payments.Reject(r.Context(), payload.PaymentID, payload.Reason)
	if err != nil {
		h.writeDomainError(w, err, "rejection failed")
		return
	}

	paymentsRejectedTotal.Inc()
	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"payment_id": intent.ID,
		"status":     string(intent.Status),
	})
}

func (h *APIHandlers) handleCashstamp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	var payload cashstampRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	instr, err := h.payments.CashstampInstructions(r.Context(), payload.PaymentID, payload.RecipientAddress)
	if err != nil {
		h.writeDomainError(w, err, "cashstamp generation failed")
		return
	}

	respondJSON(w, http.StatusOK, cashstampResponse{
		Success: true,
		Instructions: cashstampInstructions{
			FromAddress: instr.FromAddress,
			ToAddress:   instr.ToAddress,
			AmountBCH:   instr.AmountBCH,
			Memo:        instr.Memo,
		},
		CashstampAmountUSD: instr.AmountUSD,
	})
}

func (h *APIHandlers) handleAffiliatePayouts(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		attrs, err := h.affiliates.PendingPayouts(r.Context())
		if err != nil {
			h.writeDomainError(w, err, "failed to list payouts")
			return
		}
		out := make([]payoutResponse, 0, len(attrs))
		for _, attr := range attrs {
			out = append(out, payoutResponse{
				ReferralCode:     attr.ReferralCode,
				ReferrerID:       attr.ReferrerID,
				ReferredMemberID: attr.ReferredMemberID,
				ReferredEmail:    attr.ReferredEmail,
				CommissionUSD:    attr.CommissionUSD,
				CreatedAt:        formatTime(attr.CreatedAt),
			})
		}
		respondJSON(w, http.StatusOK, map[string]any{"pending_payouts": out})

	case http.MethodPost:
		var payload createPayoutRequest
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if payload.ReferrerMemberID == "" {
			writeError(w, http.StatusBadRequest, "referrer_member_id is required")
			return
		}
		intent, err := h.payments.CreatePayout(r.Context(), payload.ReferrerMemberID)
		if errors.Is(err, domain.ErrDuplicatePending) {
			respondJSON(w, http.StatusConflict, map[string]any{
				"detail":     "a pending payout already exists; resume it",
				"code":       domain.CodeDuplicatePending,
				"payment_id": intent.ID,
			})
			return
		}
		if err != nil {
			h.writeDomainError(w, err, "failed to create payout")
			return
		}
		respondJSON(w, http.StatusCreated, toIntentResponse(intent))

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// --- Affiliate (member side) ---

func (h *APIHandlers) handleAffiliateStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	identity, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	stats, err := h.affiliates.Stats(r.Context(), identity.MemberID)
	if err != nil {
		h.writeDomainError(w, err, "failed to load affiliate stats")
		return
	}

	respondJSON(w, http.StatusOK, affiliateStatsResponse{
		ReferralCode:          stats.ReferralCode,
		TotalReferrals:        stats.TotalReferrals,
		TotalCommissionEarned: stats.TotalCommissionEarned,
		UnpaidCommissions:     stats.UnpaidCommission,
		CommissionPerReferral: stats.CommissionPerReferral,
	})
}

// --- Menu & orders ---

func (h *APIHandlers) handlePublicMenu(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	items, err := h.membership.PublicMenu(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "failed to load menu")
		return
	}
	out := make([]menuItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, menuItemResponse{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			Price:       item.PublicPrice,
			Category:    item.Category,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *APIHandlers) handleMemberMenu(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if _, ok := h.requireMember(w, r); !ok {
		return
	}
	items, err := h.membership.MemberMenu(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "failed to load menu")
		return
	}
	out := make([]menuItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, menuItemResponse{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			Price:       item.MemberPrice,
			Category:    item.Category,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// --- Truck schedule & events ---

func (h *APIHandlers) handlePublicLocations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	locations, err := h.membership.PublicLocations(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "failed to load locations")
		return
	}
	respondJSON(w, http.StatusOK, toLocationResponses(locations))
}

func (h *APIHandlers) handleMemberLocations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if _, ok := h.requireMember(w, r); !ok {
		return
	}
	locations, err := h.membership.MemberLocations(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "failed to load locations")
		return
	}
	respondJSON(w, http.StatusOK, toLocationResponses(locations))
}

func (h *APIHandlers) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if _, ok := h.requireMember(w, r); !ok {
		return
	}
	events, err := h.membership.Events(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "failed to load events")
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, toEventResponse(event))
	}
	respondJSON(w, http.StatusOK, out)
}

// handleEventJoin serves POST /api/events/{id}/join.
func (h *APIHandlers) handleEventJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if _, ok := h.requireMember(w, r); !ok {
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/events/"), "/")
	eventID, action, found := strings.Cut(rest, "/")
	if !found || action != "join" || eventID == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	event, err := h.membership.JoinEvent(r.Context(), eventID)
	if err != nil {
		h.writeDomainError(w, err, "failed to join event")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"event":   toEventResponse(event),
	})
}

func (h *APIHandlers) handleOrders(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		orders, err := h.membership.Orders(r.Context(), identity.MemberID)
		if err != nil {
			h.writeDomainError(w, err, "failed to list orders")
			return
		}
		out := make([]orderResponse, 0, len(orders))
		for _, order := range orders {
			out = append(out, toOrderResponse(order))
		}
		respondJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var payload createOrderRequest
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		input := service.OrderInput{
			MemberID: identity.MemberID,
			ItemID:   payload.ItemID,
			Quantity: payload.Quantity,
		}
		if payload.PickupAt != "" {
			ts, err := time.Parse(time.RFC3339, payload.PickupAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid pickup_at")
				return
			}
			input.PickupAt = &ts
		}
		order, err := h.membership.PlaceOrder(r.Context(), input)
		if err != nil {
			h.writeDomainError(w, err, "failed to place order")
			return
		}
		respondJSON(w, http.StatusCreated, toOrderResponse(order))

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// --- Auth helpers ---

func (h *APIHandlers) authenticate(r *http.Request) (auth.Identity, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return auth.Identity{}, domain.ErrUnauthorized
	}
	return h.tokens.Verify(strings.TrimPrefix(header, prefix))
}

func (h *APIHandlers) requireMember(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, err := h.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return auth.Identity{}, false
	}
	return identity, true
}

func (h *APIHandlers) requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, err := h.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return auth.Identity{}, false
	}
	if identity.Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin access required")
		return auth.Identity{}, false
	}
	return identity, true
}

func (h *APIHandlers) writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidChannel):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicatePending):
		writeConflict(w, domain.CodeDuplicatePending, err.Error())
	case errors.Is(err, domain.ErrAlreadyVerified):
		writeConflict(w, domain.CodeAlreadyVerified, err.Error())
	case errors.Is(err, domain.ErrEmailTaken):
		writeConflict(w, domain.CodeEmailTaken, err.Error())
	case errors.Is(err, domain.ErrAttributionExists):
		writeConflict(w, domain.CodeAttributionExists, err.Error())
	case errors.Is(err, domain.ErrAlreadyPaid):
		writeConflict(w, domain.CodeAlreadyPaid, err.Error())
	default:
		h.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// --- Request & Response DTOs ---

type registerRequest struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Phone        string `json:"phone"`
	ReferralCode string `json:"referral_code"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Success     bool            `json:"success"`
	AccessToken string          `json:"access_token"`
	User        profileResponse `json:"user"`
}

type profileResponse struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	FullName       string   `json:"full_name"`
	Phone          string   `json:"phone"`
	PMAAgreed      bool     `json:"pma_agreed"`
	DuesPaid       bool     `json:"dues_paid"`
	MembershipTier string   `json:"membership_tier"`
	TotalOrders    int      `json:"total_orders"`
	ReferralCode   string   `json:"referral_code"`
	WalletAddress  string   `json:"wallet_address,omitempty"`
	FavoriteItems  []string `json:"favorite_items"`
}

type updateProfileRequest struct {
	FavoriteItems []string `json:"favorite_items"`
}

type paymentMethodResponse struct {
	DisplayName string  `json:"display_name"`
	Amount      float64 `json:"amount"`
	Bonus       float64 `json:"cashstamp_bonus,omitempty"`
	Handle      string  `json:"handle"`
	Cashstamp   bool    `json:"cashstamp"`
	Available   bool    `json:"available"`
}

type createPaymentRequest struct {
	PaymentMethod string `json:"payment_method"`
	UserEmail     string `json:"user_email"`
}

type paymentIntentResponse struct {
	Success        bool    `json:"success"`
	PaymentID      string  `json:"payment_id"`
	UserEmail      string  `json:"user_email"`
	Purpose        string  `json:"purpose"`
	DisplayName    string  `json:"display_name"`
	Amount         float64 `json:"amount"`
	AmountBCH      float64 `json:"amount_bch,omitempty"`
	Handle         string  `json:"handle"`
	Instructions   string  `json:"instructions"`
	QRCode         string  `json:"qr_code,omitempty"`
	CashstampBonus float64 `json:"cashstamp_bonus,omitempty"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"created_at"`
	ExpiresAt      string  `json:"expires_at"`
}

type verifyPaymentRequest struct {
	PaymentID     string `json:"payment_id"`
	TransactionID string `json:"transaction_id"`
}

type verifyPaymentResponse struct {
	Success   bool   `json:"success"`
	Activated bool   `json:"activated"`
	Message   string `json:"message"`
}

type rejectPaymentRequest struct {
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason"`
}

type cashstampRequest struct {
	PaymentID        string `json:"payment_id"`
	RecipientAddress string `json:"recipient_address"`
}

type cashstampInstructions struct {
	FromAddress string  `json:"from_address"`
	ToAddress   string  `json:"to_address"`
	AmountBCH   float64 `json:"amount_bch"`
	Memo        string  `json:"memo"`
}

type cashstampResponse struct {
	Success            bool                  `json:"success"`
	Instructions       cashstampInstructions `json:"instructions"`
	CashstampAmountUSD float64               `json:"cashstamp_amount_usd"`
}

type createPayoutRequest struct {
	ReferrerMemberID string `json:"referrer_member_id"`
}

type payoutResponse struct {
	ReferralCode     string  `json:"referral_code"`
	ReferrerID       string  `json:"referrer_id"`
	ReferredMemberID string  `json:"referred_member_id"`
	ReferredEmail    string  `json:"referred_email"`
	CommissionUSD    float64 `json:"commission_usd"`
	CreatedAt        string  `json:"created_at"`
}

type affiliateStatsResponse struct {
	ReferralCode          string  `json:"referral_code"`
	TotalReferrals        int     `json:"total_referrals"`
	TotalCommissionEarned float64 `json:"total_commissions_earned"`
	UnpaidCommissions     float64 `json:"unpaid_commissions"`
	CommissionPerReferral float64 `json:"commission_per_referral"`
}

type locationResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Address         string `json:"address"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	MemberExclusive bool   `json:"is_member_exclusive"`
}

type eventResponse struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	Location         string `json:"location"`
	MaxAttendees     int    `json:"max_attendees"`
	CurrentAttendees int    `json:"current_attendees"`
}

type menuItemResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
}

type createOrderRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	PickupAt string `json:"pickup_at"`
}

type orderResponse struct {
	ID        string  `json:"id"`
	ItemID    string  `json:"item_id"`
	ItemName  string  `json:"item_name"`
	Quantity  int     `json:"quantity"`
	TotalUSD  float64 `json:"total_usd"`
	PickupAt  string  `json:"pickup_at,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// --- Helpers ---

func toProfileResponse(member domain.Member) profileResponse {
	favorites := member.FavoriteItems
	if favorites == nil {
		favorites = []string{}
	}
	return profileResponse{
		ID:             member.ID,
		Email:          member.Email,
		FullName:       member.FullName,
		Phone:          member.Phone,
		PMAAgreed:      member.AgreementSigned,
		DuesPaid:       member.DuesSettled,
		MembershipTier: member.MembershipTier,
		TotalOrders:    member.TotalOrders,
		ReferralCode:   member.ReferralCode,
		WalletAddress:  member.WalletAddress,
		FavoriteItems:  favorites,
	}
}

func toLocationResponses(locations []domain.TruckLocation) []locationResponse {
	out := make([]locationResponse, 0, len(locations))
	for _, loc := range locations {
		out = append(out, locationResponse{
			ID:              loc.ID,
			Name:            loc.Name,
			Address:         loc.Address,
			Date:            loc.Date,
			StartTime:       loc.StartTime,
			EndTime:         loc.EndTime,
			MemberExclusive: loc.MemberExclusive,
		})
	}
	return out
}

func toEventResponse(event domain.MemberEvent) eventResponse {
	return eventResponse{
		ID:               event.ID,
		Title:            event.Title,
		Description:      event.Description,
		Date:             event.Date,
		Time:             event.Time,
		Location:         event.Location,
		MaxAttendees:     event.MaxAttendees,
		CurrentAttendees: event.CurrentAttendees,
	}
}

func toIntentResponse(intent domain.PaymentIntent) paymentIntentResponse {
	return paymentIntentResponse{
		Success:        true,
		PaymentID:      intent.ID,
		UserEmail:      intent.MemberEmail,
		Purpose:        string(intent.Purpose),
		DisplayName:    channelDisplayName(intent.Channel),
		Amount:         intent.AmountUSD,
		AmountBCH:      intent.AmountBCH,
		Handle:         intent.Handle,
		Instructions:   intent.Instructions,
		QRCode:         intent.QRPayload,
		CashstampBonus: intent.BonusUSD,
		Status:         string(intent.Status),
		CreatedAt:      formatTime(intent.CreatedAt),
		ExpiresAt:      formatTime(intent.ExpiresAt),
	}
}

func toOrderResponse(order domain.Order) orderResponse {
	return orderResponse{
		ID:        order.ID,
		ItemID:    order.ItemID,
		ItemName:  order.ItemName,
		Quantity:  order.Quantity,
		TotalUSD:  order.TotalUSD,
		PickupAt:  formatTimePtr(order.PickupAt),
		CreatedAt: formatTime(order.CreatedAt),
	}
}

func channelDisplayName(channel domain.Channel) string {
	switch channel {
	case domain.ChannelCashApp:
		return "Cash App"
	case domain.ChannelVenmo:
		return "Venmo"
	case domain.ChannelZelle:
		return "Zelle"
	case domain.ChannelBCH:
		return "Bitcoin Cash"
	default:
		return string(channel)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"detail": msg,
	})
}

func writeConflict(w http.ResponseWriter, code, msg string) {
	respondJSON(w, http.StatusConflict, map[string]string{
		"detail": msg,
		"code":   code,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
