package domain

import "errors"

// Sentinel errors shared across storage, services and HTTP mapping.
var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("invalid input")

	// ErrUnauthorized indicates a missing, expired or undecodable credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the authenticated actor lacks the required role
	// or membership state.
	ErrForbidden = errors.New("forbidden")

	// ErrDuplicatePending indicates the member already holds a pending intent
	// for the same purpose. Callers should resume the existing intent.
	ErrDuplicatePending = errors.New("pending payment intent already exists")

	// ErrAlreadyVerified guards verify idempotency: re-submitting a verify on
	// a terminal intent is rejected, never silently accepted.
	ErrAlreadyVerified = errors.New("payment intent already in a terminal state")

	// ErrInvalidChannel indicates an unknown or unavailable payment method.
	ErrInvalidChannel = errors.New("unknown or unavailable payment method")

	// ErrEmailTaken indicates a registration against an existing email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrAlreadyPaid indicates a commission payout was already settled.
	ErrAlreadyPaid = errors.New("commission already paid")

	// ErrAttributionExists indicates the referred member already has an
	// attribution row; commissions are credited at most once per referral.
	ErrAttributionExists = errors.New("attribution already recorded")
)

// Machine-readable codes carried in 409 response bodies so clients can tell
// the conflict variants apart; the status alone is ambiguous.
const (
	CodeDuplicatePending  = "duplicate_pending"
	CodeAlreadyVerified   = "already_verified"
	CodeEmailTaken        = "email_taken"
	CodeAlreadyPaid       = "already_paid"
	CodeAttributionExists = "attribution_exists"
)
