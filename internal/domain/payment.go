package domain

import "time"

// Channel identifies a peer-to-peer payment rail.
type Channel string

const (
	ChannelCashApp Channel = "cashapp"
	ChannelVenmo   Channel = "venmo"
	ChannelZelle   Channel = "zelle"
	ChannelBCH     Channel = "bch"
)

// Purpose distinguishes what a payment intent settles.
type Purpose string

const (
	PurposeDues            Purpose = "dues"
	PurposeAffiliatePayout Purpose = "affiliate-payout"
)

// IntentStatus is the lifecycle state of a payment intent. Pending is the
// only non-terminal state.
type IntentStatus string

const (
	IntentPending  IntentStatus = "pending"
	IntentVerified IntentStatus = "verified"
	IntentExpired  IntentStatus = "expired"
	IntentRejected IntentStatus = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s IntentStatus) Terminal() bool {
	return s == IntentVerified || s == IntentExpired || s == IntentRejected
}

// PaymentMethod describes one configured payment channel as shown to
// prospective members.
type PaymentMethod struct {
	Channel     Channel
	DisplayName string
	AmountUSD   float64
	BonusUSD    float64
	Handle      string
	Cashstamp   bool
	Available   bool
}

// PaymentIntent anchors an externally executed P2P transfer so an admin can
// later reconcile it. The server owns all status transitions; clients only
// submit evidence.
type PaymentIntent struct {
	ID             string
	MemberID       string
	MemberEmail    string
	Purpose        Purpose
	Channel        Channel
	AmountUSD      float64
	AmountBCH      float64
	BonusUSD       float64
	Handle         string
	Instructions   string
	QRPayload      string
	TransactionRef string
	Status         IntentStatus
	CreatedAt      time.Time
	ExpiresAt      time.Time
	VerifiedAt     *time.Time
}

// Expired reports whether a pending intent has outlived its window.
func (p PaymentIntent) Expired(now time.Time) bool {
	return p.Status == IntentPending && now.After(p.ExpiresAt)
}

// CashstampInstruction is an ephemeral, copy-paste payload handed to an admin
// for a manual bonus transfer. It is derived on demand and never persisted.
type CashstampInstruction struct {
	FromAddress string
	ToAddress   string
	AmountBCH   float64
	AmountUSD   float64
	Memo        string
}
