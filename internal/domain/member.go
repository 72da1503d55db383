package domain

import "time"

// Role distinguishes ordinary members from reconciliation admins.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Member models a club member account.
type Member struct {
	ID              string
	Email           string
	FullName        string
	Phone           string
	PasswordHash    string
	Role            Role
	AgreementSigned bool
	DuesSettled     bool
	MembershipTier  string
	TotalOrders     int
	ReferralCode    string
	ReferredBy      string
	WalletAddress   string
	FavoriteItems   []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CanOrder reports whether the member may place orders. Ordering is
// permitted iff the agreement is signed and dues are settled.
func (m Member) CanOrder() bool {
	return m.AgreementSigned && m.DuesSettled
}

// IsAdmin reports whether the member holds the admin role.
func (m Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}
