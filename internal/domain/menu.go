package domain

import "time"

// MenuItem is a club menu entry with distinct public and member pricing.
type MenuItem struct {
	ID          string
	Name        string
	Description string
	PublicPrice float64
	MemberPrice float64
	Category    string
	Available   bool
}

// Order is a member pre-order. Creation is gated on membership activation.
type Order struct {
	ID        string
	MemberID  string
	ItemID    string
	ItemName  string
	Quantity  int
	TotalUSD  float64
	PickupAt  *time.Time
	CreatedAt time.Time
}
