package domain

// TruckLocation is a scheduled food truck stop. Member-exclusive stops are
// hidden from the public schedule.
type TruckLocation struct {
	ID              string
	Name            string
	Address         string
	Date            string
	StartTime       string
	EndTime         string
	MemberExclusive bool
}
