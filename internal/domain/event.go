package domain

// MemberEvent is a members-only club event with limited capacity.
type MemberEvent struct {
	ID               string
	Title            string
	Description      string
	Date             string
	Time             string
	Location         string
	MaxAttendees     int
	CurrentAttendees int
}

// Full reports whether the event has reached capacity.
func (e MemberEvent) Full() bool {
	return e.CurrentAttendees >= e.MaxAttendees
}
