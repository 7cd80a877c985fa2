package absences

import "time"

// Status is the lifecycle position of an absence request. Approved and Denied
// are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// AbsenceRequest asks to have an absence from one event excused. At most one
// request exists per (member, event).
type AbsenceRequest struct {
	Member     string
	Event      int64
	Time       time.Time
	Reason     string
	Status     Status
	ReviewedBy string
	ReviewedAt *time.Time
}
