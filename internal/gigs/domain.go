package gigs

import "time"

// Status is the lifecycle position of a gig request. Converted is terminal;
// Pending and Dismissed convert back and forth.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDismissed Status = "dismissed"
	StatusConverted Status = "converted"
)

// GigRequest is an inbound ask for a performance, submitted from outside the
// organization. Event records the first event created from the request once
// it converts.
type GigRequest struct {
	ID           int64
	Time         time.Time
	Name         string
	Organization string
	ContactName  string
	ContactEmail string
	ContactPhone string
	StartTime    time.Time
	Location     string
	Comments     string
	Status       Status
	Event        *int64
}
