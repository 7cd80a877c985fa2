package events

import (
	"time"

	"github.com/chorale-hq/chorale/internal/authz"
)

// Event is one scheduled obligation of a semester: a rehearsal, a sectional,
// a gig, or anything else members are expected at.
type Event struct {
	ID            int64
	Name          string
	Semester      string
	Type          authz.EventType
	CallTime      time.Time
	ReleaseTime   *time.Time
	Points        int
	Comments      string
	Location      string
	GigCount      bool
	DefaultAttend bool
}

// RepeatPeriod spaces out the copies of a repeating event.
type RepeatPeriod string

const (
	RepeatNo       RepeatPeriod = "no"
	RepeatDaily    RepeatPeriod = "daily"
	RepeatWeekly   RepeatPeriod = "weekly"
	RepeatBiweekly RepeatPeriod = "biweekly"
	RepeatMonthly  RepeatPeriod = "monthly"
)

// next returns t advanced by one period, or t unchanged for RepeatNo.
func (p RepeatPeriod) next(t time.Time) time.Time {
	switch p {
	case RepeatDaily:
		return t.AddDate(0, 0, 1)
	case RepeatWeekly:
		return t.AddDate(0, 0, 7)
	case RepeatBiweekly:
		return t.AddDate(0, 0, 14)
	case RepeatMonthly:
		return t.AddDate(0, 1, 0)
	}
	return t
}

// SetlistEntry is one song slot of an event's ordered setlist.
type SetlistEntry struct {
	Event int64
	Order int
	Title string
}
