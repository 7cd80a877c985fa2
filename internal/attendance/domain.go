package attendance

// Attendance is one member's standing for one event. A record exists lazily:
// until the member or an officer first touches it, the zero value stands in.
type Attendance struct {
	Member    string
	Event     int64
	RSVP      *bool
	Confirmed bool
	Excused   bool
	DidAttend bool
}

// State is the derived position in the attendance lifecycle.
type State string

const (
	StateNotResponded    State = "not_responded"
	StateRSVPed          State = "rsvped"
	StateConfirmed       State = "confirmed"
	StateAttended        State = "attended"
	StateExcusedAbsent   State = "excused"
	StateUnexcusedAbsent State = "unexcused"
)

// State derives the member's position from the stored flags. eventPast tells
// whether the event's call time has passed; an unresolved record only becomes
// an unexcused absence once the event is over.
func (a Attendance) State(eventPast bool) State {
	switch {
	case a.DidAttend:
		return StateAttended
	case a.Excused:
		return StateExcusedAbsent
	case eventPast:
		return StateUnexcusedAbsent
	case a.Confirmed:
		return StateConfirmed
	case a.RSVP != nil:
		return StateRSVPed
	default:
		return StateNotResponded
	}
}
