package appointment

import "fmt"

// Event is an action that may move an appointment through its lifecycle.
type Event string

const (
	EventDoctorConfirm     Event = "doctor_confirm"
	EventDoctorReject      Event = "doctor_reject"
	EventCheckIn           Event = "check_in"
	EventMarkReady         Event = "mark_ready"
	EventStartConsultation Event = "start_consultation"
	EventComplete          Event = "complete"
	EventNoShow            Event = "no_show"
	EventCancel            Event = "cancel"
)

// transitions is the full lifecycle graph. A status absent from the map, or
// an event absent from its row, is an illegal move. Terminal statuses have
// no row.
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventCancel: StatusCancelled,
	},
	StatusPendingDoctorConfirmation: {
		EventDoctorConfirm: StatusScheduled,
		EventDoctorReject:  StatusCancelled,
		EventCancel:        StatusCancelled,
	},
	StatusScheduled: {
		EventCheckIn: StatusCheckedIn,
		EventNoShow:  StatusCancelled,
		EventCancel:  StatusCancelled,
	},
	StatusCheckedIn: {
		EventMarkReady: StatusReadyForConsultation,
		EventCancel:    StatusCancelled,
	},
	StatusReadyForConsultation: {
		EventStartConsultation: StatusInConsultation,
	},
	StatusInConsultation: {
		EventComplete: StatusCompleted,
	},
}

// TransitionError reports an illegal lifecycle move. It matches
// ErrInvalidTransition under errors.Is so the HTTP layer can map it without
// losing the state detail.
type TransitionError struct {
	Current Status
	Event   Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot apply %s: appointment is %s", e.Event, e.Current)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Transition validates a lifecycle move and returns the next status. It is
// pure: no I/O, no clock, fully deterministic.
func Transition(current Status, ev Event) (Status, error) {
	row, ok := transitions[current]
	if !ok {
		return "", &TransitionError{Current: current, Event: ev}
	}
	next, ok := row[ev]
	if !ok {
		return "", &TransitionError{Current: current, Event: ev}
	}
	return next, nil
}

// CanTransition reports whether ev is legal from current.
func CanTransition(current Status, ev Event) bool {
	_, err := Transition(current, ev)
	return err == nil
}
