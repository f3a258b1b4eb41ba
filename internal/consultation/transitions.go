package consultation

import "fmt"

// adjacency lists the permitted (from -> to) moves. Any pair not listed is
// invalid, including every self-loop.
var adjacency = map[Status][]Status{
	StatusSubmitted:     {StatusPendingReview},
	StatusPendingReview: {StatusApproved, StatusNeedsMoreInfo, StatusRejected},
	StatusApproved:      {StatusScheduled},
	StatusScheduled:     {StatusConfirmed},
	StatusNeedsMoreInfo: {StatusSubmitted, StatusPendingReview},
}

// ValidTransition reports whether a consultation request may move from one
// status directly to another.
func ValidTransition(from, to Status) bool {
	for _, next := range adjacency[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports an illegal consultation-request move. Matches
// ErrInvalidTransition under errors.Is.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("consultation request cannot move from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// checkTransition returns a TransitionError unless from -> to is permitted.
func checkTransition(from, to Status) error {
	if !ValidTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
