package booking

// transitions is the explicit lifecycle table. Completed and Cancelled are
// terminal. There are no automatic transitions anywhere in the core; every
// change is an external call.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusCheckedIn, StatusCancelled},
	StatusCheckedIn:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether from -> to is an allowed lifecycle step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist from s.
func Terminal(s Status) bool {
	return len(transitions[s]) == 0
}

// Reschedulable reports whether an appointment in status s may still be moved
// to a different interval.
func Reschedulable(s Status) bool {
	return s == StatusScheduled || s == StatusCheckedIn
}
