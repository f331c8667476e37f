package models

import (
	"database/sql/driver"
	"fmt"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusConfirmed ReservationStatus = "Confirmed"
	StatusCheckedIn ReservationStatus = "Checked-In"
	StatusCompleted ReservationStatus = "Completed"
	StatusCancelled ReservationStatus = "Cancelled"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []ReservationStatus{StatusConfirmed, StatusCheckedIn, StatusCompleted, StatusCancelled}

func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCheckedIn, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the reservation holds its room.
func (s ReservationStatus) Active() bool {
	switch s {
	case StatusConfirmed, StatusCheckedIn:
		return true
	case StatusCompleted, StatusCancelled:
		return false
	}
	return false
}

func (s ReservationStatus) String() string { return string(s) }

// Value rejects anything outside the closed set so a bad status never reaches the table.
func (s ReservationStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid reservation status %q", string(s))
	}
	return string(s), nil
}

func (s *ReservationStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into ReservationStatus", src)
	}
	st := ReservationStatus(raw)
	if !st.Valid() {
		return fmt.Errorf("invalid reservation status %q", raw)
	}
	*s = st
	return nil
}

// ParseStatus accepts a status name as stored.
func ParseStatus(raw string) (ReservationStatus, bool) {
	st := ReservationStatus(raw)
	return st, st.Valid()
}

// Transition names a lifecycle move.
type Transition string

const (
	TransitionCheckIn       Transition = "check_in"
	TransitionUndoCheckIn   Transition = "undo_check_in"
	TransitionCompleteEarly Transition = "complete_early"
	TransitionUndoComplete  Transition = "undo_complete"
	TransitionCancel        Transition = "cancel"
	TransitionUndoCancel    Transition = "undo_cancel"
	TransitionSweepCheckIn  Transition = "sweep_check_in"
	TransitionSweepCheckOut Transition = "sweep_check_out"
	TransitionMaintenance   Transition = "maintenance"
)

// Apply returns the status reached by t from s. ok is false when t is not
// allowed from s.
func (s ReservationStatus) Apply(t Transition) (next ReservationStatus, ok bool) {
	switch t {
	case TransitionCheckIn, TransitionSweepCheckIn:
		if s == StatusConfirmed {
			return StatusCheckedIn, true
		}
	case TransitionUndoCheckIn:
		if s == StatusCheckedIn {
			return StatusConfirmed, true
		}
	case TransitionCompleteEarly:
		if s == StatusCheckedIn {
			return StatusCompleted, true
		}
	case TransitionSweepCheckOut:
		if s == StatusConfirmed || s == StatusCheckedIn {
			return StatusCompleted, true
		}
	case TransitionUndoComplete:
		if s == StatusCompleted {
			return StatusCheckedIn, true
		}
	case TransitionCancel:
		if s == StatusConfirmed {
			return StatusCancelled, true
		}
	case TransitionUndoCancel:
		if s == StatusCancelled {
			return StatusConfirmed, true
		}
	case TransitionMaintenance:
		if s.Active() {
			return StatusCancelled, true
		}
	}
	return s, false
}

// FreesRoom reports whether reaching the target of t releases the room.
func (t Transition) FreesRoom() bool {
	switch t {
	case TransitionCompleteEarly, TransitionSweepCheckOut, TransitionCancel, TransitionMaintenance:
		return true
	}
	return false
}

// Label is the human wording used in error messages.
func (t Transition) Label() string {
	switch t {
	case TransitionCheckIn, TransitionSweepCheckIn:
		return "check in"
	case TransitionUndoCheckIn:
		return "undo check-in for"
	case TransitionCompleteEarly, TransitionSweepCheckOut:
		return "complete"
	case TransitionUndoComplete:
		return "undo completion for"
	case TransitionCancel, TransitionMaintenance:
		return "cancel"
	case TransitionUndoCancel:
		return "undo cancellation for"
	}
	return string(t)
}
