package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"hotel-reservation/models"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidInput           = errors.New("invalid input")
	ErrRoomUnavailable        = errors.New("room is not available")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrRateLimited            = errors.New("too many attempts")
	ErrMissingReason          = errors.New("a cancellation reason is required")
	ErrNotCancellable         = errors.New("reservation can no longer be cancelled")
	ErrRoomNoLongerAvailable  = errors.New("room is no longer available")
	ErrAlreadyRated           = errors.New("reservation was already rated")
	ErrNotRateable            = errors.New("only completed reservations can be rated")
	ErrRoomInUse              = errors.New("room is in use by an active reservation")
	ErrInvalidDates           = errors.New("check-out must be at least one night after check-in")
	ErrInvalidGuestCount      = errors.New("number of guests exceeds what the room allows")
	ErrInvalidRating          = errors.New("rating must be between 1 and 5")
	ErrAlreadyPaid            = errors.New("reservation is already paid")
	ErrNotCashPayment         = errors.New("reservation is not a cash payment")
	ErrMissingReceipt         = errors.New("a receipt number is required")
	ErrDuplicateRoomNumber    = errors.New("room number already exists")
)

// TransitionError reports a lifecycle move that the current status forbids.
type TransitionError struct {
	Op   models.Transition
	From models.ReservationStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s reservation with status %s", e.Op.Label(), e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// RateLimitError carries how long the caller should wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many attempts, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var merr *mysql.MySQLError
	if errors.As(err, &merr) {
		return merr.Number == 1062
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
