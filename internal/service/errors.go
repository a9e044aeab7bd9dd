package service

import "errors"

var (
	// ErrInvalidTransition is returned when a booking is not in a state that can be confirmed.
	ErrInvalidTransition = errors.New("booking status does not allow confirmation")
	// ErrConfirmationInProgress is returned when another confirmation of the same booking holds the lock.
	ErrConfirmationInProgress = errors.New("confirmation already in progress")
)
