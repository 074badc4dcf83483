package domain

import "errors"

// Error taxonomy surfaced to callers. Handlers map these onto HTTP codes;
// everything else wraps them with context.
var (
	// ErrOutOfStock is returned when a reservation cannot be satisfied.
	ErrOutOfStock = errors.New("out of stock")

	// ErrConflict is returned when version conflicts exhausted the ledger's
	// internal retries. Callers may simply retry the request.
	ErrConflict = errors.New("conflict")

	// ErrPaymentDeclined is returned when the payment processor declined
	// the capture. The reserved stock has been released.
	ErrPaymentDeclined = errors.New("payment declined")

	// ErrPaymentUnknown means the capture outcome could not be determined
	// in time. The order stays Reserved and is handed to reconciliation;
	// it must never be shown to the user as a final failure.
	ErrPaymentUnknown = errors.New("payment outcome unknown")

	// ErrSessionNotActive is returned when an operation targets a session
	// that has ended or never started.
	ErrSessionNotActive = errors.New("session not active")

	// ErrMissingBuyerSetup is returned when the viewer has no shipping or
	// payment profile. Checked before reservation so stock is never locked
	// for a buyer who cannot check out.
	ErrMissingBuyerSetup = errors.New("missing buyer setup")

	// ErrInvalidCommand is returned for broadcaster commands that are not
	// valid in the session's current state.
	ErrInvalidCommand = errors.New("invalid command")
)
