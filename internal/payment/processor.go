package payment

import (
	"context"
)

// Outcome is the result of a capture attempt or status query.
type Outcome string

const (
	OutcomeCaptured Outcome = "captured"
	OutcomeDeclined Outcome = "declined"
	// OutcomeUnknown means the processor could not say either way, usually
	// a timeout. The caller must hand the order to reconciliation.
	OutcomeUnknown Outcome = "unknown"
)

// CaptureRequest asks the processor to charge a buyer for an order.
type CaptureRequest struct {
	OrderID         string `json:"order_id"`
	ViewerID        string `json:"viewer_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	StripeAccountID string `json:"stripe_account_id,omitempty"`
}

// Processor is the external payment collaborator. Capture is expected to
// respect the context deadline; when it cannot determine an outcome in
// time it returns OutcomeUnknown, never an assumption of success.
type Processor interface {
	Capture(ctx context.Context, req CaptureRequest) (Outcome, error)
	// QueryStatus resolves the eventual outcome of a previous capture
	// attempt, used by reconciliation.
	QueryStatus(ctx context.Context, orderID string) (Outcome, error)
}
