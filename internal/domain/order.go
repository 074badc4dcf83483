package domain

import (
	"fmt"
	"time"
)

// OrderStatus is the purchase order lifecycle state. Transitions are
// append-only: every attempt stays auditable and replay-safe.
type OrderStatus string

const (
	// OrderReserved: stock decremented, payment outcome pending.
	OrderReserved OrderStatus = "reserved"
	// OrderCaptured: payment captured, purchase final.
	OrderCaptured OrderStatus = "captured"
	// OrderFailed: payment declined, stock released.
	OrderFailed OrderStatus = "failed"
	// OrderReconciled: outcome resolved by the reconciliation sweep rather
	// than the original capture call.
	OrderReconciled OrderStatus = "reconciled"
)

// ValidOrderTransition reports whether from → to is a legal lifecycle step.
func ValidOrderTransition(from, to OrderStatus) bool {
	switch from {
	case OrderReserved:
		return to == OrderCaptured || to == OrderFailed
	case OrderFailed:
		return to == OrderReconciled
	default:
		return false
	}
}

// PurchaseOrder records a single buy attempt.
type PurchaseOrder struct {
	ID              string      `json:"id"`
	SessionID       string      `json:"session_id"`
	ViewerID        string      `json:"viewer_id"`
	ProductID       string      `json:"product_id"`
	Quantity        int         `json:"quantity"`
	UnitPriceCents  int64       `json:"unit_price_cents"`
	DiscountPercent int         `json:"discount_percent"`
	Status          OrderStatus `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// TotalCents is the amount sent to the payment processor:
// (unit price + shipping) * quantity.
func (o *PurchaseOrder) TotalCents(shippingCents int64) int64 {
	return (o.UnitPriceCents + shippingCents) * int64(o.Quantity)
}

// OrderEvent is one row of the order audit trail, appended on every
// status transition.
type OrderEvent struct {
	ID        uint        `json:"id"`
	OrderID   string      `json:"order_id"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	Note      string      `json:"note,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

func (e OrderEvent) String() string {
	return fmt.Sprintf("%s: %s -> %s", e.OrderID, e.From, e.To)
}
