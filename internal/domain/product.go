package domain

import "time"

// Product is the slice of catalog data the engine reads, plus the stock
// count it owns. All prices are integer cents. Stock is mutated only
// through the inventory ledger's reservation operations; Version is the
// optimistic concurrency counter backing the CAS loop.
type Product struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	FullPriceCents  int64     `json:"full_price_cents"`
	BulkPriceCents  int64     `json:"bulk_price_cents"`
	ShippingCents   int64     `json:"shipping_cents"`
	StripeAccountID string    `json:"stripe_account_id,omitempty"`
	Stock           int       `json:"stock"`
	Version         int64     `json:"version"`
	UpdatedAt       time.Time `json:"updated_at"`
}
