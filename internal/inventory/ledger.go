package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/store"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/log"
)

// ProductStore is the slice of the store the ledger needs.
type ProductStore interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpdateProductStockCAS(ctx context.Context, id string, expectedVersion int64, newStock int) error
}

// DepletedFunc is invoked when a reservation drains a product to zero stock.
type DepletedFunc func(productID string)

// Ledger is the single authority for stock mutation. Reserve and Release
// are linearizable per product via the store's version CAS; conflicts are
// retried internally before surfacing.
type Ledger struct {
	products   ProductStore
	maxRetries int
	onDepleted DepletedFunc
}

// NewLedger creates a ledger. maxRetries bounds the internal CAS retry loop.
func NewLedger(products ProductStore, maxRetries int) *Ledger {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Ledger{products: products, maxRetries: maxRetries}
}

// OnDepleted registers the callback fired when a product reaches zero stock.
// Call before the ledger starts serving requests.
func (l *Ledger) OnDepleted(fn DepletedFunc) {
	l.onDepleted = fn
}

// Stock returns the current (optimistic) stock count for a product.
func (l *Ledger) Stock(ctx context.Context, productID string) (int, error) {
	p, err := l.products.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	return p.Stock, nil
}

// Reserve atomically decrements stock by quantity. It returns the product
// as read just before the winning CAS. ErrOutOfStock means the stock is
// authoritatively insufficient; ErrConflict means retries exhausted under
// contention and the caller may try again.
func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int) (*domain.Product, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity %d", domain.ErrOutOfStock, quantity)
	}

	for attempt := 0; attempt < l.maxRetries; attempt++ {
		p, err := l.products.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if p.Stock < quantity {
			return nil, domain.ErrOutOfStock
		}

		newStock := p.Stock - quantity
		err = l.products.UpdateProductStockCAS(ctx, productID, p.Version, newStock)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Ctx(ctx).Debug().
			Str(log.FieldProductID, productID).
			Int("quantity", quantity).
			Int("stock_after", newStock).
			Msg("stock reserved")

		if newStock == 0 && l.onDepleted != nil {
			l.onDepleted(productID)
		}
		return p, nil
	}

	return nil, domain.ErrConflict
}

// Release restores previously reserved stock after a failed capture.
// Compensation must not lose inventory, so retries here are bounded only
// by the same CAS loop; a conflict on every attempt still surfaces.
func (l *Ledger) Release(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return nil
	}

	for attempt := 0; attempt < l.maxRetries; attempt++ {
		p, err := l.products.GetProduct(ctx, productID)
		if err != nil {
			return err
		}

		err = l.products.UpdateProductStockCAS(ctx, productID, p.Version, p.Stock+quantity)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return err
		}

		log.Ctx(ctx).Debug().
			Str(log.FieldProductID, productID).
			Int("quantity", quantity).
			Int("stock_after", p.Stock+quantity).
			Msg("stock released")
		return nil
	}

	return domain.ErrConflict
}
