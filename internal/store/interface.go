package store

import (
	"context"
	"errors"
	"time"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrVersionConflict   = errors.New("version conflict")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Store is the durable source of truth for sessions, products, and orders.
// A crashed coordinator loses only actor memory; everything needed to
// reconstruct it lives here.
type Store interface {
	// Products
	CreateProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	// UpdateProductStockCAS sets the product's stock to newStock only if the
	// stored version equals expectedVersion, bumping the version. Returns
	// ErrVersionConflict when another writer got there first.
	UpdateProductStockCAS(ctx context.Context, id string, expectedVersion int64, newStock int) error

	// Sessions
	SaveSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// Orders
	CreateOrder(ctx context.Context, o *domain.PurchaseOrder) error
	GetOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	// TransitionOrder moves an order from one status to another, appending
	// an audit event. Returns ErrInvalidTransition if the order is not in
	// the expected from status or the step is not legal.
	TransitionOrder(ctx context.Context, id string, from, to domain.OrderStatus, note string) error
	// ListOrdersInStatusBefore returns orders sitting in the given status
	// whose last update is older than the cutoff. Used by reconciliation.
	ListOrdersInStatusBefore(ctx context.Context, status domain.OrderStatus, cutoff time.Time) ([]domain.PurchaseOrder, error)
	OrderEvents(ctx context.Context, orderID string) ([]domain.OrderEvent, error)

	Close() error
}
