package store

import (
	"context"
	"sync"
	"time"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
)

// MemoryStore implements Store with in-process maps. Used in tests and
// local development; it honors the same CAS and transition semantics as
// the GORM store.
type MemoryStore struct {
	mu       sync.Mutex
	products map[string]domain.Product
	sessions map[string]domain.Session
	orders   map[string]domain.PurchaseOrder
	events   map[string][]domain.OrderEvent
	eventSeq uint
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]domain.Product),
		sessions: make(map[string]domain.Session),
		orders:   make(map[string]domain.PurchaseOrder),
		events:   make(map[string][]domain.OrderEvent),
	}
}

func (s *MemoryStore) CreateProduct(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now()
	s.products[p.ID] = *p
	return nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := p
	return &cp, nil
}

func (s *MemoryStore) UpdateProductStockCAS(_ context.Context, id string, expectedVersion int64, newStock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return ErrProductNotFound
	}
	if p.Version != expectedVersion {
		return ErrVersionConflict
	}
	p.Stock = newStock
	p.Version = expectedVersion + 1
	p.UpdatedAt = time.Now()
	s.products[id] = p
	return nil
}

func (s *MemoryStore) SaveSession(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := sess
	return &cp, nil
}

func (s *MemoryStore) CreateOrder(_ context.Context, o *domain.PurchaseOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	s.orders[o.ID] = *o
	s.appendEventLocked(o.ID, "", o.Status, "created")
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := o
	return &cp, nil
}

func (s *MemoryStore) TransitionOrder(_ context.Context, id string, from, to domain.OrderStatus, note string) error {
	if !domain.ValidOrderTransition(from, to) {
		return ErrInvalidTransition
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Status != from {
		return ErrInvalidTransition
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	s.orders[id] = o
	s.appendEventLocked(id, from, to, note)
	return nil
}

func (s *MemoryStore) ListOrdersInStatusBefore(_ context.Context, status domain.OrderStatus, cutoff time.Time) ([]domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PurchaseOrder
	for _, o := range s.orders {
		if o.Status == status && o.UpdatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *MemoryStore) OrderEvents(_ context.Context, orderID string) ([]domain.OrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events[orderID]
	out := make([]domain.OrderEvent, len(events))
	copy(out, events)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) appendEventLocked(orderID string, from, to domain.OrderStatus, note string) {
	s.eventSeq++
	s.events[orderID] = append(s.events[orderID], domain.OrderEvent{
		ID:        s.eventSeq,
		OrderID:   orderID,
		From:      from,
		To:        to,
		Note:      note,
		CreatedAt: time.Now(),
	})
}
