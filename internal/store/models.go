package store

import (
	"time"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/database"
)

// ProductModel is the GORM model for products.
type ProductModel struct {
	ID              string `gorm:"primaryKey;type:varchar(64)"`
	Title           string `gorm:"type:varchar(255)"`
	FullPriceCents  int64
	BulkPriceCents  int64
	ShippingCents   int64
	StripeAccountID string `gorm:"type:varchar(128)"`
	Stock           int
	Version         int64
	UpdatedAt       time.Time
}

func (ProductModel) TableName() string { return "products" }

func (m *ProductModel) ToDomain() *domain.Product {
	return &domain.Product{
		ID:              m.ID,
		Title:           m.Title,
		FullPriceCents:  m.FullPriceCents,
		BulkPriceCents:  m.BulkPriceCents,
		ShippingCents:   m.ShippingCents,
		StripeAccountID: m.StripeAccountID,
		Stock:           m.Stock,
		Version:         m.Version,
		UpdatedAt:       m.UpdatedAt,
	}
}

func ProductToModel(p *domain.Product) *ProductModel {
	return &ProductModel{
		ID:              p.ID,
		Title:           p.Title,
		FullPriceCents:  p.FullPriceCents,
		BulkPriceCents:  p.BulkPriceCents,
		ShippingCents:   p.ShippingCents,
		StripeAccountID: p.StripeAccountID,
		Stock:           p.Stock,
		Version:         p.Version,
		UpdatedAt:       p.UpdatedAt,
	}
}

// SessionModel is the GORM model for sessions.
type SessionModel struct {
	ID               string `gorm:"primaryKey;type:varchar(64)"`
	BroadcasterID    string `gorm:"type:varchar(64);index"`
	State            string `gorm:"type:varchar(16)"`
	CurrentProductID string `gorm:"type:varchar(64)"`
	RotationInterval int
	Countdown        *int
	AutoRestart      bool
	Queue            database.StringArray `gorm:"type:text"`
	DiscountsEnabled bool
	Version          uint64
	CreatedAt        time.Time
	EndedAt          *time.Time
}

func (SessionModel) TableName() string { return "sessions" }

func (m *SessionModel) ToDomain() *domain.Session {
	return &domain.Session{
		ID:               m.ID,
		BroadcasterID:    m.BroadcasterID,
		State:            domain.SessionState(m.State),
		CurrentProductID: m.CurrentProductID,
		RotationInterval: m.RotationInterval,
		Countdown:        m.Countdown,
		AutoRestart:      m.AutoRestart,
		Queue:            m.Queue,
		DiscountsEnabled: m.DiscountsEnabled,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		EndedAt:          m.EndedAt,
	}
}

func SessionToModel(s *domain.Session) *SessionModel {
	return &SessionModel{
		ID:               s.ID,
		BroadcasterID:    s.BroadcasterID,
		State:            string(s.State),
		CurrentProductID: s.CurrentProductID,
		RotationInterval: s.RotationInterval,
		Countdown:        s.Countdown,
		AutoRestart:      s.AutoRestart,
		Queue:            s.Queue,
		DiscountsEnabled: s.DiscountsEnabled,
		Version:          s.Version,
		CreatedAt:        s.CreatedAt,
		EndedAt:          s.EndedAt,
	}
}

// OrderModel is the GORM model for purchase orders.
type OrderModel struct {
	ID              string `gorm:"primaryKey;type:varchar(64)"`
	SessionID       string `gorm:"type:varchar(64);index"`
	ViewerID        string `gorm:"type:varchar(64);index"`
	ProductID       string `gorm:"type:varchar(64);index"`
	Quantity        int
	UnitPriceCents  int64
	DiscountPercent int
	Status          string `gorm:"type:varchar(16);index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (OrderModel) TableName() string { return "purchase_orders" }

func (m *OrderModel) ToDomain() *domain.PurchaseOrder {
	return &domain.PurchaseOrder{
		ID:              m.ID,
		SessionID:       m.SessionID,
		ViewerID:        m.ViewerID,
		ProductID:       m.ProductID,
		Quantity:        m.Quantity,
		UnitPriceCents:  m.UnitPriceCents,
		DiscountPercent: m.DiscountPercent,
		Status:          domain.OrderStatus(m.Status),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func OrderToModel(o *domain.PurchaseOrder) *OrderModel {
	return &OrderModel{
		ID:              o.ID,
		SessionID:       o.SessionID,
		ViewerID:        o.ViewerID,
		ProductID:       o.ProductID,
		Quantity:        o.Quantity,
		UnitPriceCents:  o.UnitPriceCents,
		DiscountPercent: o.DiscountPercent,
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// OrderEventModel is one append-only audit row per order status transition.
type OrderEventModel struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	OrderID    string `gorm:"type:varchar(64);index"`
	FromStatus string `gorm:"type:varchar(16)"`
	ToStatus   string `gorm:"type:varchar(16)"`
	Note       string `gorm:"type:varchar(255)"`
	CreatedAt  time.Time
}

func (OrderEventModel) TableName() string { return "order_events" }

func (m *OrderEventModel) ToDomain() domain.OrderEvent {
	return domain.OrderEvent{
		ID:        m.ID,
		OrderID:   m.OrderID,
		From:      domain.OrderStatus(m.FromStatus),
		To:        domain.OrderStatus(m.ToStatus),
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
	}
}

// Models returns all GORM models for auto-migration.
func Models() []interface{} {
	return []interface{}{
		&ProductModel{},
		&SessionModel{},
		&OrderModel{},
		&OrderEventModel{},
	}
}
