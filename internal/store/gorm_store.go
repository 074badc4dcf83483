package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/log"
)

// GormStore implements Store using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	l := log.Ctx(ctx)

	model := ProductToModel(p)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Str(log.FieldProductID, p.ID).Msg("failed to create product")
		return err
	}
	p.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *GormStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var model ProductModel
	result := s.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		log.Ctx(ctx).Error().Err(result.Error).Str(log.FieldProductID, id).Msg("failed to get product")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// UpdateProductStockCAS is the single write path for stock. The WHERE clause
// on version makes the decrement linearizable per product: concurrent
// writers race on RowsAffected, not on the value they read.
func (s *GormStore) UpdateProductStockCAS(ctx context.Context, id string, expectedVersion int64, newStock int) error {
	result := s.db.WithContext(ctx).Model(&ProductModel{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"stock":   newStock,
			"version": expectedVersion + 1,
		})
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Str(log.FieldProductID, id).Msg("stock CAS failed")
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Either the product vanished or another writer bumped the version.
		var count int64
		if err := s.db.WithContext(ctx).Model(&ProductModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrProductNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (s *GormStore) SaveSession(ctx context.Context, sess *domain.Session) error {
	l := log.Ctx(ctx)

	model := SessionToModel(sess)
	err := s.db.WithContext(ctx).Save(model).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldSessionID, sess.ID).Msg("failed to save session")
	}
	return err
}

func (s *GormStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var model SessionModel
	result := s.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

func (s *GormStore) CreateOrder(ctx context.Context, o *domain.PurchaseOrder) error {
	l := log.Ctx(ctx)

	model := OrderToModel(o)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return tx.Create(&OrderEventModel{
			OrderID:  o.ID,
			ToStatus: string(o.Status),
			Note:     "created",
		}).Error
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldOrderID, o.ID).Msg("failed to create order")
		return err
	}
	o.CreatedAt = model.CreatedAt
	o.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *GormStore) GetOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	var model OrderModel
	result := s.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

func (s *GormStore) TransitionOrder(ctx context.Context, id string, from, to domain.OrderStatus, note string) error {
	l := log.Ctx(ctx)

	if !domain.ValidOrderTransition(from, to) {
		return ErrInvalidTransition
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&OrderModel{}).
			Where("id = ? AND status = ?", id, string(from)).
			Updates(map[string]interface{}{
				"status":     string(to),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&OrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrOrderNotFound
			}
			return ErrInvalidTransition
		}
		return tx.Create(&OrderEventModel{
			OrderID:    id,
			FromStatus: string(from),
			ToStatus:   string(to),
			Note:       note,
		}).Error
	})
	if err != nil {
		if !errors.Is(err, ErrInvalidTransition) && !errors.Is(err, ErrOrderNotFound) {
			l.Error().Err(err).Str(log.FieldOrderID, id).Msg("order transition failed")
		}
		return err
	}

	l.Debug().Str(log.FieldOrderID, id).Str("from", string(from)).Str("to", string(to)).Msg("order transitioned")
	return nil
}

func (s *GormStore) ListOrdersInStatusBefore(ctx context.Context, status domain.OrderStatus, cutoff time.Time) ([]domain.PurchaseOrder, error) {
	var models []OrderModel
	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", string(status), cutoff).
		Order("updated_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	orders := make([]domain.PurchaseOrder, len(models))
	for i, m := range models {
		orders[i] = *m.ToDomain()
	}
	return orders, nil
}

func (s *GormStore) OrderEvents(ctx context.Context, orderID string) ([]domain.OrderEvent, error) {
	var models []OrderEventModel
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	events := make([]domain.OrderEvent, len(models))
	for i, m := range models {
		events[i] = m.ToDomain()
	}
	return events, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
