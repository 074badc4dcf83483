package purchase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/buyer"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/inventory"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/payment"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/store"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/streak"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/log"
)

// SessionReader exposes the session fields the pipeline gates on.
type SessionReader interface {
	Session(ctx context.Context, sessionID string) (domain.Session, error)
}

// CompletedBroadcaster emits the display-only purchase banner.
type CompletedBroadcaster interface {
	PurchaseCompleted(ctx context.Context, sessionID, viewerDisplayName, productTitle string)
}

// Config bounds the capture stage.
type Config struct {
	// CaptureTimeout caps each payment capture call. Past it the outcome
	// is unknown, never assumed.
	CaptureTimeout time.Duration
	// CaptureConcurrency caps in-flight captures across all sessions.
	CaptureConcurrency int64
}

// Coordinator runs the buy pipeline: validate, price, reserve, capture,
// finalize. Reservation before capture plus compensation on decline keeps
// stock exact without a two-phase commit across the payment boundary.
type Coordinator struct {
	store     store.Store
	ledger    *inventory.Ledger
	streaks   *streak.Engine
	processor payment.Processor
	profiles  buyer.ProfileChecker
	sessions  SessionReader
	bus       CompletedBroadcaster

	captureTimeout time.Duration
	captureSem     *semaphore.Weighted
}

// NewCoordinator wires the buy pipeline. bus may be nil.
func NewCoordinator(
	st store.Store,
	ledger *inventory.Ledger,
	streaks *streak.Engine,
	processor payment.Processor,
	profiles buyer.ProfileChecker,
	sessions SessionReader,
	bus CompletedBroadcaster,
	cfg Config,
) *Coordinator {
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = 10 * time.Second
	}
	if cfg.CaptureConcurrency <= 0 {
		cfg.CaptureConcurrency = 32
	}
	return &Coordinator{
		store:          st,
		ledger:         ledger,
		streaks:        streaks,
		processor:      processor,
		profiles:       profiles,
		sessions:       sessions,
		bus:            bus,
		captureTimeout: cfg.CaptureTimeout,
		captureSem:     semaphore.NewWeighted(cfg.CaptureConcurrency),
	}
}

// Buy executes one purchase attempt. On ErrPaymentUnknown the order stays
// Reserved for the reconciliation sweep; every other error leaves stock
// exactly as it was before the call.
func (c *Coordinator) Buy(ctx context.Context, sessionID, viewerID, productID string, quantity int) (*domain.PurchaseOrder, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity %d", domain.ErrInvalidCommand, quantity)
	}

	sess, err := c.sessions.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Active() {
		return nil, domain.ErrSessionNotActive
	}

	// Profile gate runs before reservation so stock is never locked for a
	// buyer who cannot check out.
	profile, err := c.profiles.Profile(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("buyer profile check failed: %w", err)
	}
	if !profile.Ready() {
		return nil, domain.ErrMissingBuyerSetup
	}

	product, err := c.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	// Optimistic fast-fail; the reservation below is authoritative.
	if product.Stock < quantity {
		return nil, domain.ErrOutOfStock
	}

	discount := c.streaks.DiscountPercent(sessionID, viewerID, sess.DiscountsEnabled)
	unitPrice := streak.UnitPriceCents(product.FullPriceCents, discount)

	if _, err := c.ledger.Reserve(ctx, productID, quantity); err != nil {
		return nil, err
	}

	order := &domain.PurchaseOrder{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		ViewerID:        viewerID,
		ProductID:       productID,
		Quantity:        quantity,
		UnitPriceCents:  unitPrice,
		DiscountPercent: discount,
		Status:          domain.OrderReserved,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if err := c.store.CreateOrder(ctx, order); err != nil {
		// The reservation must not leak when the order record cannot be
		// written.
		c.release(ctx, productID, quantity)
		return nil, err
	}

	outcome := c.capture(ctx, order, product)
	switch outcome {
	case payment.OutcomeCaptured:
		if err := c.store.TransitionOrder(ctx, order.ID, domain.OrderReserved, domain.OrderCaptured, "capture succeeded"); err != nil {
			return nil, err
		}
		order.Status = domain.OrderCaptured
		c.streaks.RecordCapture(sessionID, viewerID)
		if c.bus != nil {
			c.bus.PurchaseCompleted(ctx, sessionID, profile.DisplayName, product.Title)
		}
		log.Ctx(ctx).Info().
			Str(log.FieldOrderID, order.ID).
			Str(log.FieldProductID, productID).
			Int("quantity", quantity).
			Int64("amount_cents", order.TotalCents(product.ShippingCents)).
			Msg("purchase captured")
		return order, nil

	case payment.OutcomeDeclined:
		// Release before finalizing. A failed release leaves the order
		// Reserved, which hands the compensation to the reconciliation
		// sweep; transitioning first would strand the stock with no retry
		// path, since the sweep only scans Reserved orders.
		if err := c.ledger.Release(ctx, productID, quantity); err != nil {
			log.Ctx(ctx).Error().Err(err).
				Str(log.FieldOrderID, order.ID).
				Str(log.FieldProductID, productID).
				Int("quantity", quantity).
				Msg("compensating release failed, order left for reconciliation")
			return nil, domain.ErrPaymentDeclined
		}
		if err := c.store.TransitionOrder(ctx, order.ID, domain.OrderReserved, domain.OrderFailed, "capture declined"); err != nil {
			return nil, err
		}
		order.Status = domain.OrderFailed
		return nil, domain.ErrPaymentDeclined

	default:
		// Outcome unknown: the order stays Reserved and the stock stays
		// held until reconciliation learns the truth. Releasing here could
		// oversell if the capture actually went through.
		log.Ctx(ctx).Warn().
			Str(log.FieldOrderID, order.ID).
			Msg("capture outcome unknown, order handed to reconciliation")
		return nil, domain.ErrPaymentUnknown
	}
}

func (c *Coordinator) capture(ctx context.Context, order *domain.PurchaseOrder, product *domain.Product) payment.Outcome {
	if err := c.captureSem.Acquire(ctx, 1); err != nil {
		return payment.OutcomeUnknown
	}
	defer c.captureSem.Release(1)

	captureCtx, cancel := context.WithTimeout(ctx, c.captureTimeout)
	defer cancel()

	outcome, err := c.processor.Capture(captureCtx, payment.CaptureRequest{
		OrderID:         order.ID,
		ViewerID:        order.ViewerID,
		AmountCents:     order.TotalCents(product.ShippingCents),
		Currency:        "usd",
		StripeAccountID: product.StripeAccountID,
	})
	if err != nil {
		return payment.OutcomeUnknown
	}
	return outcome
}

func (c *Coordinator) release(ctx context.Context, productID string, quantity int) {
	if err := c.ledger.Release(ctx, productID, quantity); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str(log.FieldProductID, productID).
			Int("quantity", quantity).
			Msg("compensating release failed")
	}
}
