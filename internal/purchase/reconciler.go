package purchase

import (
	"context"
	"time"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/inventory"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/payment"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/store"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/log"
)

// Reconciler resolves orders stranded in Reserved when a capture call died
// without an outcome. It asks the processor for the definitive result and
// finalizes the order, releasing stock only on a confirmed decline.
type Reconciler struct {
	store     store.Store
	ledger    *inventory.Ledger
	processor payment.Processor

	interval time.Duration
	minAge   time.Duration
}

// NewReconciler creates a reconciliation sweep. minAge keeps the sweep off
// orders whose capture call may still be in flight.
func NewReconciler(st store.Store, ledger *inventory.Ledger, processor payment.Processor, interval, minAge time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if minAge <= 0 {
		minAge = 2 * time.Minute
	}
	return &Reconciler{
		store:     st,
		ledger:    ledger,
		processor: processor,
		interval:  interval,
		minAge:    minAge,
	}
}

// Run sweeps on an interval until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.SweepOnce(ctx); err != nil {
				log.Ctx(ctx).Error().Err(err).Msg("reconciliation sweep failed")
			}
		}
	}
}

// SweepOnce reconciles every sufficiently old Reserved order.
func (r *Reconciler) SweepOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-r.minAge)
	stranded, err := r.store.ListOrdersInStatusBefore(ctx, domain.OrderReserved, cutoff)
	if err != nil {
		return err
	}

	for _, order := range stranded {
		r.reconcile(ctx, &order)
	}
	return nil
}

func (r *Reconciler) reconcile(ctx context.Context, order *domain.PurchaseOrder) {
	outcome, err := r.processor.QueryStatus(ctx, order.ID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldOrderID, order.ID).Msg("reconciliation status query failed")
		return
	}

	switch outcome {
	case payment.OutcomeCaptured:
		// The charge went through; the reserved stock is rightfully sold
		// and must not be released. Streak credit and the purchase banner
		// are realtime, session-scoped effects; by the time a stranded
		// capture is confirmed the session context is typically gone, so
		// only the order record is finalized.
		if err := r.store.TransitionOrder(ctx, order.ID, domain.OrderReserved, domain.OrderCaptured, "reconciled: capture confirmed"); err != nil {
			log.Ctx(ctx).Error().Err(err).Str(log.FieldOrderID, order.ID).Msg("reconciliation transition failed")
			return
		}
		log.Ctx(ctx).Info().Str(log.FieldOrderID, order.ID).Msg("stranded order reconciled as captured")

	case payment.OutcomeDeclined:
		// Release before finalizing: a failed release leaves the order
		// Reserved and the next sweep retries the compensation. There is a
		// single sweep goroutine, so releases do not race each other.
		if err := r.ledger.Release(ctx, order.ProductID, order.Quantity); err != nil {
			log.Ctx(ctx).Error().Err(err).Str(log.FieldOrderID, order.ID).Msg("reconciliation release failed")
			return
		}
		if err := r.store.TransitionOrder(ctx, order.ID, domain.OrderReserved, domain.OrderFailed, "reconciled: capture declined"); err != nil {
			log.Ctx(ctx).Error().Err(err).Str(log.FieldOrderID, order.ID).Msg("reconciliation transition failed")
			return
		}
		if err := r.store.TransitionOrder(ctx, order.ID, domain.OrderFailed, domain.OrderReconciled, "stock released"); err != nil {
			log.Ctx(ctx).Error().Err(err).Str(log.FieldOrderID, order.ID).Msg("reconciliation transition failed")
		}

	default:
		// Still unknown; leave Reserved for the next sweep.
		log.Ctx(ctx).Debug().Str(log.FieldOrderID, order.ID).Msg("capture outcome still unknown")
	}
}
