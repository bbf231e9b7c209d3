package service

import (
	"context"
	"fmt"
	"time"

	"merchant-settlement/internal/core/ports"
	"merchant-settlement/pkg/metrics"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

const reconcileLockName = "settlement-reconcile"

// ReconcilerConfig controls the reconciliation cadence and batch sizes.
type ReconcilerConfig struct {
	Interval    time.Duration
	BatchSize   int
	GracePeriod time.Duration // completed orders younger than this are left to the checkout call
}

// ReconcileReport summarizes one pass.
type ReconcileReport struct {
	Skipped  bool // another replica held the lock
	Settled  int
	Credited int
}

// Reconciler repairs the two transient states settlement allows:
// completed orders without an invoice, and invoices whose profit credit is missing.
type Reconciler struct {
	orders     ports.OrderRepository
	invoices   ports.InvoiceRepository
	settlement ports.SettlementService
	lock       ports.JobLock
	cfg        ReconcilerConfig
	metrics    *metrics.SettlementMetrics
	log        zerolog.Logger
	now        func() time.Time
}

// NewReconciler creates a Reconciler. lock may be nil for single-instance deployments.
func NewReconciler(
	orders ports.OrderRepository,
	invoices ports.InvoiceRepository,
	settlement ports.SettlementService,
	lock ports.JobLock,
	cfg ReconcilerConfig,
	m *metrics.SettlementMetrics,
	log zerolog.Logger,
) *Reconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Reconciler{
		orders:     orders,
		invoices:   invoices,
		settlement: settlement,
		lock:       lock,
		cfg:        cfg,
		metrics:    m,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start runs a pass immediately and then on every interval until ctx is done.
func (r *Reconciler) Start(ctx context.Context) {
	r.log.Info().Dur("interval", r.cfg.Interval).Msg("reconciler started")
	r.runLogged(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("reconciler stopped")
			return
		case <-ticker.C:
			r.runLogged(ctx)
		}
	}
}

func (r *Reconciler) runLogged(ctx context.Context) {
	report, err := r.RunOnce(ctx)
	if err != nil {
		r.log.Error().Err(err).
			Int("settled", report.Settled).
			Int("credited", report.Credited).
			Msg("reconciliation pass finished with errors")
		return
	}
	if report.Skipped {
		r.log.Debug().Msg("reconciliation pass skipped, lock held elsewhere")
		return
	}
	r.log.Info().
		Int("settled", report.Settled).
		Int("credited", report.Credited).
		Msg("reconciliation pass complete")
}

// RunOnce performs a single reconciliation pass. Item failures are combined
// into the returned error; the pass keeps going past them.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	if r.lock != nil {
		owner, ok, err := r.lock.TryAcquire(ctx, reconcileLockName, r.cfg.Interval)
		if err != nil {
			// Every repair is idempotent, so running without the lock is safe.
			r.log.Warn().Err(err).Msg("reconcile lock unavailable, running unlocked")
		} else if !ok {
			report.Skipped = true
			return report, nil
		} else {
			defer func() {
				if err := r.lock.Release(context.WithoutCancel(ctx), reconcileLockName, owner); err != nil {
					r.log.Warn().Err(err).Msg("failed to release reconcile lock")
				}
			}()
		}
	}

	settled, errs := r.settleMissed(ctx)
	report.Settled = settled

	invoices, err := r.invoices.ListUncredited(ctx, r.cfg.BatchSize)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list uncredited invoices: %w", err))
	}
	for i := range invoices {
		if ctx.Err() != nil {
			break
		}
		inv := &invoices[i]
		if err := r.settlement.CreditProfit(ctx, inv); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("credit profit for order %s: %w", inv.OrderID, err))
			continue
		}
		report.Credited++
	}

	if err := ctx.Err(); err != nil {
		errs = multierr.Append(errs, err)
	}

	r.metrics.ObserveReconciliation(report.Settled, report.Credited, errs)
	return report, errs
}

// settleMissed walks every unsettled order past the grace period in batches.
// Orders that fail stay behind the cursor, so they cannot starve newer ones.
func (r *Reconciler) settleMissed(ctx context.Context) (int, error) {
	var (
		settled int
		errs    error
		after   *ports.OrderCursor
	)
	cutoff := r.now().Add(-r.cfg.GracePeriod)

	for ctx.Err() == nil {
		orders, err := r.orders.ListUnsettled(ctx, cutoff, after, r.cfg.BatchSize)
		if err != nil {
			return settled, multierr.Append(errs, fmt.Errorf("list unsettled orders: %w", err))
		}
		for i := range orders {
			if ctx.Err() != nil {
				break
			}
			order := &orders[i]
			if _, err := r.settlement.Settle(ctx, order); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("settle order %s: %w", order.ID, err))
				continue
			}
			settled++
		}
		if len(orders) < r.cfg.BatchSize {
			break
		}
		last := orders[len(orders)-1]
		after = &ports.OrderCursor{UpdatedAt: last.UpdatedAt, ID: last.ID}
	}
	return settled, errs
}
