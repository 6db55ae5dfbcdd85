package worker

import (
	"context"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
)

// DefaultInterval is how often the reconcile worker sweeps the document
// store when no interval is configured.
const DefaultInterval = 5 * time.Minute

// Reconciler performs a single reconciliation sweep: it scans for
// documents left partially indexed or stuck in ingesting and repairs
// them. The same sweep backs the one-shot reconcile command.
type Reconciler interface {
	Reconcile(ctx context.Context) (*Report, error)
}

// Report summarizes the outcome of one reconciliation sweep.
type Report struct {
	Scanned    int // documents examined
	Recovered  int // documents repaired to indexed
	RolledBack int // documents rolled back to embedding_failed
	Failed     int // documents that could not be repaired this sweep
}

// ReconcileWorker manages background repair of documents left inconsistent
// by interrupted ingestion (partially indexed documents and stale ingesting
// markers)
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type ReconcileWorker struct {
	reconciler Reconciler
	interval   time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// NewReconcileWorker creates a new worker that runs the given reconciler
// every interval. Non-positive intervals fall back to DefaultInterval.
func NewReconcileWorker(reconciler Reconciler, interval time.Duration) *ReconcileWorker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &ReconcileWorker{
		reconciler: reconciler,
		interval:   interval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the background reconciliation loop
// - Initial sweep and periodic sweeps both run in a background goroutine
// - Does not block server startup
func (w *ReconcileWorker) Start(ctx context.Context) error {
	logging.Default().Info("Reconcile worker starting",
		"interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *ReconcileWorker) Stop() {
	logging.Default().Info("Reconcile worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Reconcile worker stopped")
}

// run is the main worker loop (runs in goroutine)
func (w *ReconcileWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	// Initial sweep (runs in goroutine, does not block server startup)
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)

		case <-w.stopCh:
			logging.Default().Info("Reconcile worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("Reconcile worker context cancelled")
			return
		}
	}
}

// sweep performs a single reconciliation cycle. Errors are logged and the
// loop continues; the next interval retries.
func (w *ReconcileWorker) sweep(ctx context.Context) {
	startTime := time.Now()
	logging.Default().Info("Starting reconciliation sweep")

	report, err := w.reconciler.Reconcile(ctx)
	if err != nil {
		logging.Default().Error("Reconciliation sweep failed (will retry next interval)",
			"error", err.Error())
		return
	}

	logging.Default().Info("Reconciliation sweep completed",
		"scanned", report.Scanned,
		"recovered", report.Recovered,
		"rolled_back", report.RolledBack,
		"failed", report.Failed,
		"duration", time.Since(startTime).String())
}
