// Package worker runs the background loops that converge submission
// records without client polling: consensus-outcome resolution and
// terminal-record retention.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/finbridge/ledger-rest/internal/core/domain"
	"github.com/finbridge/ledger-rest/internal/core/ports"
)

// Resolver is the slice of NotificationService the worker needs.
type Resolver interface {
	Resolve(ctx context.Context, account, clientResourceID string) (*domain.NotificationOutcome, error)
}

type ResolverWorker struct {
	store     ports.ResourceStore
	gate      ports.ConnectionGate
	resolver  Resolver
	interval  time.Duration
	batchSize int
	retention time.Duration
	logger    *slog.Logger
}

func NewResolverWorker(
	store ports.ResourceStore,
	gate ports.ConnectionGate,
	resolver Resolver,
	interval time.Duration,
	batchSize int,
	retention time.Duration,
	logger *slog.Logger,
) *ResolverWorker {
	return &ResolverWorker{
		store:     store,
		gate:      gate,
		resolver:  resolver,
		interval:  interval,
		batchSize: batchSize,
		retention: retention,
		logger:    logger,
	}
}

func (w *ResolverWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("starting background resolver",
		"interval", w.interval,
		"batch_size", w.batchSize,
		"retention", w.retention,
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping background resolver")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

// RunOnce executes a single sweep.
func (w *ResolverWorker) RunOnce(ctx context.Context) {
	w.run(ctx)
}

func (w *ResolverWorker) run(ctx context.Context) {
	w.resolveUnsettled(ctx)
	w.collectTerminal(ctx)
}

func (w *ResolverWorker) resolveUnsettled(ctx context.Context) {
	if !w.gate.IsConnected() {
		return
	}

	unresolved, err := w.store.ListUnresolved(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list unresolved records", "error", err)
		return
	}
	if len(unresolved) == 0 {
		return
	}

	w.logger.Debug("resolving unsettled submissions", "count", len(unresolved))

	for _, rec := range unresolved {
		outcome, err := w.resolver.Resolve(ctx, rec.Account, rec.ClientResourceID)
		if err != nil {
			w.logger.Error("resolution failed",
				"account", rec.Account,
				"client_resource_id", rec.ClientResourceID,
				"error", err,
			)
			continue
		}
		if outcome.Status != domain.OutcomePending {
			w.logger.Info("submission settled by worker",
				"account", rec.Account,
				"client_resource_id", rec.ClientResourceID,
				"status", outcome.Status,
			)
		}
	}
}

func (w *ResolverWorker) collectTerminal(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.retention)
	removed, err := w.store.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		w.logger.Error("failed to collect terminal records", "error", err)
		return
	}
	if removed > 0 {
		w.logger.Info("collected terminal records", "count", removed)
	}
}
