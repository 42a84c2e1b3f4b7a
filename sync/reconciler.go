// ABOUTME: One-way source-to-destination reconciliation by identity key
// ABOUTME: Creates missing records sequentially under a per-run cap and tallies outcomes
package sync

import (
	"context"
	"log/slog"

	"github.com/harperreed/mirrorsync/models"
)

// CreateFunc issues one create against the destination.
type CreateFunc[R any] func(ctx context.Context, record R) error

// Reconciler computes source minus destination and creates the difference.
type Reconciler[R any] struct {
	key       KeyFunc[R]
	indexKeys IndexFunc[R]
	create    CreateFunc[R]
	createCap int
	dryRun    bool
	logger    *slog.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption[R any] func(*Reconciler[R])

// WithIndexKeys sets how destination records populate the key set.
// By default each destination record contributes its single key.
func WithIndexKeys[R any](index IndexFunc[R]) ReconcilerOption[R] {
	return func(r *Reconciler[R]) {
		if index != nil {
			r.indexKeys = index
		}
	}
}

// WithCreateCap lowers the per-run create cap. Values outside (0, MaxCreatesPerRun] are ignored.
func WithCreateCap[R any](n int) ReconcilerOption[R] {
	return func(r *Reconciler[R]) {
		if n > 0 && n <= MaxCreatesPerRun {
			r.createCap = n
		}
	}
}

// WithDryRun counts would-be creates without calling the destination.
func WithDryRun[R any](enabled bool) ReconcilerOption[R] {
	return func(r *Reconciler[R]) {
		r.dryRun = enabled
	}
}

// WithReconcilerLogger sets the logger used for per-record failures.
func WithReconcilerLogger[R any](logger *slog.Logger) ReconcilerOption[R] {
	return func(r *Reconciler[R]) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReconciler creates a reconciler that keys records with key and writes with create.
func NewReconciler[R any](key KeyFunc[R], create CreateFunc[R], opts ...ReconcilerOption[R]) *Reconciler[R] {
	r := &Reconciler[R]{
		key:       key,
		indexKeys: singleKey(key),
		create:    create,
		createCap: MaxCreatesPerRun,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile never fails: individual create failures are counted as skipped.
// Records after the cap is reached are left unevaluated and reported as such.
func (r *Reconciler[R]) Reconcile(ctx context.Context, source, destination []R) models.RunResult {
	destKeys := newKeySet(len(destination))
	for _, rec := range destination {
		for _, k := range r.indexKeys(rec) {
			if k != "" {
				destKeys.add(k)
			}
		}
	}

	created, skipped, evaluated := 0, 0, 0
	for _, rec := range source {
		if created >= r.createCap || ctx.Err() != nil {
			break
		}
		evaluated++

		k := r.key(rec)
		if k == "" || destKeys.has(k) {
			skipped++
			continue
		}

		if !r.dryRun {
			if err := r.create(ctx, rec); err != nil {
				r.logger.Warn("create failed, skipping record", "key", k, "error", err)
				skipped++
				continue
			}
		}

		created++
		destKeys.add(k)
	}

	return models.RunResult{
		Status:           models.StatusOK,
		Created:          created,
		Skipped:          skipped,
		SourceCount:      len(source),
		DestinationCount: len(destination),
		Unevaluated:      len(source) - evaluated,
		DryRun:           r.dryRun,
	}
}
