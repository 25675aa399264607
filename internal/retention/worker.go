// Package retention runs the periodic maintenance of the dashboard: pruning
// old build requests, dropping expired reports and refreshing the data from
// the configured dump
package retention

import (
	"context"
	"sync"
	"time"

	"github.com/aparcar/buildboard/internal/importer"
	"github.com/aparcar/buildboard/internal/logging"
)

// Store is the storage the worker maintains
type Store interface {
	importer.Store
	PruneBuildRequests(ctx context.Context, before int64) (int64, error)
}

// Cache is the report cache the worker purges
type Cache interface {
	Purge() int
	Reset()
}

// Loader refreshes the store from a dump
type Loader interface {
	Load(ctx context.Context, store importer.Store, source string) (*importer.Result, error)
}

// Options configure a Worker
type Options struct {
	Interval  time.Duration
	Retention time.Duration
	// ImportURL is loaded on every tick when set
	ImportURL string
	Loader    Loader
}

// Worker prunes and refreshes the build request store
type Worker struct {
	store    Store
	cache    Cache
	opts     Options
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(store Store, cache Cache, opts Options) *Worker {
	return &Worker{
		store:  store,
		cache:  cache,
		opts:   opts,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Start runs maintenance immediately and then on every interval until ctx
// is done or Stop is called
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	logging.Log.WithField("interval", w.opts.Interval).Info("retention worker started")

	// Run immediately on start
	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			logging.Log.Info("retention worker shutting down")
			return
		case <-w.stopCh:
			logging.Log.Info("retention worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// Stop signals the worker to stop
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// RunOnce performs a single maintenance pass
func (w *Worker) RunOnce(ctx context.Context) {
	changed := false

	if w.opts.ImportURL != "" && w.opts.Loader != nil {
		res, err := w.opts.Loader.Load(ctx, w.store, w.opts.ImportURL)
		if err != nil {
			logging.Log.WithError(err).WithField("url", w.opts.ImportURL).Error("failed to import build requests")
		} else if len(res.Requests) > 0 {
			changed = true
		}
	}

	if w.opts.Retention > 0 {
		before := w.now().Add(-w.opts.Retention).Unix()
		removed, err := w.store.PruneBuildRequests(ctx, before)
		if err != nil {
			logging.Log.WithError(err).Error("failed to prune build requests")
		} else if removed > 0 {
			changed = true
			logging.Log.WithField("removed", removed).Info("pruned build requests")
		}
	}

	if w.cache == nil {
		return
	}
	if changed {
		w.cache.Reset()
		return
	}
	if n := w.cache.Purge(); n > 0 {
		logging.Log.WithField("entries", n).Debug("purged expired reports")
	}
}
