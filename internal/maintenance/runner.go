// Package maintenance runs bulk metadata updates against the vector store,
// off the QA path. Updates touch disjoint point sets, so the worker pool
// needs no locking.
package maintenance

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/openparl/plenumqa/internal/metrics"
	"github.com/openparl/plenumqa/internal/parties"
	"github.com/openparl/plenumqa/internal/vectordb"
)

// Store is the slice of the vector client the runner needs.
type Store interface {
	Scroll(ctx context.Context, spec vectordb.FilterSpec, limit int, offset interface{}) (*vectordb.ScrollResult, error)
	SetPayload(ctx context.Context, ids []interface{}, payload map[string]interface{}) error
}

// Update is one payload write against a disjoint set of points.
type Update struct {
	IDs     []interface{}
	Payload map[string]interface{}
}

// Config controls the runner.
type Config struct {
	Workers   int
	BatchSize int
}

// Runner applies updates through a fixed worker pool.
type Runner struct {
	cfg   Config
	store Store
	log   *zap.Logger
}

// New creates a runner.
func New(cfg Config, store Store, logger *zap.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, store: store, log: logger}
}

// Apply fans the updates out over the pool and returns the number that
// failed. Failures are logged and counted, never retried here.
func (r *Runner) Apply(ctx context.Context, updates []Update) int {
	jobs := make(chan Update)
	var failed int64
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				if err := r.store.SetPayload(ctx, u.IDs, u.Payload); err != nil {
					r.log.Warn("payload update failed",
						zap.Int("points", len(u.IDs)),
						zap.Error(err))
					metrics.MaintenanceUpdates.WithLabelValues("error").Inc()
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}
				metrics.MaintenanceUpdates.WithLabelValues("ok").Inc()
			}
		}()
	}
	for _, u := range updates {
		jobs <- u
	}
	close(jobs)
	wg.Wait()
	return int(failed)
}

// NormalizeParties scans the whole collection and rewrites every chunk whose
// recorded party is a known alias to its canonical name. Returns the number
// of points rewritten.
func (r *Runner) NormalizeParties(ctx context.Context, table *parties.Table) (int, error) {
	// canonical name -> point ids needing the rewrite
	pending := make(map[string][]interface{})

	var offset interface{}
	for {
		page, err := r.store.Scroll(ctx, vectordb.FilterSpec{}, r.cfg.BatchSize, offset)
		if err != nil {
			return 0, err
		}
		for _, p := range page.Points {
			raw, _ := p.Payload["party"].(string)
			if raw == "" {
				continue
			}
			canon := table.Canonical(raw)
			if canon != raw {
				pending[canon] = append(pending[canon], p.ID)
			}
		}
		if page.NextOffset == nil {
			break
		}
		offset = page.NextOffset
	}

	var updates []Update
	total := 0
	for canon, ids := range pending {
		total += len(ids)
		for i := 0; i < len(ids); i += r.cfg.BatchSize {
			end := i + r.cfg.BatchSize
			if end > len(ids) {
				end = len(ids)
			}
			updates = append(updates, Update{
				IDs:     ids[i:end],
				Payload: map[string]interface{}{"party": canon},
			})
		}
	}

	failedBatches := r.Apply(ctx, updates)
	r.log.Info("party normalization finished",
		zap.Int("points", total),
		zap.Int("failed_batches", failedBatches))
	return total, nil
}
