// Package checkpoint implements C8: a periodic metadata snapshot thread and
// the shutdown-flag polling discipline shared by every long-running loop in
// the node.
package checkpoint

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/ssnode/internal/logger"
	"github.com/marmos91/ssnode/pkg/metadata"
	"github.com/marmos91/ssnode/pkg/metrics"
)

// pollInterval bounds how long the checkpoint loop sleeps between shutdown
// flag checks, per spec's "checks the shutdown flag between 1-second
// sleeps".
const pollInterval = time.Second

// Checkpointer periodically persists a metadata.Store to disk.
type Checkpointer struct {
	Store    *metadata.Store
	Path     string
	Interval time.Duration

	// OnSaved, if set, is invoked after every successful save with the
	// checkpoint path and the time the save began -- pkg/node wires this to
	// pkg/archival's optional S3 upload without this package depending on
	// archival directly.
	OnSaved func(ctx context.Context, path string, savedAt time.Time)

	shutdown atomic.Bool
	wg       sync.WaitGroup
}

// Start spawns the checkpoint loop.
func (c *Checkpointer) Start(ctx context.Context) {
	if c.Interval <= 0 {
		c.Interval = 60 * time.Second
	}
	c.wg.Add(1)
	go c.run(ctx)
}

// Stop signals the loop to exit, waits for it, then performs one final
// checkpoint so the on-disk snapshot reflects the state at shutdown.
func (c *Checkpointer) Stop(ctx context.Context) error {
	c.shutdown.Store(true)
	c.wg.Wait()
	return c.save(ctx)
}

func (c *Checkpointer) run(ctx context.Context) {
	defer c.wg.Done()

	next := time.Now().Add(c.Interval)
	for !c.shutdown.Load() {
		if wait := time.Until(next); wait > 0 {
			if wait > pollInterval {
				wait = pollInterval
			}
			time.Sleep(wait)
			continue
		}
		if err := c.save(ctx); err != nil {
			logger.ErrorCtx(ctx, "checkpoint: save failed", logger.Err(err))
		}
		next = time.Now().Add(c.Interval)
	}
}

func (c *Checkpointer) save(ctx context.Context) error {
	start := time.Now()
	if err := c.Store.Save(c.Path); err != nil {
		return err
	}
	elapsed := time.Since(start)
	logger.InfoCtx(ctx, "checkpoint saved", logger.FileCount(c.Store.Count()),
		logger.DurationMs(logger.Duration(start)))
	metrics.ObserveCheckpointDuration(elapsed.Seconds())
	metrics.SetMetadataEntries(c.Store.Count())

	if c.OnSaved != nil {
		c.OnSaved(ctx, c.Path, start)
	}
	return nil
}
