// Package ignite provides a high-performance key/value data store designed
// for fast read and write operations, inspired by Bitcask. It combines an
// in-memory hash table (the index) with an append-only log structure on
// disk to achieve high throughput, trading memory for avoiding random disk
// seeks on the read path.
package ignite

import (
	"context"
	"time"

	"github.com/caskdb/caskdb/internal/compaction"
	"github.com/caskdb/caskdb/internal/engine"
	"github.com/caskdb/caskdb/internal/scheduler"
	"github.com/caskdb/caskdb/pkg/logger"
	"github.com/caskdb/caskdb/pkg/options"
)

// Instance is the primary entry point for interacting with an Ignite
// database: put/get/delete/batch on the key/value surface, plus the
// housekeeping operations (clear, compact, the background scheduler) that
// keep a long-lived directory healthy.
type Instance struct {
	engine  *engine.Engine
	options *options.Options
}

// Open brings an Instance online for the database rooted at dataDir,
// creating the directory and its first data file if neither exists yet, or
// replaying every existing data file into memory if they do.
func Open(ctx context.Context, dataDir string, opts ...options.OptionFunc) (*Instance, error) {
	resolved := options.NewDefaultOptions()
	resolved.DataDir = dataDir
	for _, opt := range opts {
		opt(&resolved)
	}

	log := resolved.Logger
	if log == nil {
		log = logger.New("ignite")
		resolved.Logger = log
	}

	eng, err := engine.New(ctx, &engine.Config{Options: &resolved, Logger: log})
	if err != nil {
		return nil, err
	}

	return &Instance{engine: eng, options: &resolved}, nil
}

// Put stores key=value, creating the key if absent or overwriting it if
// present. The write is appended to the active data file; durability
// across a process crash depends on the OS flushing its write buffer, not
// on an fsync Put itself performs.
func (i *Instance) Put(_ context.Context, key string, value []byte) error {
	return i.engine.Put(key, value)
}

// Get returns the current value for key, or ok=false if it is absent or has
// been deleted.
func (i *Instance) Get(_ context.Context, key string) ([]byte, bool, error) {
	return i.engine.Get(key)
}

// Delete removes key, fsyncing its tombstone before returning. It reports
// whether key was present; deleting an absent key is a no-op that writes
// nothing.
func (i *Instance) Delete(_ context.Context, key string) (bool, error) {
	return i.engine.Delete(key)
}

// BatchWrite applies every pair in kv under a single timestamp and a single
// fsync, rather than one fsync per key.
func (i *Instance) BatchWrite(_ context.Context, kv map[string][]byte) error {
	return i.engine.BatchWrite(kv)
}

// ListKeys returns every key currently live in the database.
func (i *Instance) ListKeys(_ context.Context) ([]string, error) {
	return i.engine.ListKeys()
}

// Clear deletes every record and data file, resetting the database to the
// same empty state Open would find in a brand-new directory.
func (i *Instance) Clear(_ context.Context) error {
	return i.engine.Clear()
}

// Close stops the background scheduler if one is running, flushes and
// closes the active data file, and releases the directory lock.
func (i *Instance) Close() error {
	return i.engine.Close()
}

// CompactionStats reports the current live/dead picture across every data
// file, for monitoring or for deciding whether to call Compact manually.
func (i *Instance) CompactionStats(_ context.Context) (compaction.Stats, error) {
	return i.engine.Stats()
}

// ShouldCompact reports whether a compaction pass would be worth running at
// the given dead-ratio threshold.
func (i *Instance) ShouldCompact(threshold float64) (bool, error) {
	return i.engine.ShouldCompact(threshold)
}

// Compact runs one compaction pass, rewriting every live record into a
// single new data file. With force=false it is a no-op unless threshold is
// met; force=true always runs.
func (i *Instance) Compact(ctx context.Context, threshold float64, force bool) (compaction.Report, error) {
	return i.engine.Compact(ctx, threshold, force)
}

// StartScheduler brings up a background goroutine that periodically checks
// and, if warranted, compacts this Instance. cfg.Engine is ignored if set;
// the scheduler always targets this Instance's own engine.
func (i *Instance) StartScheduler(cfg scheduler.Config) error {
	interval := cfg.IntervalSeconds
	if interval <= 0 {
		interval = i.options.SchedulerInterval.Seconds()
	}

	threshold := cfg.ThresholdRatio
	if threshold <= 0 {
		threshold = i.options.CompactionThreshold
	}

	return i.engine.StartScheduler(interval, threshold, cfg.OnComplete)
}

// StopScheduler stops the background compaction scheduler, if running,
// waiting up to timeout for its current cycle to finish.
func (i *Instance) StopScheduler(timeout time.Duration) bool {
	return i.engine.StopScheduler(timeout)
}
