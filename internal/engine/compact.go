package engine

import (
	"context"
	"time"

	"github.com/caskdb/caskdb/internal/compaction"
	"github.com/caskdb/caskdb/internal/scheduler"
)

func (e *Engine) compactor() *compaction.Compactor {
	if e.compactorInst == nil {
		e.compactorInst = compaction.New(&compaction.Config{
			Storage:  e.storage,
			Index:    e.index,
			Registry: e.registry,
			Codec:    e.writer,
			Logger:   e.log,
		})
	}
	return e.compactorInst
}

// Stats reports the current live/dead picture across every data file.
func (e *Engine) Stats() (compaction.Stats, error) {
	if e.closed.Load() {
		return compaction.Stats{}, ErrEngineClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.compactor().Stats()
}

// ShouldCompact reports whether a compaction pass would be worth running at
// the given dead-ratio threshold.
func (e *Engine) ShouldCompact(threshold float64) (bool, error) {
	if e.closed.Load() {
		return false, ErrEngineClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.compactor().ShouldCompact(threshold)
}

// Compact performs one compaction pass, timing it and stamping the result
// onto the returned Report (Run itself has no notion of wall-clock time, to
// stay deterministic and easy to test).
func (e *Engine) Compact(ctx context.Context, threshold float64, force bool) (compaction.Report, error) {
	if e.closed.Load() {
		return compaction.Report{}, ErrEngineClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	report, err := e.compactor().Run(ctx, threshold, force)
	report.DurationSeconds = time.Since(start).Seconds()
	return report, err
}

// StartScheduler brings up a background goroutine that periodically checks
// and, if warranted, runs compaction. It is a no-op if one is already
// running.
func (e *Engine) StartScheduler(intervalSeconds, thresholdRatio float64, onComplete scheduler.OnComplete) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}

	e.mu.Lock()
	existing := e.scheduler
	e.mu.Unlock()

	if existing != nil {
		existing.Start()
		return nil
	}

	s, err := scheduler.New(&scheduler.Config{
		Engine:          e,
		IntervalSeconds: intervalSeconds,
		ThresholdRatio:  thresholdRatio,
		OnComplete:      onComplete,
		Logger:          e.log,
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.scheduler = s
	e.mu.Unlock()

	s.Start()
	return nil
}

// StopScheduler stops the background compaction scheduler, if running,
// waiting up to timeout for it to finish its current cycle.
func (e *Engine) StopScheduler(timeout time.Duration) bool {
	e.mu.Lock()
	s := e.scheduler
	e.mu.Unlock()

	if s == nil {
		return true
	}
	return s.Stop(timeout)
}

// TriggerCompaction runs compaction synchronously through the scheduler, if
// one has been started, sharing its configured threshold.
func (e *Engine) TriggerCompaction(force bool) compaction.Report {
	e.mu.Lock()
	s := e.scheduler
	e.mu.Unlock()

	if s == nil {
		report, _ := e.Compact(context.Background(), 0, force)
		return report
	}
	return s.TriggerCompaction(force)
}
