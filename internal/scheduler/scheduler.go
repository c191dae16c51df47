// Package scheduler runs a background worker that periodically asks an
// Ignite engine to compact itself. It is grounded on
// original_source/src/pybitcask/scheduler.py's CompactionScheduler: a
// daemon goroutine here in place of a daemon thread there, the same
// sleep-in-one-second-slices loop so Stop is responsive, and the same
// start/stop/trigger_compaction contract.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/caskdb/caskdb/internal/compaction"
	"github.com/caskdb/caskdb/pkg/errors"
)

// Compactable is the subset of engine behavior the scheduler needs: run one
// compaction pass. Modeled as an interface so the scheduler doesn't import
// the engine package (which imports the scheduler to start one).
type Compactable interface {
	Compact(ctx context.Context, threshold float64, force bool) (compaction.Report, error)
}

// OnComplete is invoked after a compaction the scheduler performed, whether
// or not it ran (Report.Performed distinguishes the two).
type OnComplete func(compaction.Report)

// Config carries the parameters New needs to build a Scheduler.
type Config struct {
	Engine          Compactable
	IntervalSeconds float64
	ThresholdRatio  float64
	OnComplete      OnComplete
	Logger          *zap.SugaredLogger
}

// Scheduler periodically triggers compaction on an engine in the
// background. The zero value is not usable; construct with New.
type Scheduler struct {
	engine     Compactable
	onComplete OnComplete
	log        *zap.SugaredLogger

	mu              sync.Mutex
	intervalSeconds float64
	thresholdRatio  float64
	running         bool
	stop            chan struct{}
	done            chan struct{}
}

// New validates config and builds a Scheduler. interval_seconds must be
// positive and threshold_ratio must be within [0, 1], matching the
// original's property-setter validation.
func New(config *Config) (*Scheduler, error) {
	if config == nil || config.Engine == nil || config.Logger == nil {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "scheduler configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}
	if config.IntervalSeconds <= 0 {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidParameter, "interval_seconds must be positive",
		).WithField("intervalSeconds").WithRule("positive").WithProvided(config.IntervalSeconds)
	}
	if config.ThresholdRatio < 0 || config.ThresholdRatio > 1 {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidParameter, "threshold_ratio must be between 0.0 and 1.0",
		).WithField("thresholdRatio").WithRule("range").WithProvided(config.ThresholdRatio)
	}

	return &Scheduler{
		engine:          config.Engine,
		onComplete:      config.OnComplete,
		log:             config.Logger,
		intervalSeconds: config.IntervalSeconds,
		thresholdRatio:  config.ThresholdRatio,
	}, nil
}

// IsRunning reports whether the background worker is currently active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// IntervalSeconds returns the configured check interval.
func (s *Scheduler) IntervalSeconds() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intervalSeconds
}

// ThresholdRatio returns the configured compaction threshold.
func (s *Scheduler) ThresholdRatio() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thresholdRatio
}

// Start launches the background worker. Calling Start while already running
// is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Warnw("compaction scheduler already running")
		return
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	go s.run(s.stop, s.done)

	s.log.Infow("compaction scheduler started", "intervalSeconds", s.intervalSeconds, "thresholdRatio", s.thresholdRatio)
}

// Stop signals the background worker to exit and waits up to timeout for it
// to do so. A non-positive timeout waits indefinitely. It reports whether
// the worker stopped within the timeout.
func (s *Scheduler) Stop(timeout time.Duration) bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return true
	}
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)

	if timeout <= 0 {
		<-done
	} else {
		select {
		case <-done:
		case <-time.After(timeout):
			s.log.Warnw("compaction scheduler did not stop within timeout")
			return false
		}
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.log.Infow("compaction scheduler stopped")
	return true
}

// TriggerCompaction synchronously performs one check-and-compact from the
// caller's goroutine, bypassing the schedule.
func (s *Scheduler) TriggerCompaction(force bool) compaction.Report {
	return s.checkAndCompact(force)
}

// run is the background worker body: sleep in one-second slices (so Stop is
// responsive even with a long interval), then check-and-compact, repeat
// until stop is closed.
func (s *Scheduler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		if !s.sleepInterval(stop) {
			return
		}
		s.checkAndCompact(false)
	}
}

func (s *Scheduler) sleepInterval(stop <-chan struct{}) bool {
	interval := time.Duration(s.IntervalSeconds() * float64(time.Second))
	waited := time.Duration(0)

	for waited < interval {
		slice := time.Second
		if remaining := interval - waited; remaining < slice {
			slice = remaining
		}

		select {
		case <-stop:
			return false
		case <-time.After(slice):
			waited += slice
		}
	}
	return true
}

func (s *Scheduler) checkAndCompact(force bool) compaction.Report {
	report, err := s.engine.Compact(context.Background(), s.ThresholdRatio(), force)
	if err != nil {
		s.log.Errorw("error during scheduled compaction", "error", err)
		return compaction.Report{}
	}

	if report.Performed {
		s.log.Infow("scheduled compaction completed",
			"recordsWritten", report.RecordsWritten,
			"spaceSavedBytes", report.SpaceSavedBytes,
		)
	} else {
		s.log.Debugw("compaction skipped", "reason", report.Reason)
	}

	if s.onComplete != nil {
		s.onComplete(report)
	}

	return report
}
