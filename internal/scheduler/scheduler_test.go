package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caskdb/caskdb/internal/compaction"
	"github.com/caskdb/caskdb/internal/scheduler"
	"github.com/caskdb/caskdb/pkg/logger"
)

type fakeEngine struct {
	calls   int32
	reports []compaction.Report
	report  compaction.Report
}

func (f *fakeEngine) Compact(_ context.Context, _ float64, force bool) (compaction.Report, error) {
	atomic.AddInt32(&f.calls, 1)
	r := f.report
	r.Performed = force || r.Performed
	return r, nil
}

func Test_New_RejectsInvalidParameters(t *testing.T) {
	t.Parallel()

	_, err := scheduler.New(&scheduler.Config{Engine: &fakeEngine{}, IntervalSeconds: 0, Logger: logger.Nop()})
	require.Error(t, err)

	_, err = scheduler.New(&scheduler.Config{Engine: &fakeEngine{}, IntervalSeconds: 1, ThresholdRatio: 1.5, Logger: logger.Nop()})
	require.Error(t, err)
}

func Test_Start_IsNoOpWhenAlreadyRunning(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{}
	s, err := scheduler.New(&scheduler.Config{Engine: eng, IntervalSeconds: 60, Logger: logger.Nop()})
	require.NoError(t, err)

	s.Start()
	defer s.Stop(time.Second)

	require.True(t, s.IsRunning())
	s.Start() // no-op, must not panic or start a second worker
	require.True(t, s.IsRunning())
}

func Test_Stop_WhenNotRunningReturnsTrue(t *testing.T) {
	t.Parallel()

	s, err := scheduler.New(&scheduler.Config{Engine: &fakeEngine{}, IntervalSeconds: 60, Logger: logger.Nop()})
	require.NoError(t, err)

	require.True(t, s.Stop(time.Second))
}

func Test_TriggerCompaction_InvokesEngineSynchronously(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{report: compaction.Report{RecordsWritten: 7}}
	s, err := scheduler.New(&scheduler.Config{Engine: eng, IntervalSeconds: 60, Logger: logger.Nop()})
	require.NoError(t, err)

	report := s.TriggerCompaction(true)
	require.True(t, report.Performed)
	require.Equal(t, 7, report.RecordsWritten)
	require.EqualValues(t, 1, atomic.LoadInt32(&eng.calls))
}

func Test_OnComplete_InvokedExactlyOnceAfterTrigger(t *testing.T) {
	t.Parallel()

	var invocations int32
	eng := &fakeEngine{report: compaction.Report{Performed: true}}
	s, err := scheduler.New(&scheduler.Config{
		Engine:          eng,
		IntervalSeconds: 60,
		Logger:          logger.Nop(),
		OnComplete:      func(compaction.Report) { atomic.AddInt32(&invocations, 1) },
	})
	require.NoError(t, err)

	s.TriggerCompaction(true)
	require.EqualValues(t, 1, atomic.LoadInt32(&invocations))
}

func Test_BackgroundWorker_TriggersCompactionOnShortInterval(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{report: compaction.Report{Performed: true}}
	s, err := scheduler.New(&scheduler.Config{Engine: eng, IntervalSeconds: 1, Logger: logger.Nop()})
	require.NoError(t, err)

	s.Start()
	defer s.Stop(time.Second)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&eng.calls) >= 1
	}, 3*time.Second, 50*time.Millisecond)
}

func Test_Stop_IsResponsiveEvenWithLongInterval(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{}
	s, err := scheduler.New(&scheduler.Config{Engine: eng, IntervalSeconds: 3600, Logger: logger.Nop()})
	require.NoError(t, err)

	s.Start()
	stopped := s.Stop(2 * time.Second)
	require.True(t, stopped)
	require.False(t, s.IsRunning())
}
