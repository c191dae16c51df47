package ignite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caskdb/caskdb/internal/scheduler"
	"github.com/caskdb/caskdb/pkg/ignite"
	"github.com/caskdb/caskdb/pkg/options"
)

func Test_Open_PutGetDelete_EndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := ignite.Open(ctx, t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put(ctx, "k", []byte("v")))

	value, ok, err := db.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), value)

	deleted, err := db.Delete(ctx, "k")
	require.NoError(t, err)
	require.True(t, deleted)

	_, ok, err = db.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func Test_Open_WithReadableCodec(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := ignite.Open(ctx, t.TempDir(), options.WithReadableCodec())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put(ctx, "k", []byte("v")))
	value, ok, err := db.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), value)
}

func Test_BatchWriteAndListKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := ignite.Open(ctx, t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.BatchWrite(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}))

	keys, err := db.ListKeys(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, keys)
}

func Test_Clear_EmptiesDatabase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := ignite.Open(ctx, t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put(ctx, "a", []byte("1")))
	require.NoError(t, db.Clear(ctx))

	keys, err := db.ListKeys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func Test_CompactionStatsAndCompact(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := ignite.Open(ctx, t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, db.Put(ctx, "k", []byte("v")))
	}

	stats, err := db.CompactionStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.LiveKeys)

	report, err := db.Compact(ctx, 0, true)
	require.NoError(t, err)
	require.True(t, report.Performed)
}

func Test_StartStopScheduler(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := ignite.Open(ctx, t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put(ctx, "k", []byte("v")))

	require.NoError(t, db.StartScheduler(scheduler.Config{IntervalSeconds: 3600, ThresholdRatio: 0.3}))
	stopped := db.StopScheduler(2 * time.Second)
	require.True(t, stopped)
}

func Test_Open_RecoversAcrossRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	db1, err := ignite.Open(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, db1.Put(ctx, "k", []byte("v")))
	require.NoError(t, db1.Close())

	db2, err := ignite.Open(ctx, dir)
	require.NoError(t, err)
	defer db2.Close()

	value, ok, err := db2.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), value)
}
