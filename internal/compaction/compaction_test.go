package compaction_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/caskdb/caskdb/internal/codec"
	"github.com/caskdb/caskdb/internal/compaction"
	"github.com/caskdb/caskdb/internal/index"
	"github.com/caskdb/caskdb/internal/storage"
	"github.com/caskdb/caskdb/pkg/logger"
	"github.com/caskdb/caskdb/pkg/options"
)

type testHarness struct {
	storage *storage.Storage
	index   *index.Index
	codec   codec.Codec
	c       *compaction.Compactor
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	opts := options.NewDefaultOptions()
	opts.DataDir = t.TempDir()

	s, err := storage.Open(context.Background(), &storage.Config{Options: &opts, Logger: logger.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	idx, err := index.New(context.Background(), &index.Config{DataDir: opts.DataDir, Logger: logger.Nop()})
	require.NoError(t, err)

	c := codec.NewCompactCodec(true)
	comp := compaction.New(&compaction.Config{
		Storage:  s,
		Index:    idx,
		Registry: codec.NewRegistry(),
		Codec:    c,
		Logger:   logger.Nop(),
	})

	return &testHarness{storage: s, index: idx, codec: c, c: comp}
}

// put writes a record directly through storage+index, mimicking what the
// engine's write path would do, without depending on the engine package.
func (h *testHarness) put(t *testing.T, key, value string, timestamp uint64) {
	t.Helper()
	encoded := h.codec.EncodePut(key, []byte(value), timestamp)
	fileID, pos, err := h.storage.Append(encoded)
	require.NoError(t, err)
	h.index.Put(key, index.Entry{FileID: fileID, ValuePos: pos, ValueSize: uint32(len(value)), Timestamp: timestamp})
}

func (h *testHarness) delete(t *testing.T, key string, timestamp uint64) {
	t.Helper()
	encoded := h.codec.EncodeDelete(key, timestamp)
	_, _, err := h.storage.Append(encoded)
	require.NoError(t, err)
	h.index.Delete(key)
}

func Test_ShouldCompact_FalseBelowMinimumSize(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.put(t, "k", "v", 1)

	should, err := h.c.ShouldCompact(0.0)
	require.NoError(t, err)
	require.False(t, should)
}

func Test_Run_SkipsWhenThresholdNotMetAndNotForced(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.put(t, "k", "v", 1)

	report, err := h.c.Run(context.Background(), 0.99, false)
	require.NoError(t, err)
	require.False(t, report.Performed)
	require.Equal(t, "threshold_not_met", report.Reason)
}

func Test_Run_Forced_PreservesLogicalMapAndCollapsesToOneFile(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	for i := 0; i < 50; i++ {
		h.put(t, "key:"+strconv.Itoa(i), "original-value-"+strconv.Itoa(i), uint64(i))
	}
	for i := 0; i < 25; i++ {
		h.put(t, "key:"+strconv.Itoa(i), "updated-value-"+strconv.Itoa(i), uint64(i+1000))
	}
	for i := 40; i < 50; i++ {
		h.delete(t, "key:"+strconv.Itoa(i), uint64(i+2000))
	}

	expected := make(map[string]string)
	for i := 0; i < 25; i++ {
		expected["key:"+strconv.Itoa(i)] = "updated-value-" + strconv.Itoa(i)
	}
	for i := 25; i < 40; i++ {
		expected["key:"+strconv.Itoa(i)] = "original-value-" + strconv.Itoa(i)
	}

	report, err := h.c.Run(context.Background(), 0.0, true)
	require.NoError(t, err)
	require.True(t, report.Performed)

	wantStats := compaction.Stats{TotalFiles: 1, LiveKeys: len(expected)}
	ignoreSizeFields := cmpopts.IgnoreFields(compaction.Stats{}, "TotalSize", "EstimatedLiveSize", "EstimatedDeadRatio")
	if diff := cmp.Diff(wantStats, report.FinalStats, ignoreSizeFields); diff != "" {
		t.Fatalf("final stats mismatch after forced compaction (-want +got):\n%s", diff)
	}
	require.Equal(t, len(expected), h.index.Len())

	for key, wantValue := range expected {
		entry, ok := h.index.Get(key)
		require.True(t, ok, "expected %s to survive compaction", key)

		f, err := h.storage.OpenForRead(entry.FileID)
		require.NoError(t, err)

		buf := make([]byte, 4096)
		n, _ := f.ReadAt(buf, entry.ValuePos)
		rec, _, err := h.codec.Decode(buf[:n])
		require.NoError(t, err)
		require.Equal(t, wantValue, string(rec.Value))
		f.Close()
	}

	for i := 40; i < 50; i++ {
		_, ok := h.index.Get("key:" + strconv.Itoa(i))
		require.False(t, ok)
	}
}

func Test_Run_RemovesSourceFilesAfterSuccess(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	for i := 0; i < 10; i++ {
		h.put(t, "key:"+strconv.Itoa(i), "value", uint64(i))
		h.storage.Rotate()
	}

	preIDs, err := h.storage.ListFileIDs()
	require.NoError(t, err)
	require.Greater(t, len(preIDs), 1)

	report, err := h.c.Run(context.Background(), 0.0, true)
	require.NoError(t, err)
	require.True(t, report.Performed)
	require.Equal(t, len(preIDs), report.FilesRemoved)

	postIDs, err := h.storage.ListFileIDs()
	require.NoError(t, err)
	require.Len(t, postIDs, 1)
}
