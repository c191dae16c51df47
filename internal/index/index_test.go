package index_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/caskdb/caskdb/internal/index"
	"github.com/caskdb/caskdb/pkg/logger"
)

func newTestIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.New(context.Background(), &index.Config{DataDir: t.TempDir(), Logger: logger.Nop()})
	require.NoError(t, err)
	return idx
}

func Test_New_RequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := index.New(context.Background(), nil)
	require.Error(t, err)

	_, err = index.New(context.Background(), &index.Config{})
	require.Error(t, err)
}

func Test_Index_PutAndGet(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	entry := index.Entry{FileID: 1, ValuePos: 10, ValueSize: 5, Timestamp: 100}
	idx.Put("k", entry)

	got, ok := idx.Get("k")
	require.True(t, ok)
	require.Equal(t, entry, got)
}

func Test_Index_Get_MissingKeyReturnsFalse(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	_, ok := idx.Get("missing")
	require.False(t, ok)
}

func Test_Index_Delete_ReturnsWhetherKeyExisted(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	idx.Put("k", index.Entry{Timestamp: 1})

	require.True(t, idx.Delete("k"))
	require.False(t, idx.Delete("k"))
}

func Test_Index_PutIfNewer_RejectsOlderTimestamp(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	idx.PutIfNewer("k", index.Entry{Timestamp: 100, ValuePos: 1})
	idx.PutIfNewer("k", index.Entry{Timestamp: 50, ValuePos: 2})

	got, ok := idx.Get("k")
	require.True(t, ok)
	require.Equal(t, uint64(100), got.Timestamp)
	require.EqualValues(t, 1, got.ValuePos)
}

func Test_Index_PutIfNewer_AcceptsNewerTimestamp(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	idx.PutIfNewer("k", index.Entry{Timestamp: 50, ValuePos: 1})
	idx.PutIfNewer("k", index.Entry{Timestamp: 100, ValuePos: 2})

	got, ok := idx.Get("k")
	require.True(t, ok)
	require.Equal(t, uint64(100), got.Timestamp)
	require.EqualValues(t, 2, got.ValuePos)
}

func Test_Index_DeleteIfNewerOrEqual_RemovesEqualOrOlderEntry(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	idx.PutIfNewer("k", index.Entry{Timestamp: 100})
	idx.DeleteIfNewerOrEqual("k", 100)

	_, ok := idx.Get("k")
	require.False(t, ok)
}

func Test_Index_DeleteIfNewerOrEqual_PreservesNewerEntry(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	idx.PutIfNewer("k", index.Entry{Timestamp: 200})
	idx.DeleteIfNewerOrEqual("k", 100)

	got, ok := idx.Get("k")
	require.True(t, ok)
	require.Equal(t, uint64(200), got.Timestamp)
}

func Test_Index_KeysAndLen(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	idx.Put("a", index.Entry{})
	idx.Put("b", index.Entry{})

	require.Equal(t, 2, idx.Len())
	require.ElementsMatch(t, []string{"a", "b"}, idx.Keys())
}

func Test_Index_SnapshotIsIndependentOfLaterMutations(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	idx.Put("a", index.Entry{Timestamp: 1})

	snap := idx.Snapshot()
	idx.Put("a", index.Entry{Timestamp: 2})

	want := map[string]index.Entry{"a": {Timestamp: 1}}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Fatalf("snapshot diverged from its pre-mutation contents (-want +got):\n%s", diff)
	}
}

func Test_Index_Swap_ReplacesContents(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	idx.Put("old", index.Entry{})

	idx.Swap(map[string]index.Entry{"new": {Timestamp: 5}})

	_, ok := idx.Get("old")
	require.False(t, ok)

	got, ok := idx.Get("new")
	require.True(t, ok)
	require.Equal(t, uint64(5), got.Timestamp)
}

func Test_Index_Clear_EmptiesButLeavesOpen(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	idx.Put("a", index.Entry{})
	idx.Clear()

	require.Equal(t, 0, idx.Len())
}

func Test_Index_Close_IsNotIdempotent(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	require.NoError(t, idx.Close())
	require.ErrorIs(t, idx.Close(), index.ErrIndexClosed)
}
