package index

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Entry contains the minimum metadata required to locate a record on disk:
// which file holds it, where in that file the record begins, how many bytes
// the value takes, and when the record was written. Entry is the unit kept
// in memory per live key, so its size directly bounds how many keys Ignite
// can index per byte of RAM; field choices favor compactness over
// convenience for that reason.
type Entry struct {
	// FileID identifies which data file holds the record.
	FileID uint32

	// ValuePos is the absolute byte offset within that file, from the start
	// of the file (including its leading format-identifier byte), where the
	// record's encoding begins.
	ValuePos int64

	// ValueSize is the length in bytes of the decoded value. A tombstone
	// entry is never stored in the index (Delete removes the key outright),
	// so ValueSize here is always the live value's length.
	ValueSize uint32

	// Timestamp is the write time recorded in the record itself, used to
	// resolve write-order during recovery and compaction.
	Timestamp uint64
}

// Index is the in-memory hash table mapping every live key to the Entry
// describing where its value lives on disk. All keys are kept in memory;
// only values live on disk, which is the central Bitcask trade-off.
type Index struct {
	dataDir string
	log     *zap.SugaredLogger

	mu      sync.RWMutex
	entries map[string]Entry

	closed atomic.Bool
}

// Config carries the parameters New needs to build an Index.
type Config struct {
	DataDir string
	Logger  *zap.SugaredLogger
}
