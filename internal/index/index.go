// Package index provides the in-memory hash table that maps every live key
// to its on-disk location. This package embodies the core Bitcask
// architectural principle: keep all keys in memory with minimal metadata
// while values stay on disk, so lookups are O(1) without needing a B-tree
// or bloom filter in front of the data files.
//
// index operations never fail once the Index itself has been constructed:
// Get, Put, and Delete are pure in-memory map operations. The only error
// path is construction with an invalid Config.
package index

import (
	"context"
	stdErrors "errors"
	"sync/atomic"

	"github.com/caskdb/caskdb/pkg/errors"
)

var ErrIndexClosed = stdErrors.New("operation failed: cannot access closed index")

// New creates an Index ready for concurrent use.
func New(ctx context.Context, config *Config) (*Index, error) {
	if config == nil || config.DataDir == "" || config.Logger == nil {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "index configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}

	return &Index{
		log:     config.Logger,
		dataDir: config.DataDir,
		entries: make(map[string]Entry, 2048),
	}, nil
}

// Get returns the Entry for key and whether it was present.
func (idx *Index) Get(key string) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[key]
	return e, ok
}

// Put unconditionally installs entry for key, overwriting whatever was
// there. Used by the live write path, where the new write is always the
// newest version by definition.
func (idx *Index) Put(key string, entry Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[key] = entry
}

// PutIfNewer installs entry for key only if no entry exists yet or the
// existing entry's Timestamp is not greater than entry's. This is the
// recovery-time write: log records are replayed file-by-file, oldest file
// first, but a key can appear in more than one file, and the newest
// timestamp must always win regardless of replay order (I2).
func (idx *Index) PutIfNewer(key string, entry Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if existing, ok := idx.entries[key]; ok && existing.Timestamp > entry.Timestamp {
		return
	}
	idx.entries[key] = entry
}

// DeleteIfNewerOrEqual removes key's entry if no entry exists, or if the
// existing entry's Timestamp is less than or equal to asOf. This is the
// recovery-time tombstone application: a tombstone must win over an
// earlier-or-equal put replayed from an older file, but must not clobber a
// put from a newer file that happens to be replayed after the tombstone.
func (idx *Index) DeleteIfNewerOrEqual(key string, asOf uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if existing, ok := idx.entries[key]; ok && existing.Timestamp > asOf {
		return
	}
	delete(idx.entries, key)
}

// Delete removes key's entry unconditionally and reports whether it was
// present. Used by the live delete path, where a tombstone always
// supersedes whatever is currently indexed.
func (idx *Index) Delete(key string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.entries[key]; !ok {
		return false
	}
	delete(idx.entries, key)
	return true
}

// Len returns the number of live keys currently indexed.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Keys returns a snapshot slice of every live key. The returned slice is
// owned by the caller; later index mutations do not affect it.
func (idx *Index) Keys() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	keys := make([]string, 0, len(idx.entries))
	for k := range idx.entries {
		keys = append(keys, k)
	}
	return keys
}

// Snapshot returns a copy of the full key-to-entry map, used by compaction
// to decide which records are still live without holding the index lock for
// the duration of the rewrite.
func (idx *Index) Snapshot() map[string]Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	snap := make(map[string]Entry, len(idx.entries))
	for k, v := range idx.entries {
		snap[k] = v
	}
	return snap
}

// Swap atomically replaces the entire index contents with entries. Used by
// compaction to install the post-rewrite entry set in a single step once
// the new data file has been durably written.
func (idx *Index) Swap(entries map[string]Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = entries
}

// Clear removes every entry, leaving the index empty but open.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	clear(idx.entries)
}

// Close marks the index closed and drops its entries. It is not idempotent:
// a second call returns ErrIndexClosed.
func (idx *Index) Close() error {
	if !idx.closed.CompareAndSwap(false, true) {
		return ErrIndexClosed
	}

	idx.log.Infow("closing index")

	idx.mu.Lock()
	defer idx.mu.Unlock()
	clear(idx.entries)
	idx.entries = nil

	return nil
}
