// Package compaction rewrites an Ignite database's live records into a
// single new data file and discards the superseded ones, reclaiming the
// space occupied by overwritten values and tombstones.
package compaction

import (
	"context"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/caskdb/caskdb/internal/codec"
	"github.com/caskdb/caskdb/internal/index"
	"github.com/caskdb/caskdb/internal/storage"
	"github.com/caskdb/caskdb/pkg/errors"
)

const fixedOverheadBytes = 20

// Compactor rewrites the live records of a Storage/Index pair into a fresh
// data file. Callers are responsible for serializing access (the engine
// holds its own lock across every Compactor call).
type Compactor struct {
	storage  *storage.Storage
	index    *index.Index
	registry *codec.Registry
	codec    codec.Codec
	log      *zap.SugaredLogger
}

// Config carries the parameters New needs to build a Compactor.
type Config struct {
	Storage  *storage.Storage
	Index    *index.Index
	Registry *codec.Registry
	Codec    codec.Codec
	Logger   *zap.SugaredLogger
}

// New builds a Compactor bound to the given storage, index, and the codec
// new files should be written with.
func New(config *Config) *Compactor {
	return &Compactor{
		storage:  config.Storage,
		index:    config.Index,
		registry: config.Registry,
		codec:    config.Codec,
		log:      config.Logger,
	}
}

// Stats computes the current live/dead picture across every data file.
func (c *Compactor) Stats() (Stats, error) {
	ids, err := c.storage.ListFileIDs()
	if err != nil {
		return Stats{}, err
	}

	var totalSize int64
	for _, id := range ids {
		size, err := c.storage.FileSize(id)
		if err != nil {
			return Stats{}, err
		}
		totalSize += size
	}

	snapshot := c.index.Snapshot()
	var liveSize int64
	for key, entry := range snapshot {
		liveSize += int64(len(key)) + int64(entry.ValueSize) + fixedOverheadBytes
	}

	deadRatio := 0.0
	if totalSize > 0 {
		deadRatio = float64(totalSize-liveSize) / float64(totalSize)
		if deadRatio < 0 {
			deadRatio = 0
		}
	}

	return Stats{
		TotalFiles:         len(ids),
		TotalSize:          totalSize,
		LiveKeys:           len(snapshot),
		EstimatedLiveSize:  liveSize,
		EstimatedDeadRatio: deadRatio,
	}, nil
}

// ShouldCompact reports whether compaction is worth running at the given
// dead-ratio threshold. Small databases are never compacted regardless of
// ratio: below 1 MiB total, or below 2 files and 10 MiB total.
func (c *Compactor) ShouldCompact(threshold float64) (bool, error) {
	stats, err := c.Stats()
	if err != nil {
		return false, err
	}

	if stats.TotalSize < 1<<20 {
		return false, nil
	}
	if stats.TotalFiles < 2 && stats.TotalSize < 10<<20 {
		return false, nil
	}
	return stats.EstimatedDeadRatio >= threshold, nil
}

// Run performs one compaction pass. Callers must hold the engine lock for
// the duration of the call: no write or read path may observe a data file
// disappear mid-operation.
func (c *Compactor) Run(_ context.Context, threshold float64, force bool) (Report, error) {
	initialStats, err := c.Stats()
	if err != nil {
		return Report{}, err
	}

	if !force {
		should, err := c.ShouldCompact(threshold)
		if err != nil {
			return Report{}, err
		}
		if !should {
			return Report{Performed: false, Reason: "threshold_not_met", InitialStats: initialStats}, nil
		}
	}

	sourceIDs, err := c.storage.ListFileIDs()
	if err != nil {
		return Report{}, err
	}
	sort.Slice(sourceIDs, func(i, j int) bool { return sourceIDs[i] < sourceIDs[j] })

	sealedActiveID, err := c.storage.SealActiveForCompaction()
	if err != nil {
		return Report{}, err
	}

	newID := sourceIDs[len(sourceIDs)-1] + 1
	newFile, err := c.storage.CreateDataFile(newID)
	if err != nil {
		c.storage.RestoreActive(sealedActiveID)
		return Report{}, errors.NewCompactionError(err, "failed to create compaction target file").
			WithStage("create_new_file")
	}

	report, newIndex, runErr := c.rewrite(sourceIDs, newFile, newID, initialStats)
	if runErr != nil {
		newFile.Close()
		os.Remove(c.storage.Path(newID))
		c.storage.RestoreActive(sealedActiveID)
		return Report{}, runErr
	}

	for _, id := range sourceIDs {
		if err := c.storage.DeleteFile(id); err != nil {
			c.log.Warnw("failed to remove compacted data file", "fileID", id, "error", err)
			continue
		}
		report.FilesRemoved++
		report.RemovedFiles = append(report.RemovedFiles, id)
	}

	c.index.Swap(newIndex)

	finalStats, err := c.Stats()
	if err != nil {
		// The rewrite already succeeded and old files are gone; a stats
		// failure here does not roll back, it just leaves the report's
		// final numbers at their zero value.
		c.log.Warnw("failed to compute post-compaction stats", "error", err)
	} else {
		report.FinalStats = finalStats
	}

	report.Performed = true
	report.SpaceSavedBytes = initialStats.TotalSize - report.FinalStats.TotalSize
	if initialStats.TotalSize > 0 {
		report.SpaceSavedRatio = float64(report.SpaceSavedBytes) / float64(initialStats.TotalSize)
	}

	return report, nil
}

// sourceReader pairs an open read handle on one source file with the codec
// that file was written with, so repeated lookups against the same file
// reuse both without reopening or re-detecting the format.
type sourceReader struct {
	file  *os.File
	codec codec.Codec
}

// rewrite performs steps 5-8 of the algorithm: build the replacement index,
// stream every live record into newFile in sorted-key order, fsync it, and
// install it as the active file. It returns the replacement index without
// installing it and does not delete source files — Run does both only after
// rewrite has fully succeeded.
func (c *Compactor) rewrite(sourceIDs []uint32, newFile *os.File, newID uint32, initialStats Stats) (Report, map[string]index.Entry, error) {
	snapshot := c.index.Snapshot()

	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	readers := make(map[uint32]*sourceReader, len(sourceIDs))
	defer func() {
		for _, r := range readers {
			r.file.Close()
		}
	}()

	newIndex := make(map[string]index.Entry, len(keys))
	var offset int64 = 1
	var bytesWritten int64
	var recordsWritten int

	for _, key := range keys {
		entry := snapshot[key]

		reader, err := c.sourceReaderFor(readers, entry.FileID)
		if err != nil {
			return Report{}, nil, err
		}

		record, err := readRecordAt(reader.file, reader.codec, entry.ValuePos)
		if err != nil {
			c.log.Warnw("skipping unreadable record during compaction", "key", key, "fileID", entry.FileID, "error", err)
			continue
		}
		if record.Deleted || record.Key != key {
			c.log.Warnw("skipping stale record during compaction", "key", key, "fileID", entry.FileID)
			continue
		}

		encoded := c.codec.EncodePut(record.Key, record.Value, record.Timestamp)
		if _, err := newFile.Write(encoded); err != nil {
			return Report{}, nil, errors.NewCompactionError(err, "failed to write compacted record").
				WithStage("rewrite")
		}

		newIndex[key] = index.Entry{
			FileID:    newID,
			ValuePos:  offset,
			ValueSize: uint32(len(record.Value)),
			Timestamp: record.Timestamp,
		}

		offset += int64(len(encoded))
		bytesWritten += int64(len(encoded))
		recordsWritten++
	}

	if err := newFile.Sync(); err != nil {
		return Report{}, nil, errors.NewCompactionError(err, "failed to fsync compacted file").
			WithStage("fsync")
	}

	c.storage.InstallActiveFile(newID, newFile, offset, recordsWritten)

	return Report{
		RecordsWritten: recordsWritten,
		BytesWritten:   bytesWritten,
		InitialStats:   initialStats,
	}, newIndex, nil
}

// sourceReaderFor returns the cached sourceReader for fileID, opening and
// format-detecting the file on first use.
func (c *Compactor) sourceReaderFor(cache map[uint32]*sourceReader, fileID uint32) (*sourceReader, error) {
	if r, ok := cache[fileID]; ok {
		return r, nil
	}

	file, err := c.storage.OpenForRead(fileID)
	if err != nil {
		return nil, errors.NewCompactionError(err, "failed to open source file").
			WithStage("read_source")
	}

	header := make([]byte, 1)
	if _, err := file.ReadAt(header, 0); err != nil {
		file.Close()
		return nil, errors.NewCompactionError(err, "failed to read source file header").
			WithStage("read_source")
	}

	fileCodec, err := c.registry.Lookup(header[0])
	if err != nil {
		file.Close()
		return nil, err
	}

	r := &sourceReader{file: file, codec: fileCodec}
	cache[fileID] = r
	return r, nil
}

// readRecordAt reads and decodes one record starting at pos in file using
// codec. It grows its read buffer and retries until the codec can decode a
// complete record, since the on-disk record length isn't known up front.
func readRecordAt(file *os.File, c codec.Codec, pos int64) (codec.Record, error) {
	const (
		initialChunk = 4096
		maxChunk     = 64 << 20
	)

	for size := initialChunk; size <= maxChunk; size *= 4 {
		buf := make([]byte, size)
		n, err := file.ReadAt(buf, pos)
		if n == 0 && err != nil {
			return codec.Record{}, err
		}
		buf = buf[:n]

		rec, _, decodeErr := c.Decode(buf)
		if decodeErr == nil {
			return rec, nil
		}
		if n < size {
			// Read hit EOF before filling the buffer; growing further won't help.
			return codec.Record{}, decodeErr
		}
	}

	return codec.Record{}, errors.NewDecodeError(nil, "record exceeds maximum supported size")
}
