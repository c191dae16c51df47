package engine

import (
	"io"
	"sort"

	"github.com/caskdb/caskdb/internal/codec"
	"github.com/caskdb/caskdb/internal/index"
)

// recover rebuilds the index by scanning every data file, smallest id to
// largest, applying puts and tombstones in file order so that, within the
// explicit-timestamp-comparison rule implemented by
// index.PutIfNewer/DeleteIfNewerOrEqual, the newest write for every key
// wins regardless of which file it was replayed from.
func (e *Engine) recover() error {
	ids, err := e.storage.ListFileIDs()
	if err != nil {
		return err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var activeEntryCount int

	for _, fileID := range ids {
		count, err := e.recoverFile(fileID)
		if err != nil {
			return err
		}
		if fileID == e.storage.ActiveID() {
			activeEntryCount = count
		}
	}

	e.storage.SetEntryCount(activeEntryCount)
	return nil
}

// recoverFile replays every record in one data file into the index,
// returning how many records it found. A decode error truncates the scan of
// that file only; an unrecognized format identifier skips the whole file.
func (e *Engine) recoverFile(fileID uint32) (int, error) {
	file, err := e.storage.OpenForRead(fileID)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	header := make([]byte, 1)
	if _, err := file.ReadAt(header, 0); err != nil {
		if err == io.EOF {
			return 0, nil // empty file
		}
		return 0, err
	}

	fileCodec, err := e.registry.Lookup(header[0])
	if err != nil {
		e.log.Warnw("skipping data file with unrecognized format", "fileID", fileID)
		return 0, nil
	}

	var pos int64 = 1
	var count int

	for {
		record, consumed, err := recoverRecordAt(file, fileCodec, pos)
		if err != nil {
			if err == io.EOF {
				break
			}
			e.log.Warnw("truncating recovery scan: undecodable record", "fileID", fileID, "offset", pos, "error", err)
			break
		}

		if record.Deleted {
			e.index.DeleteIfNewerOrEqual(record.Key, record.Timestamp)
		} else {
			e.index.PutIfNewer(record.Key, index.Entry{
				FileID:    fileID,
				ValuePos:  pos,
				ValueSize: uint32(len(record.Value)),
				Timestamp: record.Timestamp,
			})
		}

		pos += int64(consumed)
		count++
	}

	return count, nil
}

// recoverRecordAt decodes one record starting at pos, growing its read
// buffer the same way ops.go's readRecordAt and compaction.go's
// readRecordAt do, so a record larger than the initial chunk is replayed
// instead of being mistaken for a truncated file. Returns io.EOF once pos
// is at or past the end of the file.
func recoverRecordAt(file readerAt, fileCodec codec.Codec, pos int64) (codec.Record, int, error) {
	const (
		initialChunk = 4096
		maxChunk     = 64 << 20
	)

	var lastErr error
	for size := initialChunk; size <= maxChunk; size *= 4 {
		buf := make([]byte, size)
		n, readErr := file.ReadAt(buf, pos)
		if n == 0 {
			if readErr == nil {
				readErr = io.EOF
			}
			return codec.Record{}, 0, readErr
		}
		buf = buf[:n]

		record, consumed, decodeErr := fileCodec.Decode(buf)
		if decodeErr == nil {
			return record, consumed, nil
		}
		lastErr = decodeErr
		if n < size {
			break
		}
	}

	return codec.Record{}, 0, lastErr
}
