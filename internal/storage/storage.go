// Package storage manages the append-only data files backing an Ignite
// database: which one is active, how big it is, and the mechanics of
// appending to it, rotating it, and reading any file (active or sealed) back
// for recovery, Get, or compaction. It knows nothing about record structure;
// internal/codec owns that.
package storage

import (
	"context"
	stdErrors "errors"
	"io"
	"os"

	"github.com/caskdb/caskdb/internal/codec"
	"github.com/caskdb/caskdb/pkg/datafile"
	"github.com/caskdb/caskdb/pkg/dirlock"
	"github.com/caskdb/caskdb/pkg/errors"
	"github.com/caskdb/caskdb/pkg/filesys"
	"github.com/caskdb/caskdb/pkg/options"
)

var ErrStorageClosed = stdErrors.New("operation failed: cannot access closed storage")

// Open brings a Storage online: it creates the data directory if needed,
// takes the directory lock, discovers existing data files, and opens the
// most recent one (or creates file 1) as the active file for appends.
func Open(ctx context.Context, config *Config) (*Storage, error) {
	if config == nil || config.Options == nil || config.Logger == nil {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "storage configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}

	dataDir := config.Options.DataDir
	config.Logger.Infow("initializing storage", "dataDir", dataDir)

	if err := filesys.CreateDir(dataDir, 0755, true); err != nil {
		return nil, errors.ClassifyDirectoryCreationError(err, dataDir)
	}

	lock, err := dirlock.Acquire(dataDir)
	if err != nil {
		return nil, err
	}

	codecID := codec.FormatCompact
	if config.Options.Codec == options.CodecReadable {
		codecID = codec.FormatReadable
	}

	s := &Storage{
		dataDir: dataDir,
		codecID: codecID,
		lock:    lock,
		options: config.Options,
		log:     config.Logger,
	}

	ids, err := datafile.List(dataDir)
	if err != nil {
		lock.Release()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to list data files").WithPath(dataDir)
	}

	targetID := datafile.Max(ids)
	isNew := targetID == 0
	if isNew {
		targetID = 1
	}

	file, size, err := s.openActiveFile(targetID, isNew)
	if err != nil {
		lock.Release()
		return nil, err
	}

	s.activeID = targetID
	s.activeFile = file
	s.activeSize = size

	config.Logger.Infow("storage initialized", "activeID", targetID, "size", size, "isNew", isNew)
	return s, nil
}

// openActiveFile opens (or creates) the data file for id, writing the codec
// identifier header byte first if the file is new, and returns the open
// handle positioned for appends along with the file's current size.
func (s *Storage) openActiveFile(id uint32, isNew bool) (*os.File, int64, error) {
	path := datafile.Path(s.dataDir, id)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, 0, errors.ClassifyFileOpenError(err, path, datafile.Name(id))
	}

	if isNew {
		if _, err := file.Write([]byte{s.codecID}); err != nil {
			file.Close()
			return nil, 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to write data file header").
				WithPath(path)
		}
		return file, 1, nil
	}

	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to seek to end of data file").
			WithPath(path)
	}

	return file, size, nil
}

// Append writes data to the end of the active file and returns the file id
// and the absolute offset the write started at.
func (s *Storage) Append(data []byte) (fileID uint32, pos int64, err error) {
	if s.closed.Load() {
		return 0, 0, ErrStorageClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos = s.activeSize
	n, err := s.activeFile.Write(data)
	if err != nil {
		return 0, 0, errors.ClassifySyncError(err, datafile.Name(s.activeID), s.Path(s.activeID), int(pos))
	}

	s.activeSize += int64(n)
	s.activeCount++
	return s.activeID, pos, nil
}

// Fsync flushes the active file to stable storage.
func (s *Storage) Fsync() error {
	if s.closed.Load() {
		return ErrStorageClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.activeFile.Sync(); err != nil {
		return errors.ClassifySyncError(err, datafile.Name(s.activeID), s.Path(s.activeID), int(s.activeSize))
	}
	return nil
}

// ActiveID returns the id of the file currently accepting appends.
func (s *Storage) ActiveID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Size returns the current size in bytes of the active file.
func (s *Storage) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeSize
}

// EntryCount returns the number of records appended to the active file
// since it became active (including ones discovered by SetEntryCount
// during recovery, not just ones appended this process lifetime).
func (s *Storage) EntryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeCount
}

// SetEntryCount overrides the active file's tracked entry count. The
// recovery scan in the engine calls this once it has replayed every record
// already present in the active file, so rotation triggers account for
// pre-existing records, not just ones appended this run.
func (s *Storage) SetEntryCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeCount = n
}

// Rotate seals the active file and opens a new one, returning the new
// file's id. The sealed file remains on disk and readable via OpenForRead.
func (s *Storage) Rotate() (uint32, error) {
	if s.closed.Load() {
		return 0, ErrStorageClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.activeFile.Sync(); err != nil {
		return 0, errors.ClassifySyncError(err, datafile.Name(s.activeID), s.Path(s.activeID), int(s.activeSize))
	}
	if err := s.activeFile.Close(); err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to close sealed data file").
			WithPath(s.Path(s.activeID))
	}

	newID := s.activeID + 1
	file, _, err := s.openActiveFile(newID, true)
	if err != nil {
		return 0, err
	}

	s.log.Infow("rotated active data file", "previousID", s.activeID, "newID", newID)

	s.activeID = newID
	s.activeFile = file
	s.activeSize = 1
	s.activeCount = 0
	return newID, nil
}

// SealActiveForCompaction closes the active file handle without opening a
// replacement, returning its id. The file remains on disk and readable via
// OpenForRead; Append must not be called again until RestoreActive or
// InstallActiveFile makes some file active again. Callers must hold the
// engine lock for the duration of the compaction pass this enables.
func (s *Storage) SealActiveForCompaction() (uint32, error) {
	if s.closed.Load() {
		return 0, ErrStorageClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.activeFile.Sync(); err != nil {
		return 0, errors.ClassifySyncError(err, datafile.Name(s.activeID), s.Path(s.activeID), int(s.activeSize))
	}
	if err := s.activeFile.Close(); err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to close active data file for compaction").
			WithPath(s.Path(s.activeID))
	}

	sealedID := s.activeID
	s.activeFile = nil
	return sealedID, nil
}

// RestoreActive reopens the data file for id as the active file, undoing a
// SealActiveForCompaction when a subsequent compaction step fails.
func (s *Storage) RestoreActive(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, size, err := s.openActiveFile(id, false)
	if err != nil {
		return err
	}

	s.activeID = id
	s.activeFile = file
	s.activeSize = size
	return nil
}

// CreateDataFile creates a brand-new data file for id, writes the codec
// identifier header byte, and returns the open handle. The file is not
// installed as active; call InstallActiveFile once it is fully written and
// fsynced.
func (s *Storage) CreateDataFile(id uint32) (*os.File, error) {
	path := datafile.Path(s.dataDir, id)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.ClassifyFileOpenError(err, path, datafile.Name(id))
	}

	if _, err := file.Write([]byte{s.codecID}); err != nil {
		file.Close()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to write data file header").
			WithPath(path)
	}

	return file, nil
}

// InstallActiveFile makes file (already fully written and fsynced, at id)
// the active file, with size and entryCount reflecting its contents.
func (s *Storage) InstallActiveFile(id uint32, file *os.File, size int64, entryCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeID = id
	s.activeFile = file
	s.activeSize = size
	s.activeCount = entryCount
}

// Reset closes the active file and makes a fresh, empty data_1.db the active
// file, truncating data_1.db if it already exists. No other data file is
// touched, including the previously active one if its id was not 1; callers
// that want a fully empty directory must remove the rest themselves once
// Reset returns.
func (s *Storage) Reset() error {
	if s.closed.Load() {
		return ErrStorageClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeFile != nil {
		s.activeFile.Close()
	}

	path := datafile.Path(s.dataDir, 1)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		return errors.ClassifyFileOpenError(err, path, datafile.Name(1))
	}
	if _, err := file.Write([]byte{s.codecID}); err != nil {
		file.Close()
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to write data file header").WithPath(path)
	}

	s.activeID = 1
	s.activeFile = file
	s.activeSize = 1
	s.activeCount = 0
	return nil
}

// OpenForRead opens the data file for id in read-only mode, for recovery,
// Get, or compaction scans. The caller owns the returned handle and must
// close it.
func (s *Storage) OpenForRead(id uint32) (*os.File, error) {
	path := s.Path(id)
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.ClassifyFileOpenError(err, path, datafile.Name(id))
	}
	return file, nil
}

// Path returns the filesystem path of the data file for id.
func (s *Storage) Path(id uint32) string {
	return datafile.Path(s.dataDir, id)
}

// ListFileIDs returns the ids of every data file currently in the data
// directory, sorted ascending, including the active one.
func (s *Storage) ListFileIDs() ([]uint32, error) {
	ids, err := datafile.List(s.dataDir)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to list data files").WithPath(s.dataDir)
	}
	return ids, nil
}

// FileSize returns the size in bytes of the data file for id.
func (s *Storage) FileSize(id uint32) (int64, error) {
	info, err := os.Stat(s.Path(id))
	if err != nil {
		return 0, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to stat data file").WithPath(s.Path(id))
	}
	return info.Size(), nil
}

// DeleteFile removes a sealed (non-active) data file from disk. Callers
// must never pass the active file's id.
func (s *Storage) DeleteFile(id uint32) error {
	if err := os.Remove(s.Path(id)); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to remove compacted data file").
			WithPath(s.Path(id))
	}
	return nil
}

// Close fsyncs and closes the active file and releases the directory lock.
func (s *Storage) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrStorageClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var closeErr error
	if err := s.activeFile.Sync(); err != nil {
		closeErr = err
	}
	if err := s.activeFile.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	if err := s.lock.Release(); err != nil && closeErr == nil {
		closeErr = err
	}

	if closeErr != nil {
		return errors.NewStorageError(closeErr, errors.ErrorCodeIO, "failed to close storage cleanly").
			WithPath(s.Path(s.activeID))
	}
	return nil
}
