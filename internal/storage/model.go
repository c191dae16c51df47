package storage

import (
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/caskdb/caskdb/pkg/dirlock"
	"github.com/caskdb/caskdb/pkg/options"
)

// Storage owns the active data file and the directory lock that keeps a
// second process from opening the same data directory concurrently. It
// knows nothing about records: callers hand it raw bytes to append and get
// back the file id and offset those bytes landed at, leaving record
// structure entirely to the engine and codec layers.
type Storage struct {
	mu sync.Mutex

	dataDir string
	codecID byte

	lock *dirlock.Lock

	activeID    uint32
	activeFile  *os.File
	activeSize  int64
	activeCount int

	options *options.Options
	log     *zap.SugaredLogger

	closed atomic.Bool
}

// Config carries the parameters Open needs to bring a Storage online.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}
