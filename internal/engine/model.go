package engine

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/caskdb/caskdb/internal/codec"
	"github.com/caskdb/caskdb/internal/compaction"
	"github.com/caskdb/caskdb/internal/index"
	"github.com/caskdb/caskdb/internal/rotation"
	"github.com/caskdb/caskdb/internal/scheduler"
	"github.com/caskdb/caskdb/internal/storage"
	"github.com/caskdb/caskdb/pkg/options"
)

// Engine coordinates the index, storage, and rotation subsystems behind a
// single lock: put, delete, batch_write, get, clear, list_keys, compact, and
// recovery all serialize through the same mutex, so callers see a total
// order on operations and no reader ever observes a torn record.
type Engine struct {
	mu sync.Mutex

	options  *options.Options
	log      *zap.SugaredLogger
	index    *index.Index
	storage  *storage.Storage
	registry *codec.Registry
	writer   codec.Codec
	rotation rotation.Policy

	compactorInst *compaction.Compactor
	scheduler     *scheduler.Scheduler

	closed atomic.Bool
}

// Config holds the parameters New needs to construct an Engine.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}
