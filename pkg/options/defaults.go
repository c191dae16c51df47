package options

import "time"

const (
	// DefaultDataDir is used when no directory is supplied to Open.
	DefaultDataDir = "./ignitedata"

	// DefaultCompactionThreshold is the dead-byte ratio (see compaction.Stats)
	// above which should_compact reports true.
	DefaultCompactionThreshold = 0.3

	// DefaultSchedulerInterval is how often the background scheduler checks
	// whether compaction is warranted, when a scheduler is started without an
	// explicit interval.
	DefaultSchedulerInterval = 5 * time.Hour

	// DefaultCodec selects the compact binary codec for new files.
	DefaultCodec = CodecCompact

	// MinRotationSize is the smallest max-bytes value WithRotationSize accepts.
	MinRotationSize uint64 = 4 * 1024

	// MaxRotationSize is the largest max-bytes value WithRotationSize accepts.
	MaxRotationSize uint64 = 4 * 1024 * 1024 * 1024
)

// Holds the default configuration settings for an Ignite instance.
var defaultOptions = Options{
	DataDir:             DefaultDataDir,
	Codec:               DefaultCodec,
	Compression:         false,
	CompactionThreshold: DefaultCompactionThreshold,
	SchedulerInterval:   DefaultSchedulerInterval,
}

// NewDefaultOptions returns a copy of the package defaults, ready to be
// overridden by applying OptionFuncs on top.
func NewDefaultOptions() Options {
	return defaultOptions
}
