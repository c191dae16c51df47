// Package options provides data structures and functions for configuring
// the Ignite database. It defines the parameters that control Ignite's
// on-disk layout, record codec, rotation policy, and compaction behavior,
// following the functional-options pattern used throughout this codebase.
package options

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// CodecChoice selects which record codec new data files are written with.
// Existing files are always read with whatever codec their format
// identifier byte names, regardless of this setting.
type CodecChoice int

const (
	// CodecCompact selects the length-prefixed binary codec (format 0x01).
	CodecCompact CodecChoice = iota
	// CodecReadable selects the line-oriented text codec (format 0x02).
	CodecReadable
)

// RotationConfig describes when the active data file should be sealed and a
// new one opened. A zero value of a given field means that trigger is not
// configured; an Options with every trigger unset behaves as the null
// rotation policy (the active file is never rotated).
type RotationConfig struct {
	// MaxBytes triggers rotation once the active file reaches this size.
	MaxBytes uint64 `json:"maxBytes"`

	// MaxEntries triggers rotation once the active file holds this many records.
	MaxEntries uint64 `json:"maxEntries"`

	// Interval triggers rotation once this much time has elapsed since the
	// last rotation (or since the engine was opened, for the first check).
	Interval time.Duration `json:"interval"`
}

// Options defines the configuration parameters for an Ignite instance. It
// provides control over storage layout, the record format, rotation, and
// compaction, with every field flowing in as an explicit constructor
// argument rather than through any process-wide configuration singleton.
type Options struct {
	// DataDir is the base path where data_<N>.db files and the directory
	// lock file are stored.
	//
	// Default: "./ignitedata"
	DataDir string `json:"dataDir"`

	// Codec selects which record format new data files are written with.
	//
	// Default: CodecCompact
	Codec CodecChoice `json:"codec"`

	// Compression enables snappy compression of value bytes in the compact
	// codec. Has no effect when Codec is CodecReadable.
	//
	// Default: false
	Compression bool `json:"compression"`

	// Rotation configures when the active file is sealed in favor of a new
	// one. A zero-value RotationConfig disables rotation entirely.
	Rotation RotationConfig `json:"rotation"`

	// CompactionThreshold is the default dead-byte ratio passed to
	// should_compact by the background scheduler.
	//
	// Default: 0.3
	CompactionThreshold float64 `json:"compactionThreshold"`

	// SchedulerInterval is how often a started background scheduler checks
	// whether compaction is warranted.
	//
	// Default: 5h
	SchedulerInterval time.Duration `json:"schedulerInterval"`

	// Logger receives structured diagnostics from every subsystem.
	// NewDefaultOptions leaves it nil; ignite.Open installs a production
	// logger from pkg/logger when none is supplied.
	Logger *zap.SugaredLogger `json:"-"`
}

// OptionFunc is a function type that modifies Ignite's configuration.
type OptionFunc func(*Options)

// WithDefaultOptions resets DataDir, Codec, Compression, CompactionThreshold,
// and SchedulerInterval to the package defaults, leaving any previously
// applied Rotation/Logger untouched. Intended to be the first option in a
// chain when callers want the defaults as a known baseline.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		defaults := NewDefaultOptions()
		o.DataDir = defaults.DataDir
		o.Codec = defaults.Codec
		o.Compression = defaults.Compression
		o.CompactionThreshold = defaults.CompactionThreshold
		o.SchedulerInterval = defaults.SchedulerInterval
	}
}

// WithDataDir sets the primary data directory for Ignite.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithReadableCodec selects the human-readable text codec for new files.
func WithReadableCodec() OptionFunc {
	return func(o *Options) { o.Codec = CodecReadable }
}

// WithCompactCodec selects the compact binary codec for new files. This is
// the default, but is provided for callers that build Options incrementally.
func WithCompactCodec() OptionFunc {
	return func(o *Options) { o.Codec = CodecCompact }
}

// WithCompression enables snappy compression of values written by the
// compact codec.
func WithCompression(enabled bool) OptionFunc {
	return func(o *Options) { o.Compression = enabled }
}

// WithRotationSize adds a size-based rotation trigger.
func WithRotationSize(maxBytes uint64) OptionFunc {
	return func(o *Options) {
		if maxBytes >= MinRotationSize && maxBytes <= MaxRotationSize {
			o.Rotation.MaxBytes = maxBytes
		}
	}
}

// WithRotationEntries adds an entry-count rotation trigger.
func WithRotationEntries(maxEntries uint64) OptionFunc {
	return func(o *Options) {
		if maxEntries > 0 {
			o.Rotation.MaxEntries = maxEntries
		}
	}
}

// WithRotationInterval adds a time-based rotation trigger.
func WithRotationInterval(interval time.Duration) OptionFunc {
	return func(o *Options) {
		if interval > 0 {
			o.Rotation.Interval = interval
		}
	}
}

// WithCompactionThreshold sets the default dead-byte ratio the background
// scheduler uses when StartScheduler is given no threshold.
func WithCompactionThreshold(threshold float64) OptionFunc {
	return func(o *Options) {
		if threshold >= 0 && threshold <= 1 {
			o.CompactionThreshold = threshold
		}
	}
}

// WithSchedulerInterval sets how often a started background scheduler checks
// whether compaction is warranted.
func WithSchedulerInterval(interval time.Duration) OptionFunc {
	return func(o *Options) {
		if interval > 0 {
			o.SchedulerInterval = interval
		}
	}
}

// WithLogger installs a structured logger used by every subsystem.
func WithLogger(logger *zap.SugaredLogger) OptionFunc {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}
