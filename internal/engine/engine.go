// Package engine is the central coordinator of an Ignite database. It owns
// the index, the storage subsystem, and the rotation policy, and exposes
// the put/get/delete/batch/compact operations, all serialized behind one
// lock.
package engine

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/caskdb/caskdb/internal/codec"
	"github.com/caskdb/caskdb/internal/index"
	"github.com/caskdb/caskdb/internal/rotation"
	"github.com/caskdb/caskdb/internal/storage"
	"github.com/caskdb/caskdb/pkg/options"
)

var ErrEngineClosed = stdErrors.New("operation failed: cannot access closed engine")

// New brings an Engine online: opens storage (creating the data directory
// and taking the directory lock if needed), then recovers the index by
// scanning every existing data file in ascending file-id order.
func New(ctx context.Context, config *Config) (*Engine, error) {
	idx, err := index.New(ctx, &index.Config{DataDir: config.Options.DataDir, Logger: config.Logger})
	if err != nil {
		return nil, err
	}

	st, err := storage.Open(ctx, &storage.Config{Options: config.Options, Logger: config.Logger})
	if err != nil {
		return nil, err
	}

	registry := codec.NewRegistry()
	writer := codec.For(codecIdentifier(config.Options.Codec), config.Options.Compression)

	rotationPolicy := rotation.FromConfig(
		config.Options.Rotation.MaxBytes,
		config.Options.Rotation.MaxEntries,
		config.Options.Rotation.Interval,
		time.Now(),
	)

	e := &Engine{
		options:  config.Options,
		log:      config.Logger,
		index:    idx,
		storage:  st,
		registry: registry,
		writer:   writer,
		rotation: rotationPolicy,
	}

	if err := e.recover(); err != nil {
		st.Close()
		return nil, err
	}

	return e, nil
}

func codecIdentifier(choice options.CodecChoice) byte {
	if choice == options.CodecReadable {
		return codec.FormatReadable
	}
	return codec.FormatCompact
}

// Close flushes and closes the active file, stops the background scheduler
// if running, and releases the directory lock.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	if e.scheduler != nil && e.scheduler.IsRunning() {
		e.scheduler.Stop(0)
	}

	storageErr := e.storage.Close()
	indexErr := e.index.Close()
	if storageErr != nil {
		return storageErr
	}
	return indexErr
}
