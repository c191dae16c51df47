// Package codec implements the two on-disk record formats Ignite supports:
// a compact binary format for production use and a line-oriented JSON format
// for debugging. Every data file begins with a single format-identifier byte
// that names which codec wrote it; Registry resolves that byte back to a
// Codec at recovery time so a directory can in principle mix files written
// under different settings across the lifetime of a database.
package codec

import (
	"github.com/caskdb/caskdb/pkg/errors"
)

// Format identifiers. These are the first byte written to every data file
// and are used by Registry to pick the codec a file was written with.
const (
	FormatCompact  byte = 0x01
	FormatReadable byte = 0x02
)

// Record is the decoded form of a single log entry: a key, its value (nil
// for a tombstone), the write timestamp, and whether it is a tombstone.
type Record struct {
	Key       string
	Value     []byte
	Timestamp uint64
	Deleted   bool
}

// Codec encodes and decodes records for one on-disk format. Implementations
// are stateless and safe for concurrent use.
type Codec interface {
	// Identifier returns the single byte written at the start of every data
	// file created with this codec.
	Identifier() byte

	// EncodePut returns the bytes to append to a data file for a put of key=value
	// at the given timestamp.
	EncodePut(key string, value []byte, timestamp uint64) []byte

	// EncodeDelete returns the bytes to append to a data file recording a
	// tombstone for key at the given timestamp.
	EncodeDelete(key string, timestamp uint64) []byte

	// Decode parses one record out of the front of data, returning the
	// record and the number of bytes it consumed. It returns a CodecError
	// with ErrorCodeDecode if data does not hold a complete, valid record.
	Decode(data []byte) (Record, int, error)
}

// Registry resolves a format-identifier byte to the Codec that wrote it.
type Registry struct {
	codecs map[byte]Codec
}

// NewRegistry builds a Registry pre-populated with every codec this package
// implements.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[byte]Codec, 2)}
	r.Register(NewCompactCodec(false))
	r.Register(NewReadableCodec())
	return r
}

// Register adds or replaces the codec handling c's format identifier.
func (r *Registry) Register(c Codec) {
	r.codecs[c.Identifier()] = c
}

// Lookup returns the codec registered for identifier, or a CodecError with
// ErrorCodeUnknownFormat if none is registered.
func (r *Registry) Lookup(identifier byte) (Codec, error) {
	c, ok := r.codecs[identifier]
	if !ok {
		return nil, errors.NewUnknownFormatError(identifier)
	}
	return c, nil
}

// For returns the codec for a format identifier byte; any identifier other
// than FormatReadable yields the compact codec. Callers writing a
// brand-new data file use this to pick the codec rather than going through
// Lookup, since there is no format byte to look up yet. compress is only
// meaningful for the compact codec.
func For(identifier byte, compress bool) Codec {
	switch identifier {
	case FormatReadable:
		return NewReadableCodec()
	default:
		return NewCompactCodec(compress)
	}
}
