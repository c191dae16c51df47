package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/caskdb/caskdb/pkg/errors"
)

// ReadableCodec is the debug record format: one JSON object per line, value
// bytes base64-encoded so arbitrary binary values survive the text
// round-trip. There is no third-party JSON or line-scanning library in the
// example pack that improves on stdlib encoding/json for this narrow,
// debug-only format, so this codec is the one deliberately stdlib-only
// piece of the record layer (see DESIGN.md).
type ReadableCodec struct{}

// NewReadableCodec returns the line-oriented JSON codec.
func NewReadableCodec() *ReadableCodec { return &ReadableCodec{} }

func (c *ReadableCodec) Identifier() byte { return FormatReadable }

type readableRecord struct {
	Key       string `json:"key"`
	Value     string `json:"value,omitempty"`
	Timestamp uint64 `json:"timestamp"`
	Deleted   bool   `json:"deleted,omitempty"`
}

func (c *ReadableCodec) EncodePut(key string, value []byte, timestamp uint64) []byte {
	rec := readableRecord{Key: key, Value: base64.StdEncoding.EncodeToString(value), Timestamp: timestamp}
	return c.marshalLine(rec)
}

func (c *ReadableCodec) EncodeDelete(key string, timestamp uint64) []byte {
	rec := readableRecord{Key: key, Timestamp: timestamp, Deleted: true}
	return c.marshalLine(rec)
}

func (c *ReadableCodec) marshalLine(rec readableRecord) []byte {
	line, err := json.Marshal(rec)
	if err != nil {
		// rec is always representable as JSON: a string, a bool, and a uint64.
		panic(err)
	}
	return append(line, '\n')
}

func (c *ReadableCodec) Decode(data []byte) (Record, int, error) {
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return Record{}, 0, errors.NewDecodeError(nil, "truncated record line")
	}

	var rec readableRecord
	if err := json.Unmarshal(data[:idx], &rec); err != nil {
		return Record{}, 0, errors.NewDecodeError(err, "malformed json record")
	}

	consumed := idx + 1
	if rec.Deleted {
		return Record{Key: rec.Key, Timestamp: rec.Timestamp, Deleted: true}, consumed, nil
	}

	value, err := base64.StdEncoding.DecodeString(rec.Value)
	if err != nil {
		return Record{}, 0, errors.NewDecodeError(err, "malformed base64 value")
	}

	return Record{Key: rec.Key, Value: value, Timestamp: rec.Timestamp}, consumed, nil
}
