package codec

import (
	"encoding/binary"

	"github.com/golang/snappy"
	"github.com/zeebo/xxh3"

	"github.com/caskdb/caskdb/pkg/errors"
)

// CompactCodec is the production record format: a 4-byte big-endian length
// prefix followed by a self-describing payload of
//
//	flags(1) | checksum(8) | timestamp(8) | keyLen(4) | key | valueLen(4) | value
//
// flags bit 0 marks a tombstone, bit 1 marks a snappy-compressed value.
// valueLen and value describe the bytes actually on disk (compressed, if
// the flag is set); the caller gets back the decompressed value from
// Decode regardless. checksum is the xxh3-64 hash of everything in the
// payload after the checksum field itself, computed over the on-disk
// (possibly compressed) bytes so a truncated or bit-flipped record is
// caught before decompression is attempted.
type CompactCodec struct {
	compress bool
}

// NewCompactCodec returns the compact binary codec. compress controls
// whether EncodePut tries snappy compression on the value; Decode always
// honors whatever the per-record flag byte says, regardless of compress.
func NewCompactCodec(compress bool) *CompactCodec { return &CompactCodec{compress: compress} }

func (c *CompactCodec) Identifier() byte { return FormatCompact }

const (
	flagDeleted    = 1 << 0
	flagCompressed = 1 << 1

	lengthPrefixSize = 4
	payloadHeadSize  = 1 + 8 + 8 // flags + checksum + timestamp
)

func (c *CompactCodec) EncodePut(key string, value []byte, timestamp uint64) []byte {
	return c.encode(key, value, timestamp, false)
}

func (c *CompactCodec) EncodeDelete(key string, timestamp uint64) []byte {
	return c.encode(key, nil, timestamp, true)
}

func (c *CompactCodec) encode(key string, value []byte, timestamp uint64, deleted bool) []byte {
	var flags byte
	onDiskValue := value

	if deleted {
		flags |= flagDeleted
		onDiskValue = nil
	} else if c.compress && len(value) > 0 {
		compressed := snappy.Encode(nil, value)
		if len(compressed) < len(value) {
			flags |= flagCompressed
			onDiskValue = compressed
		}
	}

	keyBytes := []byte(key)
	payloadLen := payloadHeadSize + 4 + len(keyBytes) + 4 + len(onDiskValue)
	buf := make([]byte, lengthPrefixSize+payloadLen)

	binary.BigEndian.PutUint32(buf[0:4], uint32(payloadLen))

	payload := buf[lengthPrefixSize:]
	payload[0] = flags
	// checksum filled in after the rest of the payload is written.
	binary.BigEndian.PutUint64(payload[9:17], timestamp)
	binary.BigEndian.PutUint32(payload[17:21], uint32(len(keyBytes)))
	copy(payload[21:21+len(keyBytes)], keyBytes)

	valueLenOff := 21 + len(keyBytes)
	binary.BigEndian.PutUint32(payload[valueLenOff:valueLenOff+4], uint32(len(onDiskValue)))
	copy(payload[valueLenOff+4:], onDiskValue)

	checksum := xxh3.Hash(payload[9:])
	binary.BigEndian.PutUint64(payload[1:9], checksum)

	return buf
}

func (c *CompactCodec) Decode(data []byte) (Record, int, error) {
	if len(data) < lengthPrefixSize {
		return Record{}, 0, errors.NewDecodeError(nil, "truncated length prefix")
	}

	payloadLen := int(binary.BigEndian.Uint32(data[0:4]))
	total := lengthPrefixSize + payloadLen
	if payloadLen < payloadHeadSize || len(data) < total {
		return Record{}, 0, errors.NewDecodeError(nil, "truncated record payload")
	}

	payload := data[lengthPrefixSize:total]
	flags := payload[0]
	wantChecksum := binary.BigEndian.Uint64(payload[1:9])
	gotChecksum := xxh3.Hash(payload[9:])
	if wantChecksum != gotChecksum {
		return Record{}, 0, errors.NewDecodeError(nil, "checksum mismatch").
			WithDetail("want", wantChecksum).WithDetail("got", gotChecksum)
	}

	timestamp := binary.BigEndian.Uint64(payload[9:17])
	keyLen := int(binary.BigEndian.Uint32(payload[17:21]))
	if 21+keyLen+4 > len(payload) {
		return Record{}, 0, errors.NewDecodeError(nil, "key length out of bounds")
	}
	key := string(payload[21 : 21+keyLen])

	valueLenOff := 21 + keyLen
	valueLen := int(binary.BigEndian.Uint32(payload[valueLenOff : valueLenOff+4]))
	valueOff := valueLenOff + 4
	if valueOff+valueLen > len(payload) {
		return Record{}, 0, errors.NewDecodeError(nil, "value length out of bounds")
	}
	onDiskValue := payload[valueOff : valueOff+valueLen]

	if flags&flagDeleted != 0 {
		return Record{Key: key, Timestamp: timestamp, Deleted: true}, total, nil
	}

	value := onDiskValue
	if flags&flagCompressed != 0 {
		decoded, err := snappy.Decode(nil, onDiskValue)
		if err != nil {
			return Record{}, 0, errors.NewDecodeError(err, "snappy decompression failed")
		}
		value = decoded
	}

	return Record{Key: key, Value: value, Timestamp: timestamp}, total, nil
}
