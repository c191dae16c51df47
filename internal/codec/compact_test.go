package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caskdb/caskdb/internal/codec"
)

func Test_CompactCodec_RoundTrips_Put(t *testing.T) {
	t.Parallel()

	c := codec.NewCompactCodec(true)
	encoded := c.EncodePut("hello", []byte("world"), 42)

	rec, n, err := c.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, len(encoded), n)
	require.Equal(t, "hello", rec.Key)
	require.Equal(t, []byte("world"), rec.Value)
	require.Equal(t, uint64(42), rec.Timestamp)
	require.False(t, rec.Deleted)
}

func Test_CompactCodec_RoundTrips_Tombstone(t *testing.T) {
	t.Parallel()

	c := codec.NewCompactCodec(true)
	encoded := c.EncodeDelete("hello", 99)

	rec, n, err := c.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, len(encoded), n)
	require.Equal(t, "hello", rec.Key)
	require.True(t, rec.Deleted)
	require.Empty(t, rec.Value)
}

func Test_CompactCodec_CompressesLargeRepetitiveValues(t *testing.T) {
	t.Parallel()

	c := codec.NewCompactCodec(true)
	value := make([]byte, 4096)
	for i := range value {
		value[i] = 'a'
	}

	encoded := c.EncodePut("k", value, 1)
	rec, _, err := c.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, value, rec.Value)
	require.Less(t, len(encoded), len(value), "compressible value should encode smaller than raw")
}

func Test_CompactCodec_DetectsChecksumMismatch(t *testing.T) {
	t.Parallel()

	c := codec.NewCompactCodec(true)
	encoded := c.EncodePut("k", []byte("v"), 1)
	encoded[len(encoded)-1] ^= 0xFF

	_, _, err := c.Decode(encoded)
	require.Error(t, err)
}

func Test_CompactCodec_DetectsTruncatedRecord(t *testing.T) {
	t.Parallel()

	c := codec.NewCompactCodec(true)
	encoded := c.EncodePut("k", []byte("v"), 1)

	_, _, err := c.Decode(encoded[:len(encoded)-2])
	require.Error(t, err)
}

func Test_CompactCodec_Identifier(t *testing.T) {
	t.Parallel()
	require.Equal(t, codec.FormatCompact, codec.NewCompactCodec(true).Identifier())
}
