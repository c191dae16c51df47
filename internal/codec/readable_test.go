package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caskdb/caskdb/internal/codec"
)

func Test_ReadableCodec_RoundTrips_Put(t *testing.T) {
	t.Parallel()

	c := codec.NewReadableCodec()
	encoded := c.EncodePut("hello", []byte("world"), 7)

	rec, n, err := c.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, len(encoded), n)
	require.Equal(t, "hello", rec.Key)
	require.Equal(t, []byte("world"), rec.Value)
	require.Equal(t, uint64(7), rec.Timestamp)
	require.False(t, rec.Deleted)
}

func Test_ReadableCodec_RoundTrips_Tombstone(t *testing.T) {
	t.Parallel()

	c := codec.NewReadableCodec()
	encoded := c.EncodeDelete("hello", 9)

	rec, _, err := c.Decode(encoded)
	require.NoError(t, err)
	require.True(t, rec.Deleted)
}

func Test_ReadableCodec_RoundTrips_BinaryValue(t *testing.T) {
	t.Parallel()

	c := codec.NewReadableCodec()
	value := []byte{0x00, 0xFF, 0x10, 0x20}
	encoded := c.EncodePut("k", value, 1)

	rec, _, err := c.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, value, rec.Value)
}

func Test_ReadableCodec_DetectsMissingNewline(t *testing.T) {
	t.Parallel()

	c := codec.NewReadableCodec()
	encoded := c.EncodePut("k", []byte("v"), 1)

	_, _, err := c.Decode(encoded[:len(encoded)-1])
	require.Error(t, err)
}

func Test_ReadableCodec_Identifier(t *testing.T) {
	t.Parallel()
	require.Equal(t, codec.FormatReadable, codec.NewReadableCodec().Identifier())
}
