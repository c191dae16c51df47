package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caskdb/caskdb/internal/codec"
	"github.com/caskdb/caskdb/pkg/errors"
)

func Test_Registry_LooksUpRegisteredCodecs(t *testing.T) {
	t.Parallel()

	r := codec.NewRegistry()

	c, err := r.Lookup(codec.FormatCompact)
	require.NoError(t, err)
	require.Equal(t, codec.FormatCompact, c.Identifier())

	c, err = r.Lookup(codec.FormatReadable)
	require.NoError(t, err)
	require.Equal(t, codec.FormatReadable, c.Identifier())
}

func Test_Registry_RejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	r := codec.NewRegistry()

	_, err := r.Lookup(0xFF)
	require.Error(t, err)
	require.True(t, errors.IsCodecError(err))

	codecErr, ok := errors.AsCodecError(err)
	require.True(t, ok)
	require.Equal(t, errors.ErrorCodeUnknownFormat, codecErr.Code())
}
