package feed

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itter-sh/itter/internal/common"
)

func TestCursor_RoundTrip(t *testing.T) {
	for _, seq := range []int64{1, 42, 1 << 40} {
		got, err := decodeCursor(encodeCursor(seq))
		require.NoError(t, err)
		assert.Equal(t, seq, got)
	}
}

func TestCursor_EmptyMeansTop(t *testing.T) {
	got, err := decodeCursor("")
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestCursor_Invalid(t *testing.T) {
	bad := []string{
		"not base64 at all!",
		base64.RawURLEncoding.EncodeToString([]byte("whatever")),
		base64.RawURLEncoding.EncodeToString([]byte("seq:abc")),
		base64.RawURLEncoding.EncodeToString([]byte("seq:0")),
		base64.RawURLEncoding.EncodeToString([]byte("seq:-5")),
	}
	for _, token := range bad {
		_, err := decodeCursor(token)
		assert.ErrorIs(t, err, common.ErrValidation, "token %q", token)
	}
}
