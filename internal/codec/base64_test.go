package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgrove/ecsruntime/internal/codec"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	buf := []byte{0x00, 0x01, 0xFF, 0x7F, 0x80, 0x10, 0x20}
	s := codec.Encode(buf)
	decoded, err := codec.Decode(s)
	require.NoError(t, err)
	assert.Equal(t, buf, decoded)
}

func TestEncodeEmpty(t *testing.T) {
	s := codec.Encode(nil)
	assert.Equal(t, "", s)
}

func TestDecodeInvalid(t *testing.T) {
	_, err := codec.Decode("not-valid-base64!!")
	assert.Error(t, err)
}
