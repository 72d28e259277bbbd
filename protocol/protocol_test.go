package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiny-rpc/codec"
)

func TestEncodeDecode(t *testing.T) {
	body := []byte(`{"method":"add","params":[2,8]}`)
	header := Header{CodecType: codec.CodecTypeJSON, BodyLen: uint32(len(body))}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &header, body))
	assert.Equal(t, HeaderSize+len(body), buf.Len())

	decodedHeader, decodedBody, err := Decode(&buf, DefaultMaxBodySize)
	require.NoError(t, err)
	assert.Equal(t, header, *decodedHeader)
	assert.Equal(t, body, decodedBody)
}

func TestDecodeInvalidMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00, 0x00, Version, byte(codec.CodecTypeJSON), 0, 0, 0, 2})
	buf.Write([]byte("{}"))

	_, _, err := Decode(&buf, DefaultMaxBodySize)
	require.Error(t, err)
	assert.Equal(t, ErrBadMagic, errors.Cause(err))
}

func TestDecodeInvalidVersion(t *testing.T) {
	buf := bytes.NewBuffer([]byte{MagicNumber, MagicByte2, MagicByte3, 0xFF, byte(codec.CodecTypeJSON), 0, 0, 0, 0})

	_, _, err := Decode(buf, DefaultMaxBodySize)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version")
}

func TestDecodeInvalidCodec(t *testing.T) {
	buf := bytes.NewBuffer([]byte{MagicNumber, MagicByte2, MagicByte3, Version, 9, 0, 0, 0, 0})

	_, _, err := Decode(buf, DefaultMaxBodySize)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported codec type")
}

func TestDecodeEmptyBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &Header{CodecType: codec.CodecTypeYAML}, nil))

	h, body, err := Decode(&buf, DefaultMaxBodySize)
	require.NoError(t, err)
	assert.Equal(t, codec.CodecTypeYAML, h.CodecType)
	assert.Empty(t, body)
}

func TestDecodeLargeBody(t *testing.T) {
	largeBody := make([]byte, 1024*1024)
	for i := range largeBody {
		largeBody[i] = byte(i % 256)
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &Header{BodyLen: uint32(len(largeBody))}, largeBody))

	_, decodedBody, err := Decode(&buf, DefaultMaxBodySize)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(largeBody, decodedBody))
}

func TestDecodeBodyOverLimit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &Header{BodyLen: 64}, make([]byte, 64)))

	_, _, err := Decode(&buf, 32)
	require.Error(t, err)
	assert.Equal(t, ErrMessageTooLarge, errors.Cause(err))
}

func TestDecodeNothingSent(t *testing.T) {
	_, _, err := Decode(bytes.NewReader(nil), DefaultMaxBodySize)
	assert.Equal(t, io.EOF, err)
}

func TestDecodeTruncated(t *testing.T) {
	_, _, err := Decode(bytes.NewReader([]byte{MagicNumber, MagicByte2}), DefaultMaxBodySize)
	require.Error(t, err)
	assert.Equal(t, io.ErrUnexpectedEOF, errors.Cause(err))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &Header{BodyLen: 10}, []byte("abc")))
	_, _, err = Decode(&buf, DefaultMaxBodySize)
	require.Error(t, err)
	assert.Equal(t, io.ErrUnexpectedEOF, errors.Cause(err))
}
