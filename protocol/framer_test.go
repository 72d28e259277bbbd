package protocol

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiny-rpc/codec"
)

func TestNewFramerDefaults(t *testing.T) {
	f, err := NewFramer("", 0)
	require.NoError(t, err)
	assert.Equal(t, &LengthPrefixed{MaxBodySize: DefaultMaxBodySize}, f)

	f, err = NewFramer(FramingRaw, 0)
	require.NoError(t, err)
	assert.Equal(t, &Raw{BufferSize: DefaultRawBufferSize}, f)

	_, err = NewFramer("chunked", 0)
	assert.Error(t, err)
}

func TestNewFramerSizeLimit(t *testing.T) {
	for _, framing := range []Framing{FramingLengthPrefixed, FramingRaw} {
		_, err := NewFramer(framing, MaxBodySizeLimit+1)
		assert.Error(t, err, framing)
	}

	f, err := NewFramer(FramingLengthPrefixed, MaxBodySizeLimit)
	require.NoError(t, err)
	assert.Equal(t, &LengthPrefixed{MaxBodySize: MaxBodySizeLimit}, f)
	assert.NoError(t, f.WriteFrame(io.Discard, codec.CodecTypeJSON, []byte("0123456789")))
}

func TestParseFraming(t *testing.T) {
	f, err := ParseFraming("raw")
	require.NoError(t, err)
	assert.Equal(t, FramingRaw, f)

	_, err = ParseFraming("bogus")
	assert.Error(t, err)
}

// A length-prefixed frame survives being delivered one byte at a time.
func TestLengthPrefixedSplitReads(t *testing.T) {
	f := &LengthPrefixed{MaxBodySize: DefaultMaxBodySize}
	body := bytes.Repeat([]byte("x"), 5000)

	var buf bytes.Buffer
	require.NoError(t, f.WriteFrame(&buf, codec.CodecTypeJSON, body))

	ct, got, err := f.ReadFrame(iotest.OneByteReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, codec.CodecTypeJSON, ct)
	assert.Equal(t, body, got)
}

func TestLengthPrefixedRejectsOversizeWrite(t *testing.T) {
	f := &LengthPrefixed{MaxBodySize: 4}
	var buf bytes.Buffer
	err := f.WriteFrame(&buf, codec.CodecTypeJSON, []byte("12345"))
	assert.Equal(t, ErrMessageTooLarge, errors.Cause(err))
	assert.Zero(t, buf.Len())
}

func TestRawSingleRead(t *testing.T) {
	f := &Raw{BufferSize: 8}

	ct, body, err := f.ReadFrame(bytes.NewReader([]byte(`{"a":1}`)))
	require.NoError(t, err)
	assert.Equal(t, codec.CodecTypeJSON, ct)
	assert.Equal(t, `{"a":1}`, string(body))

	// Longer messages are cut at the buffer size.
	_, body, err = f.ReadFrame(bytes.NewReader([]byte(`{"method":"add"}`)))
	require.NoError(t, err)
	assert.Len(t, body, 8)
}

func TestRawNothingSent(t *testing.T) {
	f := &Raw{BufferSize: 8}
	_, _, err := f.ReadFrame(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)
}

func TestRawWriteJSONOnly(t *testing.T) {
	f := &Raw{BufferSize: 8}
	var buf bytes.Buffer
	require.NoError(t, f.WriteFrame(&buf, codec.CodecTypeJSON, []byte("{}")))
	assert.Equal(t, "{}", buf.String())

	assert.Error(t, f.WriteFrame(&buf, codec.CodecTypeYAML, []byte("a: 1")))
}
