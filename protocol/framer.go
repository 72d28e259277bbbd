package protocol

import (
	"io"
	"math"

	"github.com/pkg/errors"

	"tiny-rpc/codec"
)

// Framing names a framing scheme.
type Framing string

const (
	FramingLengthPrefixed Framing = "length-prefixed"
	FramingRaw            Framing = "raw"
)

// ParseFraming maps a framing name to its constant; "" means the default.
func ParseFraming(name string) (Framing, error) {
	switch Framing(name) {
	case FramingLengthPrefixed, "":
		return FramingLengthPrefixed, nil
	case FramingRaw:
		return FramingRaw, nil
	}
	return "", errors.Errorf("unknown framing %q", name)
}

// Framer reads and writes one message body at a time.
type Framer interface {
	// ReadFrame returns io.EOF, unwrapped, when the peer closed without sending anything.
	ReadFrame(r io.Reader) (codec.CodecType, []byte, error)
	WriteFrame(w io.Writer, ct codec.CodecType, body []byte) error
}

// MaxBodySizeLimit is the largest body the uint32 length field can describe.
const MaxBodySizeLimit = math.MaxUint32

// NewFramer returns the framer for f. A zero maxSize picks the framing's default bound.
func NewFramer(f Framing, maxSize int) (Framer, error) {
	if maxSize > 0 && uint64(maxSize) > MaxBodySizeLimit {
		return nil, errors.Errorf("max message size %d exceeds limit of %d", maxSize, uint64(MaxBodySizeLimit))
	}
	switch f {
	case FramingLengthPrefixed, "":
		if maxSize <= 0 {
			maxSize = DefaultMaxBodySize
		}
		return &LengthPrefixed{MaxBodySize: uint32(maxSize)}, nil
	case FramingRaw:
		if maxSize <= 0 {
			maxSize = DefaultRawBufferSize
		}
		return &Raw{BufferSize: maxSize}, nil
	}
	return nil, errors.Errorf("unknown framing %q", f)
}

// LengthPrefixed frames each body with a Header.
type LengthPrefixed struct {
	MaxBodySize uint32
}

func (f *LengthPrefixed) ReadFrame(r io.Reader) (codec.CodecType, []byte, error) {
	h, body, err := Decode(r, f.MaxBodySize)
	if err != nil {
		return 0, nil, err
	}
	return h.CodecType, body, nil
}

func (f *LengthPrefixed) WriteFrame(w io.Writer, ct codec.CodecType, body []byte) error {
	if uint64(len(body)) > uint64(f.MaxBodySize) {
		return errors.Wrapf(ErrMessageTooLarge, "%d bytes exceeds limit of %d", len(body), f.MaxBodySize)
	}
	return Encode(w, &Header{CodecType: ct, BodyLen: uint32(len(body))}, body)
}

// Raw sends bare bodies and receives them with one read of at most BufferSize
// bytes. Anything longer arrives truncated and fails to decode. JSON only.
type Raw struct {
	BufferSize int
}

func (f *Raw) ReadFrame(r io.Reader) (codec.CodecType, []byte, error) {
	buf := make([]byte, f.BufferSize)
	n, err := r.Read(buf)
	if n == 0 {
		if err == nil || err == io.EOF {
			return 0, nil, io.EOF
		}
		return 0, nil, errors.Wrap(err, "reading raw message")
	}
	return codec.CodecTypeJSON, buf[:n], nil
}

func (f *Raw) WriteFrame(w io.Writer, ct codec.CodecType, body []byte) error {
	if ct != codec.CodecTypeJSON {
		return errors.Errorf("raw framing only carries json, not %s", ct)
	}
	_, err := w.Write(body)
	return err
}
