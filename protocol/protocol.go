// Package protocol finds message boundaries on a stream connection.
//
// The default framing is a fixed 9-byte header followed by a variable-length
// body. The receiver reads the header first to learn the body length, then
// reads exactly that many bytes, so a message may arrive in any number of
// TCP segments.
//
// Frame format:
//
//	0      3  4  5         9
//	┌──────┬──┬──┬─────────┬───────────────┐
//	│magic │v │ct│ bodyLen │    body ...   │
//	│ trp  │01│  │ uint32  │ bodyLen bytes │
//	└──────┴──┴──┴─────────┴───────────────┘
//
// Raw framing is kept for peers that predate the header: one message per
// connection, received with a single bounded read.
package protocol

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"tiny-rpc/codec"
)

// Magic bytes "trp" (tiny-rpc protocol). They let the server reject peers
// that do not speak the framed protocol before reading a body.
const (
	MagicNumber byte = 0x74 // 't'
	MagicByte2  byte = 0x72 // 'r'
	MagicByte3  byte = 0x70 // 'p'
	Version     byte = 0x01
	HeaderSize  int  = 9 // 3 (magic) + 1 (version) + 1 (codec) + 4 (bodyLen)
)

const (
	// DefaultMaxBodySize bounds a length-prefixed body.
	DefaultMaxBodySize = 4 << 20
	// DefaultRawBufferSize is the single-read bound of raw framing.
	DefaultRawBufferSize = 1024
)

var (
	ErrBadMagic        = errors.New("invalid magic number")
	ErrMessageTooLarge = errors.New("message too large")
)

// Header is the fixed frame header.
type Header struct {
	CodecType codec.CodecType
	BodyLen   uint32
}

// Encode writes header and body to w in a single write.
func Encode(w io.Writer, h *Header, body []byte) error {
	buf := make([]byte, HeaderSize+len(body))

	copy(buf[0:3], []byte{MagicNumber, MagicByte2, MagicByte3})
	buf[3] = Version
	buf[4] = byte(h.CodecType)
	// Big-endian (network byte order)
	binary.BigEndian.PutUint32(buf[5:9], h.BodyLen)
	copy(buf[HeaderSize:], body)

	_, err := w.Write(buf)
	return err
}

// Decode reads one frame from r. A peer that closed before sending a single
// byte yields io.EOF unwrapped; every other failure is wrapped with context.
// Bodies longer than maxBody are refused before any of the body is read.
func Decode(r io.Reader, maxBody uint32) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		if err == io.EOF {
			return nil, nil, io.EOF
		}
		return nil, nil, errors.Wrap(err, "reading frame header")
	}

	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, errors.Wrapf(ErrBadMagic, "got %x", headerBuf[0:3])
	}
	if headerBuf[3] != Version {
		return nil, nil, errors.Errorf("unsupported version: %d", headerBuf[3])
	}
	ct := codec.CodecType(headerBuf[4])
	if ct != codec.CodecTypeJSON && ct != codec.CodecTypeYAML {
		return nil, nil, errors.Errorf("unsupported codec type: %d", headerBuf[4])
	}

	bodyLen := binary.BigEndian.Uint32(headerBuf[5:9])
	if bodyLen > maxBody {
		return nil, nil, errors.Wrapf(ErrMessageTooLarge, "%d bytes exceeds limit of %d", bodyLen, maxBody)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, errors.Wrap(err, "reading frame body")
	}

	return &Header{CodecType: ct, BodyLen: bodyLen}, body, nil
}
