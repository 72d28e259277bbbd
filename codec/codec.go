// Package codec turns requests and responses into self-describing text and back.
//
// A codec is handed exactly one complete message; finding message boundaries in
// the byte stream is the protocol package's job.
package codec

import (
	"fmt"

	"github.com/pkg/errors"
)

type CodecType byte

const (
	CodecTypeJSON CodecType = 0
	CodecTypeYAML CodecType = 1
)

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeYAML:
		return "yaml"
	}
	return fmt.Sprintf("codec(%d)", byte(t))
}

// ParseCodecType maps a codec name ("json", "yaml") to its type.
func ParseCodecType(name string) (CodecType, error) {
	switch name {
	case "json", "":
		return CodecTypeJSON, nil
	case "yaml":
		return CodecTypeYAML, nil
	}
	return 0, errors.Errorf("unknown codec %q", name)
}

type Codec interface {
	Encode(v any) ([]byte, error)
	// Decode fills v from data. Malformed input is reported as a *DecodeError.
	Decode(data []byte, v any) error
	Type() CodecType
}

// GetCodec returns the codec for codecType.
func GetCodec(codecType CodecType) (Codec, error) {
	switch codecType {
	case CodecTypeJSON:
		return &JSONCodec{}, nil
	case CodecTypeYAML:
		return &YAMLCodec{}, nil
	}
	return nil, errors.Errorf("unsupported codec type: %d", byte(codecType))
}

// DecodeError reports bytes that are not a well-formed message for a codec.
type DecodeError struct {
	Codec CodecType
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed %s message: %v", e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause see through the wrapper.
func (e *DecodeError) Cause() error { return e.Err }
