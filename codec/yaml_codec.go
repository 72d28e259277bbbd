package codec

import (
	"github.com/ghodss/yaml"
)

// YAMLCodec goes through the JSON field tags and marshallers, so a message
// carries the same fields whichever textual codec the peer picked.
type YAMLCodec struct{}

func (c *YAMLCodec) Encode(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

func (c *YAMLCodec) Decode(data []byte, v any) error {
	if err := yaml.Unmarshal(data, v); err != nil {
		return &DecodeError{Codec: CodecTypeYAML, Err: err}
	}
	return nil
}

func (c *YAMLCodec) Type() CodecType {
	return CodecTypeYAML
}
