package riva

import "fmt"

// rawCodec moves pre-encoded protobuf bytes through grpc unchanged. It
// reports the "proto" content subtype so Riva servers accept the stream.
type rawCodec struct{}

func (rawCodec) Name() string {
	return "proto"
}

func (rawCodec) Marshal(v any) ([]byte, error) {
	switch msg := v.(type) {
	case []byte:
		return msg, nil
	case *[]byte:
		return *msg, nil
	default:
		return nil, fmt.Errorf("raw codec cannot marshal %T", v)
	}
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	dst, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("raw codec cannot unmarshal into %T", v)
	}
	*dst = append((*dst)[:0], data...)
	return nil
}
