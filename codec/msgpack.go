package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aleph-ipc/shmcomm/shmerr"
)

// StructuredCodec is a compact binary encoding for maps/lists of
// primitives, built on msgpack. It pairs naturally with the per-channel
// "codec" config field (config.ChannelConfig).
type StructuredCodec struct{}

// NewStructuredCodec returns the msgpack-backed structured codec.
func NewStructuredCodec() *StructuredCodec { return &StructuredCodec{} }

func (StructuredCodec) Name() string { return "msgpack" }

func (StructuredCodec) Encode(value any) ([]byte, error) {
	b, err := msgpack.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: msgpack encode: %v", shmerr.ErrSerialization, err)
	}
	return b, nil
}

func (StructuredCodec) Decode(data []byte, out any) error {
	if err := msgpack.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: msgpack decode: %v", shmerr.ErrSerialization, err)
	}
	return nil
}
