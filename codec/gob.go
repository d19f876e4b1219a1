package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/aleph-ipc/shmcomm/shmerr"
)

// DefaultCodec is the general object-graph serializer called for in spec
// §4.3: in an idiomatic statically-typed Go reimplementation this is
// encoding/gob, the standard library's closest analogue to a
// pickle-equivalent (it reflects over registered concrete types rather
// than requiring a schema). See DESIGN.md for why no third-party
// alternative was preferred here.
type DefaultCodec struct{}

// NewDefaultCodec returns the gob-backed default codec.
func NewDefaultCodec() *DefaultCodec { return &DefaultCodec{} }

func (DefaultCodec) Name() string { return "gob" }

func (DefaultCodec) Encode(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return nil, fmt.Errorf("%w: gob encode: %v", shmerr.ErrSerialization, err)
	}
	return buf.Bytes(), nil
}

func (DefaultCodec) Decode(data []byte, out any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(out); err != nil {
		return fmt.Errorf("%w: gob decode: %v", shmerr.ErrSerialization, err)
	}
	return nil
}
