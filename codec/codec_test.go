package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aleph-ipc/shmcomm/shmerr"
)

type samplePayload struct {
	Name  string
	Value int
}

func TestDefaultCodecRoundTrip(t *testing.T) {
	c := NewDefaultCodec()
	in := samplePayload{Name: "a", Value: 7}

	b, err := c.Encode(in)
	require.NoError(t, err)

	var out samplePayload
	require.NoError(t, c.Decode(b, &out))
	require.Equal(t, in, out)
}

func TestStructuredCodecRoundTrip(t *testing.T) {
	c := NewStructuredCodec()
	in := map[string]any{"a": int8(1), "b": "two"}

	b, err := c.Encode(in)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, c.Decode(b, &out))
	require.Equal(t, in["b"], out["b"])
}

func TestByName(t *testing.T) {
	require.IsType(t, &DefaultCodec{}, ByName("gob"))
	require.IsType(t, &StructuredCodec{}, ByName("msgpack"))
	require.Nil(t, ByName("nope"))
}

func TestDecodeErrorWraps(t *testing.T) {
	c := NewDefaultCodec()
	var out samplePayload
	err := c.Decode([]byte("not gob data"), &out)
	require.ErrorIs(t, err, shmerr.ErrSerialization)
}
