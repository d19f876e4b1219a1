package ring

import "encoding/binary"

// encodeLenInto/decodeLenFrom implement the 4-byte little-endian payload
// length prefix that begins every slot.
func encodeLenInto(slot []byte, l uint32) { binary.LittleEndian.PutUint32(slot, l) }
func decodeLenFrom(slot []byte) uint32    { return binary.LittleEndian.Uint32(slot) }
