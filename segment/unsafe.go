package segment

import "unsafe"

// wordPtr returns a pointer to the 8-byte word at byte offset off within b,
// reinterpreting a slice of the mapped region as a typed pointer for
// atomic access.
func wordPtr(b []byte, off int) unsafe.Pointer {
	return unsafe.Pointer(&b[off])
}
