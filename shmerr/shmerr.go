// Package shmerr defines the error taxonomy shared by every shmcomm
// component. All errors surface to the calling operation; none are
// swallowed internally.
package shmerr

import "errors"

// Sentinel kinds. Use errors.Is against these, not string matching —
// every returned error wraps one of them with fmt.Errorf("...: %w", ...).
var (
	// ErrConnection covers segment create failure, attach timeout, and
	// MAGIC/VERSION mismatch.
	ErrConnection = errors.New("shmcomm: connection error")

	// ErrTimeout is returned when a blocking operation exceeds its deadline.
	ErrTimeout = errors.New("shmcomm: timeout")

	// ErrBufferFull is returned by a non-blocking work-queue send on a full ring.
	ErrBufferFull = errors.New("shmcomm: buffer full")

	// ErrPayloadTooLarge is returned when len(payload) > slot_size - 4.
	ErrPayloadTooLarge = errors.New("shmcomm: payload too large")

	// ErrSerialization is returned when a codec's Encode/Decode cannot proceed.
	ErrSerialization = errors.New("shmcomm: serialization error")

	// ErrState is returned on a request/reply or work-queue protocol
	// violation (e.g. Send called while not awaiting, or a second pusher
	// contending for a push channel already owned).
	ErrState = errors.New("shmcomm: protocol state error")
)
