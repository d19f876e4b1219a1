// Package ring implements the two ring-buffer protocols shmcomm channels
// are built on: a lock-free single-producer/multi-independent-consumer
// broadcast ring with overwrite semantics, and a file-lock-coordinated
// single-consumer-claim ring for work-queue semantics. Both are built
// directly on a segment.Handle's header and slot region, around a
// monotonic HEAD/TAIL index pair.
package ring

import (
	"fmt"

	"github.com/aleph-ipc/shmcomm/segment"
	"github.com/aleph-ipc/shmcomm/shmerr"
)

// BroadcastRing implements C5: one writer, many independent readers, each
// tracking its own cursor; full rings are overwritten rather than
// blocking.
type BroadcastRing struct {
	h *segment.Handle
}

// NewBroadcastRing wraps a segment handle as a broadcast ring.
func NewBroadcastRing(h *segment.Handle) *BroadcastRing {
	return &BroadcastRing{h: h}
}

func (r *BroadcastRing) Handle() *segment.Handle { return r.h }

// Write reads HEAD, writes [L][payload] into slot H mod NumSlots, publishes
// H+1, and bumps MSG_COUNT. Never blocks; a full ring is simply
// overwritten. DROP_COUNT is an optimistic counter incremented on every
// write that reuses a slot (HEAD >= NumSlots), whether or not any reader
// still needed that slot — correctness never depends on its precision.
func (r *BroadcastRing) Write(payload []byte) error {
	header := r.h.Header()
	slotSize := header.SlotSize()

	maxPayload := slotSize - 4
	if uint64(len(payload)) > maxPayload {
		return fmt.Errorf("%w: payload %d bytes exceeds slot capacity %d", shmerr.ErrPayloadTooLarge, len(payload), maxPayload)
	}

	h := header.Head()
	numSlots := header.NumSlots()
	if numSlots > 0 && h >= numSlots {
		// A slot this write is about to clobber may still be unread by some
		// subscriber; we can't know which subscribers exist, so this is a
		// conservative, optimistic bump.
		header.AddDropCount(1)
	}

	slot := r.h.Slot(h)
	encodeLenInto(slot, uint32(len(payload)))
	copy(slot[4:], payload)

	header.StoreHead(h + 1)
	header.AddMsgCount(1)
	return nil
}

// Read advances the caller's private localTail, returning the next payload
// (if any) and the reader's updated cursor. ok is false when there is
// nothing new to read.
//
// Lapping (localTail more than NumSlots behind HEAD) is detected and
// skipped forward; the torn-read guard re-checks HEAD after reading the
// slot and retries at the new floor if the writer lapped the reader
// mid-read.
func (r *BroadcastRing) Read(localTail uint64) (payload []byte, newTail uint64, dropped uint64, ok bool) {
	header := r.h.Header()
	numSlots := header.NumSlots()

	for {
		h := header.Head()
		if h == localTail {
			return nil, localTail, dropped, false
		}

		if numSlots > 0 && h-localTail > numSlots {
			skipped := (h - numSlots + 1) - localTail
			dropped += skipped
			localTail = h - numSlots + 1
		}

		slot := r.h.Slot(localTail)
		l := decodeLenFrom(slot)
		if uint64(l) > header.SlotSize()-4 {
			// Torn read: the slot's length prefix is garbage because the
			// writer has already wrapped over it again. Re-derive the floor
			// and retry.
			h2 := header.Head()
			localTail = h2 - numSlots + 1
			continue
		}
		payloadCopy := make([]byte, l)
		copy(payloadCopy, slot[4:4+l])

		h2 := header.Head()
		if numSlots > 0 && h2-localTail >= numSlots {
			// The writer lapped us while we were reading this slot: discard
			// and retry from the new floor.
			dropped += (h2 - numSlots + 1) - localTail
			localTail = h2 - numSlots + 1
			continue
		}

		return payloadCopy, localTail + 1, dropped, true
	}
}
