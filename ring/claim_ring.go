package ring

import (
	"fmt"
	"time"

	"github.com/aleph-ipc/shmcomm/lock"
	"github.com/aleph-ipc/shmcomm/segment"
	"github.com/aleph-ipc/shmcomm/shmerr"
)

// claimPollInterval is the sleep-poll cadence for both the blocked
// producer (ring full) and the blocked consumer (ring empty).
const claimPollInterval = 100 * time.Microsecond

// ClaimRing implements C6: a single shared TAIL advanced only under a
// cross-process lock, used by the work-queue pattern. Unlike
// BroadcastRing, a full ring blocks the producer (in blocking mode)
// instead of overwriting.
type ClaimRing struct {
	h    *segment.Handle
	lock *lock.Guard // not set; Pull takes a fresh guard per claim
	path string
}

// NewClaimRing wraps a segment handle as a claim ring. lockPath is the
// filesystem path used for the cross-process claim lock (e.g.
// "<temp>/shmcomm_<name>.lock").
func NewClaimRing(h *segment.Handle, lockPath string) *ClaimRing {
	return &ClaimRing{h: h, path: lockPath}
}

func (r *ClaimRing) Handle() *segment.Handle { return r.h }
func (r *ClaimRing) LockPath() string        { return r.path }

// Push is the producer side: in blocking mode it sleep-polls until space
// frees or timeout elapses; in non-blocking mode it returns ErrBufferFull
// immediately when the ring is full.
func (r *ClaimRing) Push(payload []byte, blocking bool, timeout time.Duration) error {
	header := r.h.Header()
	slotSize := header.SlotSize()
	numSlots := header.NumSlots()

	maxPayload := slotSize - 4
	if uint64(len(payload)) > maxPayload {
		return fmt.Errorf("%w: payload %d bytes exceeds slot capacity %d", shmerr.ErrPayloadTooLarge, len(payload), maxPayload)
	}

	deadline := time.Now().Add(timeout)
	for {
		h := header.Head()
		t := header.Tail()
		if h-t < numSlots {
			break
		}
		if !blocking {
			header.AddDropCount(1)
			return fmt.Errorf("%w: push channel full", shmerr.ErrBufferFull)
		}
		if timeout > 0 && time.Now().After(deadline) {
			header.AddDropCount(1)
			return fmt.Errorf("%w: push channel full", shmerr.ErrTimeout)
		}
		time.Sleep(claimPollInterval)
	}

	h := header.Head()
	slot := r.h.Slot(h)
	encodeLenInto(slot, uint32(len(payload)))
	copy(slot[4:], payload)

	header.StoreHead(h + 1)
	header.AddMsgCount(1)
	return nil
}

// Pull is the consumer side: acquire the claim lock, check for an
// available message, claim it by advancing TAIL, release, return. When
// blocking (timeout > 0) it sleep-polls between lock-acquire attempts
// until a message appears or the deadline elapses; the lock is never held
// across the sleep.
func (r *ClaimRing) Pull(timeout time.Duration) (payload []byte, ok bool, err error) {
	header := r.h.Header()
	deadline := time.Now().Add(timeout)

	for {
		payload, ok, err = r.tryPull(header)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return payload, true, nil
		}
		if timeout <= 0 {
			return nil, false, nil
		}
		if time.Now().After(deadline) {
			return nil, false, nil
		}
		time.Sleep(claimPollInterval)
	}
}

func (r *ClaimRing) tryPull(header *segment.Header) ([]byte, bool, error) {
	guard, err := lock.Acquire(r.path, lock.Blocking, 0)
	if err != nil {
		return nil, false, fmt.Errorf("%w: claim lock: %v", shmerr.ErrConnection, err)
	}
	defer guard.Release()

	h := header.Head()
	t := header.Tail()
	if h == t {
		return nil, false, nil
	}

	slot := r.h.Slot(t)
	l := decodeLenFrom(slot)
	payload := make([]byte, l)
	copy(payload, slot[4:4+l])

	header.StoreTail(t + 1)
	return payload, true, nil
}
