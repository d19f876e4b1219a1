// Package workqueue implements C9: Pusher over the claim ring (C6) and
// Puller contending for claims via C4. A Pusher takes an exclusive,
// non-blocking lock on the channel's own producer-lock path for its
// lifetime, mechanically enforcing the single-producer assumption that
// the channel's TAIL semantics otherwise only rely on convention for.
package workqueue

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aleph-ipc/shmcomm/codec"
	"github.com/aleph-ipc/shmcomm/lock"
	"github.com/aleph-ipc/shmcomm/ring"
	"github.com/aleph-ipc/shmcomm/segment"
	"github.com/aleph-ipc/shmcomm/shmerr"
)

// Default ring sizing for work-queue channels.
const (
	DefaultNumSlots = 128
	DefaultSlotSize = 4096
)

// Options configures Pusher creation.
type Options struct {
	NumSlots uint64
	SlotSize uint64
	Codec    codec.Codec
}

func (o Options) withDefaults() Options {
	if o.NumSlots == 0 {
		o.NumSlots = DefaultNumSlots
	}
	if o.SlotSize == 0 {
		o.SlotSize = DefaultSlotSize
	}
	if o.Codec == nil {
		o.Codec = codec.NewDefaultCodec()
	}
	return o
}

// Stats is the snapshot returned by Pusher.Stats.
type Stats struct {
	MsgCount  uint64
	DropCount uint64
	NumSlots  uint64
	SlotSize  uint64
	Head      uint64
	Tail      uint64
}

// lockPath derives the claim-lock filesystem path for a channel name,
// e.g. "<temp>/shmcomm_<name>.lock".
func lockPath(name string) string {
	return segment.Path("shmcomm_" + name + ".lock")
}

// producerLockPath is a distinct lock path from the puller claim lock: it
// exists only to enforce single-producer, never contended by pullers.
func producerLockPath(name string) string {
	return segment.Path("shmcomm_" + name + ".push-owner.lock")
}

// Pusher owns shmcomm_push_<name> and wraps C6's producer side. Blocking
// mode defaults to true (unlike broadcast), reflecting queue semantics:
// a full queue should back-pressure the producer rather than drop work.
type Pusher struct {
	name        string
	ring        *ring.ClaimRing
	codec       codec.Codec
	ownerLock   *lock.Guard
	Blocking    bool
	SendTimeout time.Duration
}

// NewPusher creates shmcomm_push_<name>, auto-unlinking any stale segment,
// and claims exclusive producer ownership of the channel.
func NewPusher(name string, opts Options) (*Pusher, error) {
	opts = opts.withDefaults()
	qualified := segment.QualifiedName(segment.RolePush, name)

	ownerLock, err := lock.Acquire(producerLockPath(name), lock.NonBlocking, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: a pusher already owns push channel %q", shmerr.ErrState, name)
	}

	h, err := segment.Create(qualified, opts.NumSlots, opts.SlotSize)
	if err != nil {
		ownerLock.Release()
		return nil, err
	}
	log.Infof("workqueue: pusher %s created (slots=%d, slot_size=%d, codec=%s)", qualified, opts.NumSlots, opts.SlotSize, opts.Codec.Name())

	return &Pusher{
		name:        name,
		ring:        ring.NewClaimRing(h, lockPath(name)),
		codec:       opts.Codec,
		ownerLock:   ownerLock,
		Blocking:    true,
		SendTimeout: 5 * time.Second,
	}, nil
}

// Send encodes value with the pusher's codec and pushes it.
func (p *Pusher) Send(value any) error {
	b, err := p.codec.Encode(value)
	if err != nil {
		return err
	}
	return p.SendBytes(b)
}

// SendBytes pushes a pre-encoded payload, honoring p.Blocking/p.SendTimeout.
func (p *Pusher) SendBytes(payload []byte) error {
	return p.ring.Push(payload, p.Blocking, p.SendTimeout)
}

// Stats returns a point-in-time snapshot of the segment's counters.
func (p *Pusher) Stats() Stats {
	h := p.ring.Handle().Header()
	return Stats{
		MsgCount:  h.MsgCount(),
		DropCount: h.DropCount(),
		NumSlots:  h.NumSlots(),
		SlotSize:  h.SlotSize(),
		Head:      h.Head(),
		Tail:      h.Tail(),
	}
}

// Close unlinks the segment and releases producer ownership.
func (p *Pusher) Close() error {
	qualified := segment.QualifiedName(segment.RolePush, p.name)
	err := p.ring.Handle().Close()
	segment.Unlink(qualified)
	p.ownerLock.Release()
	return err
}

// Puller attaches to shmcomm_push_<name> and contends for claims via the
// claim lock derived from the channel name.
type Puller struct {
	ring *ring.ClaimRing
	codec codec.Codec
}

// PullerOptions configures attachment.
type PullerOptions struct {
	TimeoutConnect time.Duration
	Codec          codec.Codec
}

func (o PullerOptions) withDefaults() PullerOptions {
	if o.TimeoutConnect == 0 {
		o.TimeoutConnect = 5 * time.Second
	}
	if o.Codec == nil {
		o.Codec = codec.NewDefaultCodec()
	}
	return o
}

// NewPuller attaches to an existing pusher's segment.
func NewPuller(name string, opts PullerOptions) (*Puller, error) {
	opts = opts.withDefaults()
	qualified := segment.QualifiedName(segment.RolePush, name)

	h, err := segment.Attach(qualified, opts.TimeoutConnect)
	if err != nil {
		return nil, err
	}

	return &Puller{ring: ring.NewClaimRing(h, lockPath(name)), codec: opts.Codec}, nil
}

// SegmentStats returns the channel's counters as visible through the
// shared header (valid from an attached, non-owning handle too).
func (p *Puller) SegmentStats() Stats {
	h := p.ring.Handle().Header()
	return Stats{
		MsgCount:  h.MsgCount(),
		DropCount: h.DropCount(),
		NumSlots:  h.NumSlots(),
		SlotSize:  h.SlotSize(),
		Head:      h.Head(),
		Tail:      h.Tail(),
	}
}

// RecvBytes claims and returns the next payload, sleep-polling up to
// timeout if the queue is currently empty.
func (p *Puller) RecvBytes(timeout time.Duration) ([]byte, bool, error) {
	return p.ring.Pull(timeout)
}

// Recv claims the next payload and decodes it with the puller's codec into out.
func (p *Puller) Recv(timeout time.Duration, out any) (ok bool, err error) {
	payload, ok, err := p.ring.Pull(timeout)
	if err != nil || !ok {
		return ok, err
	}
	return true, p.codec.Decode(payload, out)
}

// Close detaches from the segment without unlinking it.
func (p *Puller) Close() error {
	return p.ring.Handle().Close()
}
