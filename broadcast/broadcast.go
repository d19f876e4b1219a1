// Package broadcast implements C7: Publisher/Subscriber over a single
// lock-free broadcast ring (C5), bound to one segment per logical channel.
package broadcast

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aleph-ipc/shmcomm/codec"
	"github.com/aleph-ipc/shmcomm/ring"
	"github.com/aleph-ipc/shmcomm/segment"
)

// Default ring sizing for broadcast channels.
const (
	DefaultNumSlots = 64
	DefaultSlotSize = 4096
)

// Options configures a Publisher at creation time. All three producer
// types accept {num_slots, slot_size, codec} at creation.
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

// Stats is the snapshot returned by Publisher.Stats.
type Stats struct {
	MsgCount  uint64
	DropCount uint64
	NumSlots  uint64
	SlotSize  uint64
	Head      uint64
}

// Publisher owns one broadcast segment (shmcomm_pub_<name>).
type Publisher struct {
	name  string
	ring  *ring.BroadcastRing
	codec codec.Codec
}

// NewPublisher creates shmcomm_pub_<name>, auto-unlinking any stale
// segment of the same name first.
func NewPublisher(name string, opts Options) (*Publisher, error) {
	opts = opts.withDefaults()
	qualified := segment.QualifiedName(segment.RolePub, name)

	h, err := segment.Create(qualified, opts.NumSlots, opts.SlotSize)
	if err != nil {
		return nil, err
	}
	log.Infof("broadcast: publisher %s created (slots=%d, slot_size=%d, codec=%s)", qualified, opts.NumSlots, opts.SlotSize, opts.Codec.Name())

	return &Publisher{name: name, ring: ring.NewBroadcastRing(h), codec: opts.Codec}, nil
}

// Send encodes value with the publisher's codec and writes it.
func (p *Publisher) Send(value any) error {
	b, err := p.codec.Encode(value)
	if err != nil {
		return err
	}
	return p.SendBytes(b)
}

// SendBytes writes a pre-encoded payload directly, bypassing the codec.
func (p *Publisher) SendBytes(payload []byte) error {
	return p.ring.Write(payload)
}

// Stats returns a point-in-time snapshot of the segment's counters.
func (p *Publisher) Stats() Stats {
	h := p.ring.Handle().Header()
	return Stats{
		MsgCount:  h.MsgCount(),
		DropCount: h.DropCount(),
		NumSlots:  h.NumSlots(),
		SlotSize:  h.SlotSize(),
		Head:      h.Head(),
	}
}

// Close unlinks the segment. Calling Close twice is a no-op on the second call.
func (p *Publisher) Close() error {
	qualified := segment.QualifiedName(segment.RolePub, p.name)
	if err := p.ring.Handle().Close(); err != nil {
		return err
	}
	segment.Unlink(qualified)
	return nil
}

// SubscriberStats is the snapshot returned by Subscriber.Stats.
type SubscriberStats struct {
	LocalTail   uint64
	Head        uint64
	LappedCount uint64
}

// Subscriber attaches to an existing publisher's segment and tracks a
// private cursor. A fresh subscriber starts at HEAD, observing only
// future messages.
type Subscriber struct {
	ring        *ring.BroadcastRing
	codec       codec.Codec
	localTail   uint64
	lappedCount uint64
}

// SubscriberOptions configures attachment: consumers accept
// {timeout_connect, codec}.
type SubscriberOptions struct {
	TimeoutConnect time.Duration
	Codec          codec.Codec
}

func (o SubscriberOptions) withDefaults() SubscriberOptions {
	if o.TimeoutConnect == 0 {
		o.TimeoutConnect = 5 * time.Second
	}
	if o.Codec == nil {
		o.Codec = codec.NewDefaultCodec()
	}
	return o
}

// NewSubscriber attaches to shmcomm_pub_<name>.
func NewSubscriber(name string, opts SubscriberOptions) (*Subscriber, error) {
	opts = opts.withDefaults()
	qualified := segment.QualifiedName(segment.RolePub, name)

	h, err := segment.Attach(qualified, opts.TimeoutConnect)
	if err != nil {
		return nil, err
	}

	r := ring.NewBroadcastRing(h)
	return &Subscriber{ring: r, codec: opts.Codec, localTail: h.Header().Head()}, nil
}

// RecvBytes polls until a message arrives or timeout elapses, returning
// the raw payload. ok is false on timeout.
func (s *Subscriber) RecvBytes(timeout time.Duration) (payload []byte, ok bool) {
	deadline := time.Now().Add(timeout)
	for {
		p, newTail, dropped, got := s.ring.Read(s.localTail)
		s.localTail = newTail
		s.lappedCount += dropped
		if got {
			return p, true
		}
		if timeout <= 0 || time.Now().After(deadline) {
			return nil, false
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// Recv polls like RecvBytes, decoding the payload with the subscriber's
// codec into out.
func (s *Subscriber) Recv(timeout time.Duration, out any) (ok bool, err error) {
	payload, ok := s.RecvBytes(timeout)
	if !ok {
		return false, nil
	}
	if err := s.codec.Decode(payload, out); err != nil {
		return true, err
	}
	return true, nil
}

// Stats returns a point-in-time snapshot of the subscriber's cursor state.
func (s *Subscriber) Stats() SubscriberStats {
	return SubscriberStats{
		LocalTail:   s.localTail,
		Head:        s.ring.Handle().Header().Head(),
		LappedCount: s.lappedCount,
	}
}

// SegmentStats returns the producer-side counters visible through the
// shared header (valid from any attached handle, not just the owner's).
func (s *Subscriber) SegmentStats() Stats {
	h := s.ring.Handle().Header()
	return Stats{
		MsgCount:  h.MsgCount(),
		DropCount: h.DropCount(),
		NumSlots:  h.NumSlots(),
		SlotSize:  h.SlotSize(),
		Head:      h.Head(),
	}
}

// Close detaches from the segment without unlinking it.
func (s *Subscriber) Close() error {
	return s.ring.Handle().Close()
}
