// Package reqrep implements C8: synchronous request/reply over a pair of
// unidirectional broadcast rings bound to one logical channel name
// (shmcomm_req_<name> for client->server, shmcomm_rep_<name> for
// server->client). Every request/reply slot carries a monotonic request
// ID so concurrent clients can't receive each other's replies.
package reqrep

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/aleph-ipc/shmcomm/codec"
	"github.com/aleph-ipc/shmcomm/ring"
	"github.com/aleph-ipc/shmcomm/segment"
	"github.com/aleph-ipc/shmcomm/shmerr"
)

// Default ring sizing for request-reply channels.
const (
	DefaultNumSlots = 16
	DefaultSlotSize = 8192
)

// Options configures Replier/Requester creation.
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

// envelope prefixes every request/reply slot with an 8-byte little-endian
// request ID ahead of the codec-encoded value, so a reply can be matched
// back to its request.
const envelopeIDSize = 8

func encodeEnvelope(id uint64, body []byte) []byte {
	out := make([]byte, envelopeIDSize+len(body))
	binary.LittleEndian.PutUint64(out, id)
	copy(out[envelopeIDSize:], body)
	return out
}

func decodeEnvelope(b []byte) (id uint64, body []byte, err error) {
	if len(b) < envelopeIDSize {
		return 0, nil, fmt.Errorf("%w: request/reply envelope truncated", shmerr.ErrSerialization)
	}
	return binary.LittleEndian.Uint64(b), b[envelopeIDSize:], nil
}

// state tracks the IDLE/AWAITING_REPLY state machine shared by both
// Replier and Requester.
type state int32

const (
	stateIdle state = iota
	stateAwaitingReply
)

// Replier implements the server half: recv in IDLE, send in AWAITING_REPLY.
type Replier struct {
	name     string
	reqRing  *ring.BroadcastRing
	repRing  *ring.BroadcastRing
	codec    codec.Codec
	state    state
	localTail uint64
	pendingID uint64
}

// NewReplier creates both shmcomm_req_<name> and shmcomm_rep_<name>;
// a request-reply name owns both segments atomically.
func NewReplier(name string, opts Options) (*Replier, error) {
	opts = opts.withDefaults()

	reqQualified := segment.QualifiedName(segment.RoleReq, name)
	repQualified := segment.QualifiedName(segment.RoleRep, name)

	reqH, err := segment.Create(reqQualified, opts.NumSlots, opts.SlotSize)
	if err != nil {
		return nil, err
	}
	repH, err := segment.Create(repQualified, opts.NumSlots, opts.SlotSize)
	if err != nil {
		reqH.Close()
		segment.Unlink(reqQualified)
		return nil, err
	}

	return &Replier{
		name:      name,
		reqRing:   ring.NewBroadcastRing(reqH),
		repRing:   ring.NewBroadcastRing(repH),
		codec:     opts.Codec,
		localTail: reqH.Header().Head(),
	}, nil
}

// RecvBytes blocks (sleep-polling) until a request arrives or timeout
// elapses. Calling Recv while AWAITING_REPLY is a protocol error.
func (r *Replier) RecvBytes(timeout time.Duration) (payload []byte, ok bool, err error) {
	if state(atomic.LoadInt32((*int32)(&r.state))) != stateIdle {
		return nil, false, fmt.Errorf("%w: recv called while awaiting a reply to send", shmerr.ErrState)
	}

	deadline := time.Now().Add(timeout)
	for {
		raw, newTail, _, got := r.reqRing.Read(r.localTail)
		r.localTail = newTail
		if got {
			id, body, derr := decodeEnvelope(raw)
			if derr != nil {
				return nil, false, derr
			}
			r.pendingID = id
			atomic.StoreInt32((*int32)(&r.state), int32(stateAwaitingReply))
			return body, true, nil
		}
		if timeout <= 0 || time.Now().After(deadline) {
			return nil, false, nil
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// Recv decodes the request payload with the replier's codec into out.
func (r *Replier) Recv(timeout time.Duration, out any) (ok bool, err error) {
	payload, ok, err := r.RecvBytes(timeout)
	if err != nil || !ok {
		return ok, err
	}
	return true, r.codec.Decode(payload, out)
}

// SendBytes writes a reply, echoing the pending request's ID. Calling Send
// while IDLE (no outstanding request) is a protocol error.
func (r *Replier) SendBytes(payload []byte) error {
	if state(atomic.LoadInt32((*int32)(&r.state))) != stateAwaitingReply {
		return fmt.Errorf("%w: send called with no pending request", shmerr.ErrState)
	}
	if err := r.repRing.Write(encodeEnvelope(r.pendingID, payload)); err != nil {
		return err
	}
	atomic.StoreInt32((*int32)(&r.state), int32(stateIdle))
	return nil
}

// Send encodes value with the replier's codec and sends it as the reply.
func (r *Replier) Send(value any) error {
	b, err := r.codec.Encode(value)
	if err != nil {
		return err
	}
	return r.SendBytes(b)
}

// Close unlinks both segments owned by this replier.
func (r *Replier) Close() error {
	reqQualified := segment.QualifiedName(segment.RoleReq, r.name)
	repQualified := segment.QualifiedName(segment.RoleRep, r.name)
	err1 := r.reqRing.Handle().Close()
	err2 := r.repRing.Handle().Close()
	segment.Unlink(reqQualified)
	segment.Unlink(repQualified)
	if err1 != nil {
		return err1
	}
	return err2
}

// Requester implements the client half: send in IDLE, recv in AWAITING_REPLY.
type Requester struct {
	reqRing   *ring.BroadcastRing
	repRing   *ring.BroadcastRing
	codec     codec.Codec
	state     state
	localTail uint64
	nextID    uint64
	pendingID uint64
}

// RequesterOptions configures attachment.
type RequesterOptions struct {
	TimeoutConnect time.Duration
	Codec          codec.Codec
}

func (o RequesterOptions) withDefaults() RequesterOptions {
	if o.TimeoutConnect == 0 {
		o.TimeoutConnect = 5 * time.Second
	}
	if o.Codec == nil {
		o.Codec = codec.NewDefaultCodec()
	}
	return o
}

// NewRequester attaches to an existing replier's pair of segments.
func NewRequester(name string, opts RequesterOptions) (*Requester, error) {
	opts = opts.withDefaults()

	reqQualified := segment.QualifiedName(segment.RoleReq, name)
	repQualified := segment.QualifiedName(segment.RoleRep, name)

	reqH, err := segment.Attach(reqQualified, opts.TimeoutConnect)
	if err != nil {
		return nil, err
	}
	repH, err := segment.Attach(repQualified, opts.TimeoutConnect)
	if err != nil {
		reqH.Close()
		return nil, err
	}

	return &Requester{
		reqRing:   ring.NewBroadcastRing(reqH),
		repRing:   ring.NewBroadcastRing(repH),
		codec:     opts.Codec,
		localTail: repH.Header().Head(),
		// Start from a random ID so that different requesters on the same
		// channel do not issue the same IDs.
		nextID: rand.Uint64(),
	}, nil
}

// SendBytes writes a request, assigning it the next monotonic request ID.
// Calling Send while AWAITING_REPLY is a protocol error.
func (q *Requester) SendBytes(payload []byte) error {
	if state(atomic.LoadInt32((*int32)(&q.state))) != stateIdle {
		return fmt.Errorf("%w: send called before the previous reply was received", shmerr.ErrState)
	}
	q.nextID++
	id := q.nextID
	if err := q.reqRing.Write(encodeEnvelope(id, payload)); err != nil {
		return err
	}
	q.pendingID = id
	atomic.StoreInt32((*int32)(&q.state), int32(stateAwaitingReply))
	return nil
}

// Send encodes value with the requester's codec and sends it as the request.
func (q *Requester) Send(value any) error {
	b, err := q.codec.Encode(value)
	if err != nil {
		return err
	}
	return q.SendBytes(b)
}

// RecvBytes polls the reply ring until a reply whose ID matches the
// outstanding request arrives, or timeout elapses. A reply whose ID
// doesn't match (a stray reply from a concurrent client's exchange with
// the same replier) is discarded and polling continues. On timeout or
// success, state returns to IDLE.
func (q *Requester) RecvBytes(timeout time.Duration) (payload []byte, err error) {
	if state(atomic.LoadInt32((*int32)(&q.state))) != stateAwaitingReply {
		return nil, fmt.Errorf("%w: recv called with no outstanding request", shmerr.ErrState)
	}

	deadline := time.Now().Add(timeout)
	for {
		raw, newTail, _, got := q.repRing.Read(q.localTail)
		q.localTail = newTail
		if got {
			id, body, derr := decodeEnvelope(raw)
			if derr != nil {
				atomic.StoreInt32((*int32)(&q.state), int32(stateIdle))
				return nil, derr
			}
			if id != q.pendingID {
				continue // stray reply correlated to another client; keep polling
			}
			atomic.StoreInt32((*int32)(&q.state), int32(stateIdle))
			return body, nil
		}
		if time.Now().After(deadline) {
			atomic.StoreInt32((*int32)(&q.state), int32(stateIdle))
			return nil, fmt.Errorf("%w: no reply within %s", shmerr.ErrTimeout, timeout)
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// Recv decodes the reply payload with the requester's codec into out.
func (q *Requester) Recv(timeout time.Duration, out any) error {
	payload, err := q.RecvBytes(timeout)
	if err != nil {
		return err
	}
	return q.codec.Decode(payload, out)
}

// Request is the send-then-recv convenience wrapper.
func (q *Requester) Request(value any, timeout time.Duration, out any) error {
	if err := q.Send(value); err != nil {
		return err
	}
	return q.Recv(timeout, out)
}

// Close detaches from both segments without unlinking them.
func (q *Requester) Close() error {
	err1 := q.reqRing.Handle().Close()
	err2 := q.repRing.Handle().Close()
	if err1 != nil {
		return err1
	}
	return err2
}
