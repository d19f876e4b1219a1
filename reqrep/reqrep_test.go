package reqrep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aleph-ipc/shmcomm/shmerr"
)

func TestRequestReplyHappyPath(t *testing.T) {
	replier, err := NewReplier("svc1", Options{NumSlots: 4, SlotSize: 256})
	require.NoError(t, err)
	t.Cleanup(func() { replier.Close() })

	requester, err := NewRequester("svc1", RequesterOptions{TimeoutConnect: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { requester.Close() })

	require.NoError(t, requester.Send("q1"))

	var req string
	ok, err := replier.Recv(time.Second, &req)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "q1", req)

	require.NoError(t, replier.Send("a2"))

	var reply string
	require.NoError(t, requester.Recv(time.Second, &reply))
	require.Equal(t, "a2", reply)
}

func TestRequestReplyTimeout(t *testing.T) {
	// Requester sends but the replier never responds.
	replier, err := NewReplier("svc2", Options{NumSlots: 4, SlotSize: 256})
	require.NoError(t, err)
	t.Cleanup(func() { replier.Close() })

	requester, err := NewRequester("svc2", RequesterOptions{TimeoutConnect: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { requester.Close() })

	require.NoError(t, requester.Send("ignored"))

	start := time.Now()
	var reply string
	err = requester.Recv(100*time.Millisecond, &reply)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, shmerr.ErrTimeout)
	require.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
}

func TestReplierStateErrors(t *testing.T) {
	replier, err := NewReplier("svc3", Options{NumSlots: 4, SlotSize: 256})
	require.NoError(t, err)
	t.Cleanup(func() { replier.Close() })

	// Send before any Recv: IDLE state, must error.
	err = replier.Send("too early")
	require.ErrorIs(t, err, shmerr.ErrState)

	requester, err := NewRequester("svc3", RequesterOptions{TimeoutConnect: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { requester.Close() })

	require.NoError(t, requester.Send("q"))
	var req string
	ok, err := replier.Recv(time.Second, &req)
	require.NoError(t, err)
	require.True(t, ok)

	// Recv again while AWAITING_REPLY: must error.
	_, err = replier.Recv(10*time.Millisecond, &req)
	require.ErrorIs(t, err, shmerr.ErrState)
}

func TestRequesterStateErrors(t *testing.T) {
	replier, err := NewReplier("svc4", Options{NumSlots: 4, SlotSize: 256})
	require.NoError(t, err)
	t.Cleanup(func() { replier.Close() })

	requester, err := NewRequester("svc4", RequesterOptions{TimeoutConnect: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { requester.Close() })

	var out string
	err = requester.Recv(10*time.Millisecond, &out)
	require.ErrorIs(t, err, shmerr.ErrState)

	require.NoError(t, requester.Send("q"))
	err = requester.Send("double send")
	require.ErrorIs(t, err, shmerr.ErrState)
}

func TestStrayReplyIsDiscarded(t *testing.T) {
	// Two concurrent clients against one replier: a reply correlated to
	// client A must not satisfy client B's Recv.
	replier, err := NewReplier("svc5", Options{NumSlots: 8, SlotSize: 256})
	require.NoError(t, err)
	t.Cleanup(func() { replier.Close() })

	clientA, err := NewRequester("svc5", RequesterOptions{TimeoutConnect: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { clientA.Close() })

	clientB, err := NewRequester("svc5", RequesterOptions{TimeoutConnect: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { clientB.Close() })

	require.NoError(t, clientA.Send("from-a"))

	var reqA string
	ok, err := replier.Recv(time.Second, &reqA)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, replier.Send("reply-for-a"))

	// clientB never sent a request, so it has no pending ID; attempting to
	// Recv is a state error, not a chance to observe clientA's reply.
	var out string
	err = clientB.Recv(10*time.Millisecond, &out)
	require.ErrorIs(t, err, shmerr.ErrState)

	// Once clientB has a request of its own outstanding, clientA's reply is
	// a stray to it: clientB discards it and times out.
	require.NoError(t, clientB.Send("from-b"))
	err = clientB.Recv(10*time.Millisecond, &out)
	require.ErrorIs(t, err, shmerr.ErrTimeout)

	// clientA correctly receives its own reply.
	var replyA string
	require.NoError(t, clientA.Recv(time.Second, &replyA))
	require.Equal(t, "reply-for-a", replyA)
}
