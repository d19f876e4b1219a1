package workqueue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aleph-ipc/shmcomm/shmerr"
)

func TestPushPullRoundTrip(t *testing.T) {
	pusher, err := NewPusher("wqtest1", Options{NumSlots: 4, SlotSize: 64})
	require.NoError(t, err)
	t.Cleanup(func() { pusher.Close() })

	puller, err := NewPuller("wqtest1", PullerOptions{TimeoutConnect: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { puller.Close() })

	require.NoError(t, pusher.Send("job-1"))

	var out string
	ok, err := puller.Recv(time.Second, &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "job-1", out)
}

func TestWorkQueueFanOutExactlyOnce(t *testing.T) {
	pusher, err := NewPusher("wqtest2", Options{NumSlots: 128, SlotSize: 64})
	require.NoError(t, err)
	t.Cleanup(func() { pusher.Close() })

	for i := 0; i < 100; i++ {
		require.NoError(t, pusher.Send(fmt.Sprintf("%d", i)))
	}

	puller1, err := NewPuller("wqtest2", PullerOptions{TimeoutConnect: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { puller1.Close() })
	puller2, err := NewPuller("wqtest2", PullerOptions{TimeoutConnect: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { puller2.Close() })

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	for _, puller := range []*Puller{puller1, puller2} {
		wg.Add(1)
		go func(p *Puller) {
			defer wg.Done()
			for {
				var job string
				ok, err := p.Recv(20*time.Millisecond, &job)
				require.NoError(t, err)
				if !ok {
					return
				}
				mu.Lock()
				seen[job]++
				mu.Unlock()
			}
		}(puller)
	}
	wg.Wait()

	require.Len(t, seen, 100)
	for _, count := range seen {
		require.Equal(t, 1, count)
	}
}

func TestSecondPusherOnSameChannelIsRejected(t *testing.T) {
	// Multi-producer push is rejected via a dedicated producer lock.
	pusher, err := NewPusher("wqtest3", Options{NumSlots: 4, SlotSize: 64})
	require.NoError(t, err)
	t.Cleanup(func() { pusher.Close() })

	_, err = NewPusher("wqtest3", Options{NumSlots: 4, SlotSize: 64})
	require.ErrorIs(t, err, shmerr.ErrState)
}

func TestNonBlockingPushOnFullQueueReturnsBufferFull(t *testing.T) {
	pusher, err := NewPusher("wqtest4", Options{NumSlots: 2, SlotSize: 64})
	require.NoError(t, err)
	t.Cleanup(func() { pusher.Close() })
	pusher.Blocking = false

	require.NoError(t, pusher.Send("a"))
	require.NoError(t, pusher.Send("b"))
	err = pusher.Send("c")
	require.ErrorIs(t, err, shmerr.ErrBufferFull)
}
