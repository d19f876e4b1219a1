package lock

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNonBlockingAcquireFailsWhenHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	g1, err := Acquire(path, NonBlocking, 0)
	require.NoError(t, err)
	defer g1.Release()

	_, err = Acquire(path, NonBlocking, 0)
	require.Error(t, err)
}

func TestReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	g1, err := Acquire(path, NonBlocking, 0)
	require.NoError(t, err)
	require.NoError(t, g1.Release())

	g2, err := Acquire(path, NonBlocking, 0)
	require.NoError(t, err)
	require.NoError(t, g2.Release())
}

func TestTimedAcquireTimesOutWhenHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	g1, err := Acquire(path, NonBlocking, 0)
	require.NoError(t, err)
	defer g1.Release()

	start := time.Now()
	_, err = Acquire(path, Timed, 50*time.Millisecond)
	require.Error(t, err)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestReleaseTwiceIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	g, err := Acquire(path, NonBlocking, 0)
	require.NoError(t, err)
	require.NoError(t, g.Release())
	require.NoError(t, g.Release())
}

func TestReleaseOnNilGuard(t *testing.T) {
	var g *Guard
	require.NoError(t, g.Release())
}
