package segment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateInitializesHeader(t *testing.T) {
	name := "shmcomm_test_create1"
	t.Cleanup(func() { Unlink(name) })

	h, err := Create(name, 4, 64)
	require.NoError(t, err)
	defer h.Close()

	require.Equal(t, Magic, h.Header().Magic())
	require.Equal(t, Version, h.Header().Version())
	require.Equal(t, uint64(4), h.Header().NumSlots())
	require.Equal(t, uint64(64), h.Header().SlotSize())
	require.Equal(t, uint64(0), h.Header().Head())
	require.EqualValues(t, HeaderSize+4*64, h.Size())
}

func TestAttachValidatesMagicAndVersion(t *testing.T) {
	name := "shmcomm_test_attach1"
	t.Cleanup(func() { Unlink(name) })

	h, err := Create(name, 4, 64)
	require.NoError(t, err)
	defer h.Close()

	h2, err := Attach(name, time.Second)
	require.NoError(t, err)
	defer h2.Close()

	require.Equal(t, Magic, h2.Header().Magic())
}

func TestAttachTimesOutWhenAbsent(t *testing.T) {
	_, err := Attach("shmcomm_test_never_exists", 20*time.Millisecond)
	require.Error(t, err)
}

func TestCreateUnlinksStaleSegment(t *testing.T) {
	// create, "crash" (don't close), create again must succeed via
	// auto-unlink.
	name := "shmcomm_test_stale"
	t.Cleanup(func() { Unlink(name) })

	h1, err := Create(name, 4, 64)
	require.NoError(t, err)
	h1.Header().StoreHead(7) // simulate activity before the "crash"

	h2, err := Create(name, 4, 64)
	require.NoError(t, err)
	defer h2.Close()

	// The new segment is fresh: HEAD is back to zero.
	require.Equal(t, uint64(0), h2.Header().Head())
}

func TestUnlinkIsIdempotent(t *testing.T) {
	require.False(t, Unlink("shmcomm_test_never_existed_either"))

	name := "shmcomm_test_unlink1"
	h, err := Create(name, 2, 16)
	require.NoError(t, err)
	h.Close()

	require.True(t, Unlink(name))
	require.False(t, Unlink(name))
}

func TestListIncludesCreatedSegments(t *testing.T) {
	name := "shmcomm_test_list1"
	t.Cleanup(func() { Unlink(name) })

	h, err := Create(name, 2, 16)
	require.NoError(t, err)
	defer h.Close()

	names, err := List()
	require.NoError(t, err)
	require.Contains(t, names, name)
}

func TestSlotAddressing(t *testing.T) {
	name := "shmcomm_test_slot1"
	t.Cleanup(func() { Unlink(name) })

	h, err := Create(name, 4, 32)
	require.NoError(t, err)
	defer h.Close()

	s0 := h.Slot(0)
	s4 := h.Slot(4) // wraps to slot 0 (4 mod 4 == 0)
	require.Equal(t, &s0[0], &s4[0])
	require.Len(t, s0, 32)
}
