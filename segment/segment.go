// Package segment implements the named shared-memory region underneath
// every shmcomm channel: lifecycle (create/attach/unlink), naming, stale
// segment recovery, and the binary header/slot layout all participants
// agree on.
package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/aleph-ipc/shmcomm/shmerr"
)

// Prefix is prepended to every segment name this library creates, so
// List can enumerate library-owned segments and avoid colliding with
// unrelated shared memory on the host.
const Prefix = "shmcomm_"

// Role distinguishes the naming convention: request-reply is the only
// pattern that owns two segments for one logical channel name.
type Role string

const (
	RolePub  Role = "pub"
	RoleReq  Role = "req"
	RoleRep  Role = "rep"
	RolePush Role = "push"
)

// dir is the backing directory for segment files. /dev/shm is tmpfs-backed
// RAM on Linux; it falls back to os.TempDir on platforms without /dev/shm.
func dir() string {
	if st, err := os.Stat("/dev/shm"); err == nil && st.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

// QualifiedName builds the on-disk segment name for a role+channel pair,
// e.g. QualifiedName(RolePub, "t1") -> "shmcomm_pub_t1".
func QualifiedName(role Role, channel string) string {
	return Prefix + string(role) + "_" + channel
}

// Path returns the absolute filesystem path backing a qualified segment name.
func Path(qualifiedName string) string {
	return filepath.Join(dir(), qualifiedName)
}

// Handle is an open, mapped segment: either the owning producer's handle
// (from Create) or a consumer's non-owning attachment (from Attach).
type Handle struct {
	name   string // qualified name, e.g. "shmcomm_pub_t1"
	file   *os.File
	data   []byte
	header *Header
	owner  bool
}

// Name returns the qualified segment name.
func (h *Handle) Name() string { return h.name }

// Header exposes the segment's header for ring implementations.
func (h *Handle) Header() *Header { return h.header }

// Slot returns the byte range for slot index i (mod NumSlots), per §3's
// slot addressing invariant.
func (h *Handle) Slot(i uint64) []byte {
	numSlots := h.header.NumSlots()
	slotSize := h.header.SlotSize()
	idx := i % numSlots
	start := HeaderSize + int(idx*slotSize)
	return h.data[start : start+int(slotSize)]
}

// Size returns the total segment size in bytes (128 + NumSlots*SlotSize).
func (h *Handle) Size() int64 { return int64(len(h.data)) }

func segSize(numSlots, slotSize uint64) int64 {
	return HeaderSize + int64(numSlots*slotSize)
}

// Create allocates a new segment for name, unlinking any stale segment
// with the same qualified name first — stale segments matching the
// requested name are unlinked by the producer before creation. numSlots
// must be >= 1 and slotSize >= 8 (4-byte length prefix + minimum
// payload).
func Create(qualifiedName string, numSlots, slotSize uint64) (*Handle, error) {
	if numSlots < 1 {
		return nil, fmt.Errorf("%w: num_slots must be >= 1, got %d", shmerr.ErrConnection, numSlots)
	}
	if slotSize < 8 {
		return nil, fmt.Errorf("%w: slot_size must be >= 8, got %d", shmerr.ErrConnection, slotSize)
	}

	path := Path(qualifiedName)
	if _, err := os.Stat(path); err == nil {
		log.Warnf("segment: stale segment %s found, unlinking before create", qualifiedName)
		_ = os.Remove(path)
	}

	size := segSize(numSlots, slotSize)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", shmerr.ErrConnection, path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: truncate %s: %v", shmerr.ErrConnection, path, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: mmap %s: %v", shmerr.ErrConnection, path, err)
	}

	h := &Handle{name: qualifiedName, file: f, data: data, header: newHeader(data), owner: true}
	h.header.initCreate(numSlots, slotSize)
	return h, nil
}

// pollInterval bounds how often Attach re-checks for the segment's
// appearance, per §4.1 ("Poll interval is implementation-defined, <=10ms").
const pollInterval = 5 * time.Millisecond

// Attach polls until the named segment appears or deadline elapses,
// validating MAGIC and VERSION. Returns a non-owning handle: Close never
// unlinks the backing segment.
func Attach(qualifiedName string, timeoutConnect time.Duration) (*Handle, error) {
	path := Path(qualifiedName)
	deadline := time.Now().Add(timeoutConnect)

	var f *os.File
	var err error
	for {
		f, err = os.OpenFile(path, os.O_RDWR, 0644)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: attach %s: timed out waiting for segment", shmerr.ErrConnection, qualifiedName)
		}
		time.Sleep(pollInterval)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", shmerr.ErrConnection, path, err)
	}
	if st.Size() < HeaderSize {
		f.Close()
		return nil, fmt.Errorf("%w: %s: segment too small to hold a header", shmerr.ErrConnection, qualifiedName)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: mmap %s: %v", shmerr.ErrConnection, path, err)
	}

	header := newHeader(data)
	if header.Magic() != Magic {
		unix.Munmap(data)
		f.Close()
		return nil, fmt.Errorf("%w: %s: magic mismatch", shmerr.ErrConnection, qualifiedName)
	}
	if header.Version() != Version {
		unix.Munmap(data)
		f.Close()
		return nil, fmt.Errorf("%w: %s: version mismatch (got %d, want %d)", shmerr.ErrConnection, qualifiedName, header.Version(), Version)
	}

	return &Handle{name: qualifiedName, file: f, data: data, header: header, owner: false}, nil
}

// Close unmaps and closes the handle's file descriptor. It never unlinks
// the backing segment, even for an owning handle — call Unlink explicitly.
// Calling Close twice is a no-op on the second call.
func (h *Handle) Close() error {
	if h.data == nil {
		return nil
	}
	err := unix.Munmap(h.data)
	h.data = nil
	h.header = nil
	if cerr := h.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Unlink removes the segment's backing file. Intended for the owning
// producer only, but implemented as a free function (Unlink/ForceUnlink)
// so administrative cleanup doesn't need a live handle.
func Unlink(qualifiedName string) bool {
	err := os.Remove(Path(qualifiedName))
	return err == nil
}

// ForceUnlink removes a segment by its full qualified name regardless of
// ownership. Idempotent: unlinking an absent name returns false without
// error.
func ForceUnlink(qualifiedName string) bool {
	return Unlink(qualifiedName)
}

// List enumerates the qualified names of every library-prefixed segment
// currently present in the backing directory.
func List() ([]string, error) {
	entries, err := os.ReadDir(dir())
	if err != nil {
		return nil, fmt.Errorf("%w: list segments: %v", shmerr.ErrConnection, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), Prefix) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
