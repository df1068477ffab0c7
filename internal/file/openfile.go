// Package file implements the two-level open-file subsystem: the global,
// reference-counted OpenFileTable and the per-process FdTable, grounded on
// original_source's kern/syscall/file.c and kern/syscall/file_syscalls.c.
package file

import (
	"sync"

	"github.com/go-osk/osk/internal/errno"
	"github.com/go-osk/osk/internal/klog"
	"github.com/go-osk/osk/internal/kmetrics"
	"github.com/go-osk/osk/internal/vfs"
)

// FileClosed is the FdTable sentinel for an empty descriptor slot.
const FileClosed = -1

// Access mode bits, the low two bits of the open(2) flags.
const (
	OAccMode = 0x3
	ORDONLY  = 0
	OWRONLY  = 1
	ORDWR    = 2
)

// Seek whences.
const (
	SeekSet = iota
	SeekCur
	SeekEnd
)

// OpenFile is a system-wide file object: a vnode, its access mode, its
// current offset, and the number of descriptor slots (across every
// process) that reference it. Fields are mutated only while the owning
// OpenFileTable's lock is held.
type OpenFile struct {
	vnode      vfs.Vnode
	accessMode int
	offset     int64
	refcount   int
}

// OpenFileTable is the fixed-capacity, globally shared table of live
// OpenFile entries. One lock serializes all structural changes and all
// field mutation of entries -- deliberately coarse, per spec.md section
// 4.2: it serializes concurrent readers/writers of the same descriptor
// (no interleaving within a single read/write call) and protects the
// offset. A production kernel would use a per-OpenFile lock.
type OpenFileTable struct {
	mu    sync.Mutex
	slots []*OpenFile

	log *klog.Logger
	m   *kmetrics.Metrics
}

// NewOpenFileTable builds an empty table with the given capacity
// (OPEN_MAX).
func NewOpenFileTable(capacity int, log *klog.Logger, m *kmetrics.Metrics) *OpenFileTable {
	return &OpenFileTable{
		slots: make([]*OpenFile, capacity),
		log:   log,
		m:     m,
	}
}

// Open installs v as a fresh OpenFile entry with refcount 1 and returns its
// table index. Returns EMFILE if the table has no empty slot.
func (t *OpenFileTable) Open(v vfs.Vnode, flags int) (int, errno.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := -1
	for i, s := range t.slots {
		if s == nil {
			idx = i
			break
		}
	}
	if idx == -1 {
		return 0, errno.EMFILE
	}
	t.slots[idx] = &OpenFile{
		vnode:      v,
		accessMode: flags & OAccMode,
		refcount:   1,
	}
	t.m.OpenFileTableOccupancy(t.occupiedLocked())
	return idx, 0
}

func (t *OpenFileTable) occupiedLocked() int {
	n := 0
	for _, s := range t.slots {
		if s != nil {
			n++
		}
	}
	return n
}

// Ref bumps the refcount of the entry at idx, for dup2 and fork.
func (t *OpenFileTable) Ref(idx int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.slots[idx]
	if s == nil {
		panic("file: ref of empty open-file slot")
	}
	s.refcount++
}

// Read transfers up to len(p) bytes from the entry at idx into p, starting
// at the entry's current offset, and advances that offset by the number of
// bytes actually transferred. EBADF if the access mode forbids reading.
func (t *OpenFileTable) Read(idx int, p []byte) (int, errno.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.slots[idx]
	if s == nil {
		return 0, errno.EBADF
	}
	if s.accessMode == OWRONLY {
		return 0, errno.EBADF
	}
	n, err := s.vnode.Read(p, s.offset)
	if err != nil {
		if e, ok := err.(errno.Errno); ok {
			return n, e
		}
		panic(err)
	}
	s.offset += int64(n)
	return n, 0
}

// Write transfers len(p) bytes from p into the entry at idx, starting at
// the entry's current offset, and advances that offset by the number of
// bytes actually transferred. EBADF if the access mode forbids writing.
func (t *OpenFileTable) Write(idx int, p []byte) (int, errno.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.slots[idx]
	if s == nil {
		return 0, errno.EBADF
	}
	if s.accessMode == ORDONLY {
		return 0, errno.EBADF
	}
	n, err := s.vnode.Write(p, s.offset)
	if err != nil {
		if e, ok := err.(errno.Errno); ok {
			return n, e
		}
		panic(err)
	}
	s.offset += int64(n)
	return n, 0
}

// Seek repositions the entry's offset per whence, returning the new offset.
// ESPIPE if the vnode is not seekable, EINVAL for a bad whence or a
// resulting negative offset.
func (t *OpenFileTable) Seek(idx int, pos int64, whence int) (int64, errno.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.slots[idx]
	if s == nil {
		return 0, errno.EBADF
	}
	if !s.vnode.IsSeekable() {
		return 0, errno.ESPIPE
	}

	prior := s.offset
	var next int64
	switch whence {
	case SeekSet:
		next = pos
	case SeekCur:
		next = s.offset + pos
	case SeekEnd:
		st, err := s.vnode.Stat()
		if err != nil {
			if e, ok := err.(errno.Errno); ok {
				return 0, e
			}
			panic(err)
		}
		next = pos + st.Size
	default:
		return 0, errno.EINVAL
	}
	if next < 0 {
		s.offset = prior
		return 0, errno.EINVAL
	}
	s.offset = next
	return next, 0
}

// closeLocked decrements the refcount of the entry at idx and, if it drops
// to zero, closes the vnode and nulls the slot. The caller must already
// hold t.mu; this split (closeLocked + Close) is the clean resolution to
// the lock-reentry problem spec.md section 9 names: dup2 calls closeLocked
// directly since it already holds the table lock, while external callers
// go through Close.
func (t *OpenFileTable) closeLocked(idx int) errno.Errno {
	s := t.slots[idx]
	if s == nil {
		return errno.EBADF
	}
	s.refcount--
	if s.refcount == 0 {
		if err := s.vnode.Close(); err != nil {
			if e, ok := err.(errno.Errno); ok {
				t.slots[idx] = nil
				t.m.OpenFileTableOccupancy(t.occupiedLocked())
				return e
			}
			panic(err)
		}
		t.slots[idx] = nil
		t.m.OpenFileTableOccupancy(t.occupiedLocked())
	}
	return 0
}

// Close is the public entry point for decrementing/freeing the entry at
// idx; it acquires the table lock itself. See closeLocked.
func (t *OpenFileTable) Close(idx int) errno.Errno {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked(idx)
}
