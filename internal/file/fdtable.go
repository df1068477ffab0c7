package file

import (
	"sync"

	"github.com/go-osk/osk/internal/errno"
)

// FdTable is a process' fixed-capacity mapping of small integer
// descriptors to OpenFileTable indices, per spec.md section 4.3.
type FdTable struct {
	mu      sync.Mutex
	entries []int
	oft     *OpenFileTable
}

// NewFdTable builds an empty table (all entries FileClosed) backed by oft.
func NewFdTable(capacity int, oft *OpenFileTable) *FdTable {
	t := &FdTable{
		entries: make([]int, capacity),
		oft:     oft,
	}
	for i := range t.entries {
		t.entries[i] = FileClosed
	}
	return t
}

func (t *FdTable) valid(fd int) bool {
	return fd >= 0 && fd < len(t.entries)
}

// Open opens path through vfsOpen, installs the result in both the global
// table and the first free local slot, and returns the new descriptor.
func (t *FdTable) Open(vfsOpen func() (int, errno.Errno)) (int, errno.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fd := -1
	for i, e := range t.entries {
		if e == FileClosed {
			fd = i
			break
		}
	}
	if fd == -1 {
		return 0, errno.EMFILE
	}
	idx, err := vfsOpen()
	if err != 0 {
		return 0, err
	}
	t.entries[fd] = idx
	return fd, 0
}

// Read reads from fd via the global table.
func (t *FdTable) Read(fd int, p []byte) (int, errno.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.valid(fd) || t.entries[fd] == FileClosed {
		return 0, errno.EBADF
	}
	return t.oft.Read(t.entries[fd], p)
}

// Write writes to fd via the global table.
func (t *FdTable) Write(fd int, p []byte) (int, errno.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.valid(fd) || t.entries[fd] == FileClosed {
		return 0, errno.EBADF
	}
	return t.oft.Write(t.entries[fd], p)
}

// Seek repositions fd's offset via the global table.
func (t *FdTable) Seek(fd int, pos int64, whence int) (int64, errno.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.valid(fd) || t.entries[fd] == FileClosed {
		return 0, errno.EBADF
	}
	return t.oft.Seek(t.entries[fd], pos, whence)
}

// Close closes fd: decrements the referenced OpenFile's refcount (freeing
// it at zero) and marks the local slot FileClosed.
func (t *FdTable) Close(fd int) errno.Errno {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.valid(fd) {
		return errno.EBADF
	}
	idx := t.entries[fd]
	if idx == FileClosed {
		return errno.EBADF
	}
	t.entries[fd] = FileClosed
	return t.oft.Close(idx)
}

// Dup2 makes newfd reference the same OpenFile as oldfd, closing whatever
// newfd previously pointed at. If oldfd == newfd it is a no-op returning
// newfd. EBADF if either descriptor is out of range, or if oldfd is closed.
func (t *FdTable) Dup2(oldfd, newfd int) (int, errno.Errno) {
	if !t.valid(oldfd) || !t.valid(newfd) {
		return 0, errno.EBADF
	}
	if oldfd == newfd {
		return newfd, 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	oldIdx := t.entries[oldfd]
	if oldIdx == FileClosed {
		return 0, errno.EBADF
	}

	// The refcount bump and the release of newfd's prior entry happen in one
	// open-file-table critical section; the nested close goes through
	// closeLocked since the table lock is already held.
	t.oft.mu.Lock()
	t.oft.slots[oldIdx].refcount++
	if newIdx := t.entries[newfd]; newIdx != FileClosed {
		t.oft.closeLocked(newIdx)
	}
	t.oft.mu.Unlock()
	t.entries[newfd] = oldIdx
	return newfd, 0
}

// CopyFrom duplicates parent's descriptor layout into t (a freshly created,
// empty table) and bumps the OpenFileTable refcount of every live entry --
// the fork behavior spec.md section 9 calls the corrected fix for the
// source's bytewise-copy-without-refcounting bug.
func (t *FdTable) CopyFrom(parent *FdTable) {
	parent.mu.Lock()
	defer parent.mu.Unlock()

	copy(t.entries, parent.entries)
	for _, idx := range t.entries {
		if idx != FileClosed {
			t.oft.Ref(idx)
		}
	}
}

// Reset closes every live descriptor in order (fd 0 upward), as exec does
// before re-initializing stdio, and as exit does during teardown.
func (t *FdTable) Reset() {
	t.mu.Lock()
	fds := make([]int, 0, len(t.entries))
	for fd, e := range t.entries {
		if e != FileClosed {
			fds = append(fds, fd)
		}
	}
	t.mu.Unlock()

	for _, fd := range fds {
		t.Close(fd)
	}
}
