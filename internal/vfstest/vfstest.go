// Package vfstest is an in-memory implementation of the vfs.VFS/vfs.Vnode
// collaborator interfaces, standing in for the real virtual file system
// spec.md declares out of scope. It backs both the test suite and
// cmd/kernelsim.
package vfstest

import (
	"sync"

	"github.com/google/uuid"

	"github.com/go-osk/osk/internal/errno"
	"github.com/go-osk/osk/internal/vfs"
)

// File is a named, seekable, in-memory byte blob.
type File struct {
	mu   sync.Mutex
	id   uuid.UUID
	data []byte
}

// Device is an in-memory stand-in for a character device (e.g. "con:"):
// reads and writes never grow or persist independent of each other, and it
// reports as non-seekable, matching the console's ESPIPE behavior in
// spec.md's scenario 7.
type Device struct {
	mu  sync.Mutex
	buf []byte // console devices in this double append writes and let reads drain them FIFO
}

// FS is an in-memory VFS: a name -> backing-object map, plus a registry of
// paths that should behave as non-seekable devices.
type FS struct {
	mu      sync.Mutex
	files   map[string]*File
	devices map[string]*Device
}

// New builds an empty FS. devicePaths names the paths that should open as
// Device (non-seekable) rather than File (seekable); "con:" is the
// convention spec.md's glossary documents for the console.
func New(devicePaths ...string) *FS {
	fs := &FS{
		files:   make(map[string]*File),
		devices: make(map[string]*Device),
	}
	for _, p := range devicePaths {
		fs.devices[p] = &Device{}
	}
	return fs
}

// Open implements vfs.VFS. Regular files are created on first open
// (O_CREAT is implicit in this test double, since exercising ENOENT
// policy is the real VFS's concern, not this subsystem's).
func (fs *FS) Open(path string, flags int, mode uint32) (vfs.Vnode, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if d, ok := fs.devices[path]; ok {
		return &vnodeHandle{backing: d}, nil
	}
	f, ok := fs.files[path]
	if !ok {
		f = &File{id: uuid.New()}
		fs.files[path] = f
	}
	return &vnodeHandle{backing: f}, nil
}

// vnodeHandle adapts *File/*Device to vfs.Vnode. Each Open call returns a
// fresh handle sharing the same backing storage, matching how distinct
// OpenFile entries (from separate open(2) calls on the same path) share
// no state except the underlying vnode.
type vnodeHandle struct {
	backing interface{}
	closed  bool
}

func (h *vnodeHandle) Ref()   {}
func (h *vnodeHandle) Unref() {}

func (h *vnodeHandle) Close() error {
	h.closed = true
	return nil
}

func (h *vnodeHandle) IsSeekable() bool {
	_, isDevice := h.backing.(*Device)
	return !isDevice
}

func (h *vnodeHandle) Stat() (vfs.Stat, error) {
	f, ok := h.backing.(*File)
	if !ok {
		return vfs.Stat{}, errno.ESPIPE
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return vfs.Stat{Size: int64(len(f.data))}, nil
}

func (h *vnodeHandle) Read(p []byte, offset int64) (int, error) {
	switch b := h.backing.(type) {
	case *File:
		b.mu.Lock()
		defer b.mu.Unlock()
		if offset >= int64(len(b.data)) {
			return 0, nil
		}
		n := copy(p, b.data[offset:])
		return n, nil
	case *Device:
		b.mu.Lock()
		defer b.mu.Unlock()
		n := copy(p, b.buf)
		b.buf = b.buf[n:]
		return n, nil
	default:
		return 0, errno.EBADF
	}
}

func (h *vnodeHandle) Write(p []byte, offset int64) (int, error) {
	switch b := h.backing.(type) {
	case *File:
		b.mu.Lock()
		defer b.mu.Unlock()
		end := offset + int64(len(p))
		if end > int64(len(b.data)) {
			grown := make([]byte, end)
			copy(grown, b.data)
			b.data = grown
		}
		copy(b.data[offset:end], p)
		return len(p), nil
	case *Device:
		b.mu.Lock()
		defer b.mu.Unlock()
		b.buf = append(b.buf, p...)
		return len(p), nil
	default:
		return 0, errno.EBADF
	}
}

// Contents returns the current bytes stored at path, for test assertions.
func (fs *FS) Contents(path string) []byte {
	fs.mu.Lock()
	f, ok := fs.files[path]
	fs.mu.Unlock()
	if !ok {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out
}
