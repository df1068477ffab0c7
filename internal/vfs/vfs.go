// Package vfs declares the external collaborator this subsystem assumes:
// an opaque vnode abstraction with read/write/stat/close and a seekable
// query, plus whole-path open on the VFS itself. The virtual filesystem itself is
// out of scope (see spec.md's "Out of scope" list); only the boundary it
// presents to the process/file subsystem lives here.
package vfs

// Stat is the subset of vnode metadata the subsystem needs (lseek's
// SEEK_END requires the current size).
type Stat struct {
	Size int64
}

// Vnode is a reference-counted handle to an open file or device.
type Vnode interface {
	Read(p []byte, offset int64) (n int, err error)
	Write(p []byte, offset int64) (n int, err error)
	Close() error
	Stat() (Stat, error)
	IsSeekable() bool

	// Ref and Unref track VFS-level interest in the vnode, independent of
	// the OpenFile refcount fork/dup2 maintain for descriptor sharing.
	Ref()
	Unref()
}

// VFS opens a path into a Vnode, honoring flags/mode the way open(2) would.
type VFS interface {
	Open(path string, flags int, mode uint32) (Vnode, error)
}
