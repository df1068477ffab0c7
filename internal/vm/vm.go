// Package vm declares the external collaborator spec.md assumes for
// address spaces: create/copy/activate/destroy plus ELF loading and stack
// definition. Actual paging, mapping, and ELF parsing are out of scope.
package vm

import "github.com/go-osk/osk/internal/vfs"

// AddressSpace is an opaque per-process address space.
type AddressSpace interface {
	Copy() (AddressSpace, error)
	Activate()
	Destroy()

	// LoadELF maps the program image from v and returns its entry point.
	LoadELF(v vfs.Vnode) (entry uintptr, err error)

	// DefineStack carves out the initial user stack and returns its
	// initial (highest) stack pointer.
	DefineStack() (initialSP uintptr, err error)

	// PushBytes copies b below sp and returns the new (decremented) sp,
	// the address at which b now lives.
	PushBytes(sp uintptr, b []byte) (newSP uintptr, err error)

	// PushWord copies a single machine word below sp.
	PushWord(sp uintptr, w uintptr) (newSP uintptr, err error)

	// AlignDown rounds sp down to a multiple of n.
	AlignDown(sp uintptr, n uintptr) uintptr
}

// Factory creates a fresh, empty address space (used by exec once the old
// address space's program image is being replaced).
type Factory interface {
	Create() (AddressSpace, error)
}
