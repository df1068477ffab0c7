// Package vmtest is an in-memory implementation of the vm.AddressSpace/
// vm.Factory collaborator interfaces, standing in for the real paging and
// ELF-loading layer spec.md declares out of scope. It models just enough
// of a user stack (a byte-addressed map plus a stack pointer) to exercise
// and assert on exec's argv layout (spec.md scenario 6).
package vmtest

import (
	"encoding/binary"

	"github.com/go-osk/osk/internal/vfs"
	"github.com/go-osk/osk/internal/vm"
)

const (
	// DefaultEntry is the fake ELF entry point LoadELF reports.
	DefaultEntry uintptr = 0x400000
	// DefaultStackTop is the initial stack pointer DefineStack reports.
	DefaultStackTop uintptr = 0x80000000
	wordSize                = 8
)

// AddressSpace is a flat, unbounded simulated address space: a byte map
// keyed by address, written downward from DefaultStackTop the way a real
// stack grows toward lower addresses.
type AddressSpace struct {
	mem      map[uintptr]byte
	destroyed bool
}

// Factory builds fresh AddressSpace values, satisfying vm.Factory.
type Factory struct{}

func (Factory) Create() (vm.AddressSpace, error) {
	return &AddressSpace{mem: make(map[uintptr]byte)}, nil
}

func (a *AddressSpace) Copy() (vm.AddressSpace, error) {
	cp := &AddressSpace{mem: make(map[uintptr]byte, len(a.mem))}
	for k, v := range a.mem {
		cp.mem[k] = v
	}
	return cp, nil
}

func (a *AddressSpace) Activate() {}

func (a *AddressSpace) Destroy() {
	a.destroyed = true
	a.mem = nil
}

// LoadELF ignores v's contents (there is no real ELF format here) and
// reports a fixed entry point, as if the program image were always the
// same trivial binary.
func (a *AddressSpace) LoadELF(v vfs.Vnode) (uintptr, error) {
	return DefaultEntry, nil
}

func (a *AddressSpace) DefineStack() (uintptr, error) {
	return DefaultStackTop, nil
}

func (a *AddressSpace) PushBytes(sp uintptr, b []byte) (uintptr, error) {
	newSP := sp - uintptr(len(b))
	for i, c := range b {
		a.mem[newSP+uintptr(i)] = c
	}
	return newSP, nil
}

func (a *AddressSpace) PushWord(sp uintptr, w uintptr) (uintptr, error) {
	var b [wordSize]byte
	binary.LittleEndian.PutUint64(b[:], uint64(w))
	return a.PushBytes(sp, b[:])
}

func (a *AddressSpace) AlignDown(sp uintptr, n uintptr) uintptr {
	return sp - (sp % n)
}

// PeekBytes reads n bytes starting at addr, for test assertions against
// the argv layout exec produced. Unwritten addresses read as zero.
func (a *AddressSpace) PeekBytes(addr uintptr, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = a.mem[addr+uintptr(i)]
	}
	return out
}

// PeekWord reads one machine word at addr.
func (a *AddressSpace) PeekWord(addr uintptr) uintptr {
	b := a.PeekBytes(addr, wordSize)
	return uintptr(binary.LittleEndian.Uint64(b))
}
