package kernel

import (
	"github.com/go-osk/osk/internal/errno"
	"github.com/go-osk/osk/internal/file"
	"github.com/go-osk/osk/internal/proc"
)

// UserArg is one user-supplied argv entry: the string content copy_in_str
// would have retrieved, plus the synthetic user address it lived at. The
// address only exists so tests can exercise the EFAULT path (an address at
// or above Limits.UserCeiling) without a real address space backing it --
// see SPEC_FULL.md section 6.
type UserArg struct {
	Addr uintptr
	Str  string
}

// ExecResult is what the trap/dispatch layer (external, out of scope)
// would use to enter user mode: the ELF entry point, argc, the user
// address of argv[0]'s pointer, and the initial stack pointer. Exec never
// "returns" to user code in a real kernel; here, returning ExecResult with
// a zero errno plays that role, and the caller resumes execution framing
// (trapframe, register assignment) on its own.
type ExecResult struct {
	Entry   uintptr
	Argc    int
	ArgvPtr uintptr
	SP      uintptr
}

// Exec replaces the caller's program image: it copies in progPath and
// argv, re-initializes stdio, loads the new ELF into a fresh address
// space, and serializes argv onto the new user stack, per spec.md section
// 4.4's six-step layout (null terminator, strings high-to-low, alignment,
// null pointer, pointers high-to-low).
func (s *Syscalls) Exec(caller *proc.Process, progPath UserArg, argv []UserArg, conPath string) (res ExecResult, err errno.Errno) {
	defer func() { err = s.record("execv", err) }()

	if progPath.Addr >= s.k.Limits.UserCeiling {
		return ExecResult{}, errno.EFAULT
	}
	for _, a := range argv {
		if a.Addr >= s.k.Limits.UserCeiling {
			return ExecResult{}, errno.EFAULT
		}
	}

	if progPath.Str == "" {
		return ExecResult{}, errno.ENOEXEC
	}

	total := len(progPath.Str) + 1
	for _, a := range argv {
		total += len(a.Str) + 1
		if total > s.k.Limits.ArgMax {
			return ExecResult{}, errno.E2BIG
		}
	}

	caller.Fds.Reset()
	if e := s.k.initStdio(caller.Fds, conPath); e != 0 {
		return ExecResult{}, e
	}

	v, verr := s.k.VFS.Open(progPath.Str, file.ORDONLY, 0)
	if verr != nil {
		if e, ok := verr.(errno.Errno); ok {
			return ExecResult{}, e
		}
		return ExecResult{}, errno.ENOMEM
	}

	newAS, aserr := s.k.VM.Create()
	if aserr != nil {
		v.Close()
		return ExecResult{}, errno.ENOMEM
	}
	newAS.Activate()

	entry, lerr := newAS.LoadELF(v)
	v.Close()
	if lerr != nil {
		newAS.Destroy()
		if e, ok := lerr.(errno.Errno); ok {
			return ExecResult{}, e
		}
		return ExecResult{}, errno.ENOEXEC
	}

	sp, serr := newAS.DefineStack()
	if serr != nil {
		newAS.Destroy()
		return ExecResult{}, errno.ENOMEM
	}

	argc := len(argv) + 1
	allArgs := make([]string, 0, argc)
	allArgs = append(allArgs, progPath.Str)
	for _, a := range argv {
		allArgs = append(allArgs, a.Str)
	}

	userPtrs := make([]uintptr, argc)

	// 1. null terminator word, at the top of the stack above every string.
	var perr error
	sp, perr = newAS.PushWord(sp, 0)
	if perr != nil {
		newAS.Destroy()
		return ExecResult{}, errno.ENOMEM
	}

	// 2. strings pushed high-to-low, recording each pushed address.
	for i := argc - 1; i >= 0; i-- {
		b := append([]byte(allArgs[i]), 0)
		sp, perr = newAS.PushBytes(sp, b)
		if perr != nil {
			newAS.Destroy()
			return ExecResult{}, errno.ENOMEM
		}
		userPtrs[i] = sp
	}

	// 3. align down to a 4-byte boundary.
	sp = newAS.AlignDown(sp, 4)

	// 4. null pointer (argv sentinel), 5. pointers pushed high-to-low.
	sp, perr = newAS.PushWord(sp, 0)
	if perr != nil {
		newAS.Destroy()
		return ExecResult{}, errno.ENOMEM
	}
	for i := argc - 1; i >= 0; i-- {
		sp, perr = newAS.PushWord(sp, userPtrs[i])
		if perr != nil {
			newAS.Destroy()
			return ExecResult{}, errno.ENOMEM
		}
	}

	// 6. argv is the address of the last word pushed (argv[0]'s pointer).
	argvPtr := sp

	oldAS := caller.AS
	caller.AS = newAS
	// Past this point nothing in this module can fail: the old address
	// space is gone, so any later error would be irrecoverable and, in a
	// real kernel, fatal via panic (spec.md section 7).
	oldAS.Destroy()

	return ExecResult{Entry: entry, Argc: argc, ArgvPtr: argvPtr, SP: sp}, 0
}
