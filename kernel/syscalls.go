package kernel

import (
	"github.com/go-osk/osk/internal/errno"
	"github.com/go-osk/osk/internal/proc"
)

// Syscalls is the facade bound to one Kernel: argument validation,
// user/kernel copy (modeled here as plain Go values, see SPEC_FULL.md
// section 6), and delegation into FdTable/OpenFileTable/PidTable.
type Syscalls struct {
	k *Kernel
}

// NewSyscalls binds a syscall facade to k.
func NewSyscalls(k *Kernel) *Syscalls { return &Syscalls{k: k} }

// waitpid options. WUNTRACED and WNOHANG are accepted but ignored per
// spec.md's non-goals (job control, non-blocking wait); only their
// presence as valid values is enforced.
const (
	WUNTRACED = 1
	WNOHANG   = 2
)

func (s *Syscalls) record(name string, e errno.Errno) errno.Errno {
	if e == 0 {
		s.k.Metrics.Syscall(name, "ok")
	} else {
		s.k.Metrics.Syscall(name, e.Error())
	}
	return e
}

// Open opens path for the caller and returns its new descriptor.
func (s *Syscalls) Open(caller *proc.Process, path string, flags int, mode uint32) (fd int, err errno.Errno) {
	defer func() { err = s.record("open", err) }()

	fd, err = caller.Fds.Open(func() (int, errno.Errno) {
		v, verr := s.k.VFS.Open(path, flags, mode)
		if verr != nil {
			if e, ok := verr.(errno.Errno); ok {
				return 0, e
			}
			return 0, errno.ENOMEM
		}
		return s.k.files.Open(v, flags)
	})
	return fd, err
}

// Read reads up to len(buf) bytes from fd into buf.
func (s *Syscalls) Read(caller *proc.Process, fd int, buf []byte) (n int, err errno.Errno) {
	defer func() { err = s.record("read", err) }()
	n, err = caller.Fds.Read(fd, buf)
	return n, err
}

// Write writes buf to fd.
func (s *Syscalls) Write(caller *proc.Process, fd int, buf []byte) (n int, err errno.Errno) {
	defer func() { err = s.record("write", err) }()
	n, err = caller.Fds.Write(fd, buf)
	return n, err
}

// Close closes fd.
func (s *Syscalls) Close(caller *proc.Process, fd int) (err errno.Errno) {
	defer func() { err = s.record("close", err) }()
	err = caller.Fds.Close(fd)
	return err
}

// Lseek repositions fd's offset.
func (s *Syscalls) Lseek(caller *proc.Process, fd int, pos int64, whence int) (newOff int64, err errno.Errno) {
	defer func() { err = s.record("lseek", err) }()
	newOff, err = caller.Fds.Seek(fd, pos, whence)
	return newOff, err
}

// Dup2 makes newfd an alias of oldfd.
func (s *Syscalls) Dup2(caller *proc.Process, oldfd, newfd int) (result int, err errno.Errno) {
	defer func() { err = s.record("dup2", err) }()
	result, err = caller.Fds.Dup2(oldfd, newfd)
	return result, err
}

// Getpid returns the caller's pid; it cannot fail.
func (s *Syscalls) Getpid(caller *proc.Process) proc.Pid {
	s.k.Metrics.Syscall("getpid", "ok")
	return caller.Pid
}

// Waitpid waits for target to exit and reports its status.
func (s *Syscalls) Waitpid(caller *proc.Process, target proc.Pid, options int) (waitedPid proc.Pid, status int, err errno.Errno) {
	defer func() { err = s.record("waitpid", err) }()

	if target < proc.Pid(s.k.Limits.PidMin) || target > proc.Pid(s.k.Limits.PidMax) {
		return 0, 0, errno.ESRCH
	}
	if options != 0 && options != WUNTRACED && options != WNOHANG {
		return 0, 0, errno.EINVAL
	}

	status, werr := s.k.pids.Wait(target, caller.Pid)
	if werr != 0 {
		return 0, 0, werr
	}
	return target, status, 0
}

// Exit delegates to the PID table then tears down the caller's resources:
// close every live descriptor (draining open-file refcounts) and remove
// the process from the kernel's process set. It never returns to the
// caller in a real kernel (thread_exit doesn't return); here it simply
// returns once teardown is complete, since there is no scheduler to hand
// control back to.
func (s *Syscalls) Exit(caller *proc.Process, status int) {
	s.k.Metrics.Syscall("_exit", "ok")
	s.k.pids.Exit(caller.Pid, status)
	caller.Fds.Reset()
	caller.AS.Destroy()

	s.k.procsMu.Lock()
	delete(s.k.procs, caller.Pid)
	s.k.procsMu.Unlock()
}
