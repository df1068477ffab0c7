package kernel

import (
	"github.com/go-osk/osk/internal/errno"
	"github.com/go-osk/osk/internal/file"
	"github.com/go-osk/osk/internal/proc"
)

// Trapframe is an opaque snapshot of the caller's registers at syscall
// entry. This module never interprets it -- the trap/dispatch layer and
// trapframe format are external collaborators per spec.md's scope -- it
// only threads the value through to the forked child's entry closure, the
// way original_source's sys_fork copies *tf into a kernel-heap trapframe
// for child_execute to restore.
type Trapframe any

// Fork duplicates the caller's address space and descriptor table,
// allocates a new PID, and spawns the child via k.Spawner. childEntry is
// invoked by the spawner exactly once, in the child's "thread", with the
// child's pid and a copy of tf whose return-value register the caller is
// expected to have zeroed -- that register-zeroing is the trap layer's
// job, not this module's; here childEntry stands in for
// enter_forked_process.
func (s *Syscalls) Fork(caller *proc.Process, tf Trapframe, childEntry func(pid proc.Pid, tf Trapframe)) (childPID proc.Pid, err errno.Errno) {
	defer func() { err = s.record("fork", err) }()

	childAS, aserr := caller.AS.Copy()
	if aserr != nil {
		return 0, errno.ENOMEM
	}

	pid, perr := s.k.pids.Create(caller.Pid)
	if perr != 0 {
		childAS.Destroy()
		return 0, perr
	}

	childFds := file.NewFdTable(s.k.Limits.OpenMax, s.k.files)
	childFds.CopyFrom(caller.Fds)

	child := &proc.Process{
		Name:      caller.Name,
		Pid:       pid,
		ParentPID: caller.Pid,
		AS:        childAS,
		Fds:       childFds,
	}

	s.k.procsMu.Lock()
	s.k.procs[pid] = child
	s.k.procsMu.Unlock()

	if serr := s.k.Spawner.Spawn(func() {
		childEntry(pid, tf)
	}); serr != nil {
		s.k.procsMu.Lock()
		delete(s.k.procs, pid)
		s.k.procsMu.Unlock()
		childFds.Reset()
		s.k.pids.Abort(pid)
		childAS.Destroy()
		return 0, errno.ENOMEM
	}

	s.k.Log.Debugf("fork: pid %d -> child pid %d", caller.Pid, pid)
	return pid, 0
}
