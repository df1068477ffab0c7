// Package proc implements the PID allocator/reaper and the process
// lifecycle (fork/exec/exit/wait), grounded on original_source's
// kern/thread/pid.c and kern/syscall/proc_syscalls.c and styled after the
// teacher's (justanotherdot-biscuit) proc_new in kernel/main.go.
package proc

import (
	"sync"

	"github.com/go-osk/osk/internal/errno"
	"github.com/go-osk/osk/internal/klog"
	"github.com/go-osk/osk/internal/kmetrics"
)

// Pid identifies a process. PidInvalid is the "no parent" / "unset"
// sentinel used once a wait has consumed a zombie entry.
type Pid int

const (
	PidInvalid Pid = 0
	PidBoot    Pid = 1
)

// pidEntry is the per-PID bookkeeping described in spec.md section 3.
type pidEntry struct {
	pid        Pid
	parentPID  Pid
	exited     bool
	exitStatus int
	cv         *sync.Cond
}

// reapable reports whether this slot may be overwritten by a later
// allocation: the process has exited and its parent link has been
// invalidated, either by wait or by Abort. An exited entry that nobody has
// waited on is not reapable.
func (e *pidEntry) reapable() bool {
	return e.parentPID == PidInvalid && e.exited
}

// PidTable allocates PIDs in [PidMin, PidMax] and mediates parent/child
// synchronization around exit. One lock protects all slot mutation and all
// entry-field writes, matching original_source's single pt_lock: the table
// is small and every operation is already O(PidMax) in the worst case, so
// a coarser lock buys correctness (wait's check-sleep-recheck is race-free
// under the same lock it broadcasts on) without meaningfully hurting
// throughput.
type PidTable struct {
	mu    sync.Mutex
	min   Pid
	max   Pid
	top   Pid
	slots map[Pid]*pidEntry

	log *klog.Logger
	m   *kmetrics.Metrics
}

// NewPidTable builds an empty table covering [min, max].
func NewPidTable(min, max Pid, log *klog.Logger, m *kmetrics.Metrics) *PidTable {
	return &PidTable{
		min:   min,
		max:   max,
		top:   min,
		slots: make(map[Pid]*pidEntry),
		log:   log,
		m:     m,
	}
}

// Create allocates a fresh PID parented by parentPID, scanning from the
// rolling cursor for an empty or reapable-zombie slot. It returns
// errno.ENPROC if no slot is available after a full sweep.
func (t *PidTable) Create(parentPID Pid) (Pid, errno.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()

	span := t.max - t.min + 1
	for i := Pid(0); i < span; i++ {
		cand := t.min + (t.top-t.min+i)%span
		cur := t.slots[cand]
		if cur == nil || cur.reapable() {
			if cur != nil && cur.reapable() {
				t.log.Debugf("pid %d: reaping zombie slot for new allocation", cand)
			}
			t.slots[cand] = &pidEntry{
				pid:       cand,
				parentPID: parentPID,
				cv:        sync.NewCond(&t.mu),
			}
			t.top = cand + 1
			if t.top > t.max {
				t.top = t.min
			}
			t.m.PidTableOccupancy(len(t.slots))
			return cand, 0
		}
	}
	return 0, errno.ENPROC
}

// Exit marks pid as exited with the given status and wakes any waiter.
// The entry is not freed here; only wait (or a later Create finding a
// reapable slot) retires it, matching the opportunistic-reuse zombie
// policy spec.md section 9 calls out by name.
func (t *PidTable) Exit(pid Pid, status int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.slots[pid]
	if !ok {
		panic("proc: exit of unknown pid")
	}
	e.exited = true
	e.exitStatus = status
	e.cv.Broadcast()
	t.log.Debugf("pid %d: exited with status %d", pid, status)
}

// Abort immediately releases a just-allocated PID that never became a
// running process (e.g. fork failed after PidTable.Create but before the
// child thread was spawned), making the slot reapable without anyone
// having to wait on it.
func (t *PidTable) Abort(pid Pid) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.slots[pid]
	if !ok {
		panic("proc: abort of unknown pid")
	}
	e.exited = true
	e.parentPID = PidInvalid
}

// Wait blocks until target exits, then reports its status and marks the
// slot reapable. It is an error to wait on a pid that is not (or is no
// longer) the caller's child.
func (t *PidTable) Wait(target, caller Pid) (status int, err errno.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.slots[target]
	if !ok || e.reapable() {
		return 0, errno.ESRCH
	}
	if e.parentPID != caller {
		return 0, errno.ECHILD
	}
	for !e.exited {
		e.cv.Wait()
	}
	status = e.exitStatus
	e.parentPID = PidInvalid
	t.m.PidZombieReaped()
	return status, 0
}

// Occupancy reports the number of PIDs that hold an entry, for diagnostics
// and tests. Entries are never removed, only overwritten by Create, so
// reaped slots that have not been reused are counted too.
func (t *PidTable) Occupancy() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
