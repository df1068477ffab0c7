// Package kernel wires the PID table, open-file table, and process set
// into a single context object, per spec.md section 9's "Global mutable
// tables" note: represent them as owned-by-kernel state passed around
// explicitly, not as ambient package-level globals, so the subsystem can
// be instantiated fresh in each test.
package kernel

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/go-osk/osk/internal/errno"
	"github.com/go-osk/osk/internal/file"
	"github.com/go-osk/osk/internal/klog"
	"github.com/go-osk/osk/internal/kmetrics"
	"github.com/go-osk/osk/internal/proc"
	"github.com/go-osk/osk/internal/vfs"
	"github.com/go-osk/osk/internal/vm"
)

// ThreadSpawner stands in for the threading layer's thread_fork: it runs
// entry as a new "thread" and is responsible for eventually running it to
// completion. The default, ErrgroupSpawner, backs it with a goroutine
// joined by Wait, so tests get deterministic completion without this
// module inventing scheduler semantics spec.md puts out of scope.
type ThreadSpawner interface {
	Spawn(entry func()) error
}

// Kernel is the process/file subsystem's root context: the tables every
// syscall delegates to, plus the collaborators spec.md lists as external.
type Kernel struct {
	Limits  Limits
	VFS     vfs.VFS
	VM      vm.Factory
	Spawner ThreadSpawner
	Log     *klog.Logger
	Metrics *kmetrics.Metrics

	pids  *proc.PidTable
	files *file.OpenFileTable

	procsMu sync.Mutex
	procs   map[proc.Pid]*proc.Process
}

// New builds a Kernel over the given collaborators. base may be nil (a
// discarding logrus.Logger is used); reg may be nil (the metrics are still
// updated but registered nowhere, so nothing exports them).
func New(limits Limits, vfsImpl vfs.VFS, vmFactory vm.Factory, spawner ThreadSpawner, base *logrus.Logger, reg prometheus.Registerer) *Kernel {
	m := kmetrics.New(reg)
	log := klog.New(base, logrus.Fields{"component": "kernel"})
	return &Kernel{
		Limits:  limits,
		VFS:     vfsImpl,
		VM:      vmFactory,
		Spawner: spawner,
		Log:     log,
		Metrics: m,
		pids:    proc.NewPidTable(proc.Pid(limits.PidMin), proc.Pid(limits.PidMax), log, m),
		files:   file.NewOpenFileTable(limits.OpenMax, log, m),
		procs:   make(map[proc.Pid]*proc.Process),
	}
}

// Boot creates the first process (PID proc.PidBoot, parented by
// PidInvalid) with stdio opened against conPath (conventionally "con:"),
// mirroring the teacher's own bootstrap of the first program in main.go.
func (k *Kernel) Boot(name, conPath string) (*proc.Process, errno.Errno) {
	k.procsMu.Lock()
	defer k.procsMu.Unlock()

	as, err := k.VM.Create()
	if err != nil {
		return nil, errno.ENOMEM
	}
	p := &proc.Process{
		Name:      name,
		Pid:       proc.PidBoot,
		ParentPID: proc.PidInvalid,
		AS:        as,
		Fds:       file.NewFdTable(k.Limits.OpenMax, k.files),
	}
	if e := k.initStdio(p.Fds, conPath); e != 0 {
		return nil, e
	}
	k.procs[p.Pid] = p
	k.Log.Infof("boot: process %q running as pid %d", name, p.Pid)
	return p, 0
}

// initStdio performs the three stdio opens spec.md section 4.3 describes:
// first-fit from an empty table always lands them in fds 0, 1, 2.
func (k *Kernel) initStdio(fds *file.FdTable, conPath string) errno.Errno {
	for _, mode := range []int{file.ORDONLY, file.OWRONLY, file.OWRONLY} {
		_, err := fds.Open(func() (int, errno.Errno) {
			v, oerr := k.VFS.Open(conPath, mode, 0)
			if oerr != nil {
				if e, ok := oerr.(errno.Errno); ok {
					return 0, e
				}
				return 0, errno.ENOMEM
			}
			return k.files.Open(v, mode)
		})
		if err != 0 {
			return err
		}
	}
	return 0
}

// Process looks up a live process by pid.
func (k *Kernel) Process(pid proc.Pid) (*proc.Process, bool) {
	k.procsMu.Lock()
	defer k.procsMu.Unlock()
	p, ok := k.procs[pid]
	return p, ok
}

// ErrgroupSpawner runs each spawned entry as a member of an errgroup.Group,
// joined by Wait -- the default ThreadSpawner, grounded on gcsfuse's use of
// golang.org/x/sync/errgroup to fan out and join concurrent work. A forked
// process' entry never itself returns an error (it exits via thread_exit,
// not a Go return value), so Spawn always feeds the group a nil-returning
// func; Wait exists purely to let tests block until every forked "thread"
// has finished.
type ErrgroupSpawner struct {
	g errgroup.Group
}

func (s *ErrgroupSpawner) Spawn(entry func()) error {
	s.g.Go(func() error {
		entry()
		return nil
	})
	return nil
}

// Wait blocks until every spawned entry has returned. Useful in tests that
// need the forked child's goroutine to have finished before asserting on
// shared state.
func (s *ErrgroupSpawner) Wait() {
	_ = s.g.Wait()
}
