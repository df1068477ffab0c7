package proc

import (
	"github.com/go-osk/osk/internal/file"
	"github.com/go-osk/osk/internal/vm"
)

// Process is an address space, a PID, a parent PID, a name, and an FD
// table, per spec.md section 3.
type Process struct {
	Name      string
	Pid       Pid
	ParentPID Pid
	AS        vm.AddressSpace
	Fds       *file.FdTable
}
