package kernel_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-osk/osk/internal/errno"
	"github.com/go-osk/osk/internal/file"
	"github.com/go-osk/osk/internal/proc"
	"github.com/go-osk/osk/internal/vfstest"
	"github.com/go-osk/osk/internal/vmtest"
	"github.com/go-osk/osk/kernel"
)

func newTestKernel(t *testing.T) (*kernel.Kernel, *kernel.Syscalls, *vfstest.FS) {
	t.Helper()
	fs := vfstest.New("con:")
	k := kernel.New(kernel.DefaultLimits(), fs, vmtest.Factory{}, &kernel.ErrgroupSpawner{}, nil, nil)
	return k, kernel.NewSyscalls(k), fs
}

func TestBoot_StdioLandsOnFds012(t *testing.T) {
	kern, sc, _ := newTestKernel(t)
	root, err := kern.Boot("init", "con:")
	require.Zero(t, err)

	fd, err := sc.Open(root, "extra.txt", file.ORDWR, 0)
	require.Zero(t, err)
	assert.Equal(t, 3, fd, "first non-stdio open must land on fd 3")
}

func TestDup2AliasingRoundTrip(t *testing.T) {
	kern, sc, fs := newTestKernel(t)
	root, err := kern.Boot("init", "con:")
	require.Zero(t, err)

	fd, err := sc.Open(root, "data.txt", file.ORDWR, 0)
	require.Zero(t, err)

	_, err = sc.Write(root, fd, []byte("abc"))
	require.Zero(t, err)

	newfd, err := sc.Dup2(root, fd, 10)
	require.Zero(t, err)

	_, err = sc.Write(root, newfd, []byte("def"))
	require.Zero(t, err)

	assert.Equal(t, []byte("abcdef"), fs.Contents("data.txt"))
}

func TestFork_ChildSharesParentOffset(t *testing.T) {
	kern, sc, fs := newTestKernel(t)
	root, err := kern.Boot("init", "con:")
	require.Zero(t, err)

	fd, err := sc.Open(root, "shared.txt", file.ORDWR, 0)
	require.Zero(t, err)
	_, err = sc.Write(root, fd, []byte("12345"))
	require.Zero(t, err)

	var mu sync.Mutex
	var childReadAt int64
	var childErr errno.Errno
	done := make(chan struct{})

	childPID, err := sc.Fork(root, nil, func(pid proc.Pid, _ kernel.Trapframe) {
		defer close(done)
		child, ok := kern.Process(pid)
		if !ok {
			return
		}
		n, werr := sc.Write(child, fd, []byte("67"))
		mu.Lock()
		childReadAt = int64(n)
		childErr = werr
		mu.Unlock()
		sc.Exit(child, 0)
	})
	require.Zero(t, err)

	<-done
	mu.Lock()
	defer mu.Unlock()
	require.Zero(t, childErr)
	assert.Equal(t, int64(2), childReadAt)

	_, status, err := sc.Waitpid(root, childPID, 0)
	require.Zero(t, err)
	assert.Equal(t, 0, status)

	// the child's write landed at the shared offset 5, and the parent's
	// descriptor now sees the offset the child advanced to.
	assert.Equal(t, []byte("1234567"), fs.Contents("shared.txt"))
	off, err := sc.Lseek(root, fd, 0, file.SeekCur)
	require.Zero(t, err)
	assert.EqualValues(t, 7, off)
}

func TestWaitpid_SecondWaitIsESRCH(t *testing.T) {
	kern, sc, _ := newTestKernel(t)
	root, err := kern.Boot("init", "con:")
	require.Zero(t, err)

	done := make(chan struct{})
	childPID, err := sc.Fork(root, nil, func(pid proc.Pid, _ kernel.Trapframe) {
		defer close(done)
		child, ok := kern.Process(pid)
		require.True(t, ok)
		sc.Exit(child, 3)
	})
	require.Zero(t, err)
	<-done

	_, status, err := sc.Waitpid(root, childPID, 0)
	require.Zero(t, err)
	assert.Equal(t, 3, status)

	_, _, err = sc.Waitpid(root, childPID, 0)
	assert.Equal(t, errno.ESRCH, err)
}

func TestWaitpid_NonChildIsECHILD(t *testing.T) {
	kern, sc, _ := newTestKernel(t)
	root, err := kern.Boot("init", "con:")
	require.Zero(t, err)

	grandchildDone := make(chan struct{})
	var grandchildPID proc.Pid

	childDone := make(chan struct{})
	_, err = sc.Fork(root, nil, func(pid proc.Pid, _ kernel.Trapframe) {
		defer close(childDone)
		child, ok := kern.Process(pid)
		require.True(t, ok)

		gcPID, ferr := sc.Fork(child, nil, func(gcPid proc.Pid, _ kernel.Trapframe) {
			defer close(grandchildDone)
			gc, ok := kern.Process(gcPid)
			require.True(t, ok)
			sc.Exit(gc, 0)
		})
		require.Zero(t, ferr)
		grandchildPID = gcPID

		<-grandchildDone
		sc.Exit(child, 0)
	})
	require.Zero(t, err)
	<-childDone

	_, _, err = sc.Waitpid(root, grandchildPID, 0)
	assert.Equal(t, errno.ECHILD, err)
}

func TestLseek_InvalidWhenceAndESPIPEOnConsole(t *testing.T) {
	kern, sc, _ := newTestKernel(t)
	root, err := kern.Boot("init", "con:")
	require.Zero(t, err)

	_, err = sc.Lseek(root, 1 /* stdout */, 0, file.SeekSet)
	assert.Equal(t, errno.ESPIPE, err)

	fd, err := sc.Open(root, "seekable.txt", file.ORDWR, 0)
	require.Zero(t, err)
	_, err = sc.Lseek(root, fd, 0, 99)
	assert.Equal(t, errno.EINVAL, err)
}

func TestExec_ArgvStackLayout(t *testing.T) {
	kern, sc, _ := newTestKernel(t)
	root, err := kern.Boot("init", "con:")
	require.Zero(t, err)

	res, err := sc.Exec(root, kernel.UserArg{Addr: 0x1000, Str: "/bin/prog"}, []kernel.UserArg{
		{Addr: 0x1008, Str: "hello"},
	}, "con:")
	require.Zero(t, err)
	assert.Equal(t, vmtest.DefaultEntry, res.Entry)
	assert.Equal(t, 2, res.Argc)

	as := root.AS.(*vmtest.AddressSpace)

	// step 1: a standalone null terminator word sits at the very top of
	// the stack, one word below DefineStack's initial sp, above every
	// pushed string.
	termAddr := vmtest.DefaultStackTop - 8
	assert.Equal(t, uintptr(0), as.PeekWord(termAddr))

	argv0Ptr := as.PeekWord(res.ArgvPtr)
	argv1Ptr := as.PeekWord(res.ArgvPtr + 8)
	sentinel := as.PeekWord(res.ArgvPtr + 16)
	assert.Equal(t, uintptr(0), sentinel)

	assert.Equal(t, "/bin/prog\x00", string(as.PeekBytes(argv0Ptr, len("/bin/prog")+1)))
	assert.Equal(t, "hello\x00", string(as.PeekBytes(argv1Ptr, len("hello")+1)))

	// "hello" was pushed first (strings go high-to-low from argc-1 down
	// to 0), so it sits directly below the null terminator word.
	assert.Equal(t, termAddr, argv1Ptr+uintptr(len("hello")+1))

	assert.Less(t, res.SP, vmtest.DefaultStackTop)
}

func TestExec_RejectsFaultingPointer(t *testing.T) {
	kern, sc, _ := newTestKernel(t)
	root, err := kern.Boot("init", "con:")
	require.Zero(t, err)

	badAddr := kern.Limits.UserCeiling
	_, err = sc.Exec(root, kernel.UserArg{Addr: badAddr, Str: "/bin/prog"}, nil, "con:")
	assert.Equal(t, errno.EFAULT, err)
}

func TestExec_EmptyProgramNameIsENOEXEC(t *testing.T) {
	kern, sc, _ := newTestKernel(t)
	root, err := kern.Boot("init", "con:")
	require.Zero(t, err)

	_, err = sc.Exec(root, kernel.UserArg{Addr: 0x1000, Str: ""}, nil, "con:")
	assert.Equal(t, errno.ENOEXEC, err)
}

func TestExec_CumulativeArgMaxIsE2BIG(t *testing.T) {
	kern, sc, _ := newTestKernel(t)
	root, err := kern.Boot("init", "con:")
	require.Zero(t, err)

	limits := kernel.DefaultLimits()
	limits.ArgMax = 16
	kern.Limits = limits

	_, err = sc.Exec(root, kernel.UserArg{Addr: 0x1000, Str: "/bin/prog"}, []kernel.UserArg{
		{Addr: 0x1008, Str: "a-very-long-argument-that-blows-the-budget"},
	}, "con:")
	assert.Equal(t, errno.E2BIG, err)
}
