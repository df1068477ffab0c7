package file_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-osk/osk/internal/errno"
	"github.com/go-osk/osk/internal/file"
	"github.com/go-osk/osk/internal/vfstest"
)

func TestOpenFileTable_ReadWriteRespectsAccessMode(t *testing.T) {
	fs := vfstest.New()
	oft := file.NewOpenFileTable(4, nil, nil)

	v, err := fs.Open("a.txt", file.OWRONLY, 0)
	require.NoError(t, err)
	idx, ferr := oft.Open(v, file.OWRONLY)
	require.Zero(t, ferr)

	n, ferr := oft.Write(idx, []byte("hi"))
	require.Zero(t, ferr)
	assert.Equal(t, 2, n)

	_, ferr = oft.Read(idx, make([]byte, 2))
	assert.Equal(t, errno.EBADF, ferr)
}

func TestOpenFileTable_FullTableIsEMFILE(t *testing.T) {
	fs := vfstest.New()
	oft := file.NewOpenFileTable(1, nil, nil)

	v1, _ := fs.Open("a.txt", file.ORDWR, 0)
	_, ferr := oft.Open(v1, file.ORDWR)
	require.Zero(t, ferr)

	v2, _ := fs.Open("b.txt", file.ORDWR, 0)
	_, ferr = oft.Open(v2, file.ORDWR)
	assert.Equal(t, errno.EMFILE, ferr)
}

func TestOpenFileTable_CloseFreesSlotAtZeroRefcount(t *testing.T) {
	fs := vfstest.New()
	oft := file.NewOpenFileTable(1, nil, nil)

	v, _ := fs.Open("a.txt", file.ORDWR, 0)
	idx, ferr := oft.Open(v, file.ORDWR)
	require.Zero(t, ferr)

	oft.Ref(idx) // simulate a second descriptor sharing this entry (dup2/fork)
	require.Zero(t, oft.Close(idx))

	// still referenced once: the slot isn't free yet, so another Open
	// competing for the single slot still fails.
	v2, _ := fs.Open("b.txt", file.ORDWR, 0)
	_, ferr = oft.Open(v2, file.ORDWR)
	assert.Equal(t, errno.EMFILE, ferr)

	require.Zero(t, oft.Close(idx))

	_, ferr = oft.Open(v2, file.ORDWR)
	assert.Zero(t, ferr)
}

func TestOpenFileTable_SeekEndAndNegativeResultIsEINVAL(t *testing.T) {
	fs := vfstest.New()
	oft := file.NewOpenFileTable(2, nil, nil)

	v, _ := fs.Open("a.txt", file.ORDWR, 0)
	idx, ferr := oft.Open(v, file.ORDWR)
	require.Zero(t, ferr)

	_, ferr = oft.Write(idx, []byte("hello"))
	require.Zero(t, ferr)

	off, ferr := oft.Seek(idx, 0, file.SeekEnd)
	require.Zero(t, ferr)
	assert.EqualValues(t, 5, off)

	prior := off
	_, ferr = oft.Seek(idx, -100, file.SeekSet)
	assert.Equal(t, errno.EINVAL, ferr)

	// offset unchanged by the rejected seek.
	off, ferr = oft.Seek(idx, 0, file.SeekCur)
	require.Zero(t, ferr)
	assert.Equal(t, prior, off)
}

func TestOpenFileTable_SeekOnNonSeekableIsESPIPE(t *testing.T) {
	fs := vfstest.New("con:")
	oft := file.NewOpenFileTable(1, nil, nil)

	v, _ := fs.Open("con:", file.ORDWR, 0)
	idx, ferr := oft.Open(v, file.ORDWR)
	require.Zero(t, ferr)

	_, ferr = oft.Seek(idx, 0, file.SeekSet)
	assert.Equal(t, errno.ESPIPE, ferr)
}
