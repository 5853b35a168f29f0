package buffer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novasql/internal/storage"
	"github.com/tuannm99/novasql/internal/wal"
)

func newTestPool(t *testing.T, capacity int) *Pool {
	t.Helper()
	dir := t.TempDir()
	disk, err := storage.OpenFileDisk(filepath.Join(dir, "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = disk.Close() })
	return New(disk, capacity, 2)
}

func TestPoolNewPagePinsAndZeroesFrame(t *testing.T) {
	p := newTestPool(t, 4)

	page, err := p.NewPage()
	require.NoError(t, err)
	require.NotNil(t, page)
	require.Equal(t, 0, page.NumSlots())
	require.Equal(t, int32(1), p.frames[0].pinCount()) // first frame off the free list
}

func TestPoolFetchPageHitsCacheAndIncrementsPin(t *testing.T) {
	p := newTestPool(t, 4)

	page, err := p.NewPage()
	require.NoError(t, err)
	pid := page.PageID()
	require.True(t, p.UnpinPage(pid, false))

	fetched, err := p.FetchPage(pid)
	require.NoError(t, err)
	require.Same(t, page, fetched)
	require.Equal(t, int32(1), p.frames[0].pinCount())
}

func TestPoolUnpinMarksEvictableOnlyAtZero(t *testing.T) {
	p := newTestPool(t, 4)
	page, err := p.NewPage()
	require.NoError(t, err)
	pid := page.PageID()

	// Pin again so count is 2.
	_, err = p.FetchPage(pid)
	require.NoError(t, err)

	require.True(t, p.UnpinPage(pid, false))
	require.Equal(t, 0, p.repl.Size())
	require.True(t, p.UnpinPage(pid, false))
	require.Equal(t, 1, p.repl.Size())
	require.False(t, p.UnpinPage(pid, false)) // already at zero
}

func TestPoolEvictsDirtyFrameAndWritesBack(t *testing.T) {
	p := newTestPool(t, 1)

	page, err := p.NewPage()
	require.NoError(t, err)
	pid := page.PageID()
	_, err = page.InsertTuple([]byte("dirty-data"))
	require.NoError(t, err)
	require.True(t, p.UnpinPage(pid, true))

	// Only one frame exists; requesting a new page forces eviction of pid.
	other, err := p.NewPage()
	require.NoError(t, err)
	require.True(t, p.UnpinPage(other.PageID(), false))

	refetched, err := p.FetchPage(pid)
	require.NoError(t, err)
	got, err := refetched.ReadTuple(0)
	require.NoError(t, err)
	require.Equal(t, "dirty-data", string(got))
}

func TestPoolNewPageFailsWhenAllFramesPinned(t *testing.T) {
	p := newTestPool(t, 1)
	_, err := p.NewPage()
	require.NoError(t, err)

	_, err = p.NewPage()
	require.ErrorIs(t, err, ErrNoFreeFrame)
}

func TestPoolDeletePageRejectsWhilePinned(t *testing.T) {
	p := newTestPool(t, 4)
	page, err := p.NewPage()
	require.NoError(t, err)

	ok, err := p.DeletePage(page.PageID())
	require.ErrorIs(t, err, ErrPagePinned)
	require.False(t, ok)
}

func TestPoolDeletePageFreesFrameAndDiskID(t *testing.T) {
	p := newTestPool(t, 4)
	page, err := p.NewPage()
	require.NoError(t, err)
	pid := page.PageID()
	require.True(t, p.UnpinPage(pid, false))

	ok, err := p.DeletePage(pid)
	require.NoError(t, err)
	require.True(t, ok)

	// Deleting an absent page is a no-op success.
	ok, err = p.DeletePage(pid)
	require.NoError(t, err)
	require.True(t, ok)

	// The freed disk id is handed out again by the next allocation.
	again, err := p.NewPage()
	require.NoError(t, err)
	require.Equal(t, pid, again.PageID())
}

func TestPoolFlushAllClearsDirtyFlagsAndPersists(t *testing.T) {
	p := newTestPool(t, 4)

	p1, err := p.NewPage()
	require.NoError(t, err)
	_, err = p1.InsertTuple([]byte("one"))
	require.NoError(t, err)
	require.True(t, p.UnpinPage(p1.PageID(), true))

	p2, err := p.NewPage()
	require.NoError(t, err)
	_, err = p2.InsertTuple([]byte("two"))
	require.NoError(t, err)
	require.True(t, p.UnpinPage(p2.PageID(), true))

	require.NoError(t, p.FlushAll())

	for _, f := range p.frames {
		if f != nil {
			require.False(t, f.Dirty)
		}
	}
}

func TestPoolFlushPageUnknownPageReturnsFalse(t *testing.T) {
	p := newTestPool(t, 4)
	require.False(t, p.FlushPage(storage.PageID(999)))
}

func TestPoolWithWALLogsPageImageBeforeFlush(t *testing.T) {
	p := newTestPool(t, 4)
	w, err := wal.Open(t.TempDir())
	require.NoError(t, err)
	p.SetWAL(w)

	page, err := p.NewPage()
	require.NoError(t, err)
	_, err = page.InsertTuple([]byte("walled"))
	require.NoError(t, err)
	pid := page.PageID()
	require.True(t, p.UnpinPage(pid, true))

	require.True(t, p.FlushPage(pid))

	// Replaying the log onto an empty page file reproduces the flushed image.
	replay, err := storage.OpenFileDisk(filepath.Join(t.TempDir(), "replay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = replay.Close() })
	require.NoError(t, w.Recover(replay))
	got := make([]byte, storage.PageSize)
	require.NoError(t, replay.ReadPage(pid, got))
	require.Equal(t, page.Buf, got)
}
