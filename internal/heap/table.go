package heap

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/tuannm99/novasql/internal/buffer"
	"github.com/tuannm99/novasql/internal/storage"
)

var logPrefix = "heap: "

var ErrTableClosed = errors.New("heap: table is closed")

// Table is an unordered collection of rows backed by one or more raw pages
// chained through each page's next_page_id, all read and written through a
// shared buffer.Pool. It is a supplemented feature — spec.md scopes only the
// storage/index core, but a disk-oriented engine needs somewhere for rows to
// live so the B+Tree has something to index.
type Table struct {
	pool   *buffer.Pool
	name   string
	schema storage.Schema

	firstPage storage.PageID
	lastPage  storage.PageID

	closed atomic.Bool
}

func headerKey(name string) string { return "heap:" + name }

func fetchHeader(pool *buffer.Pool) (*storage.HeaderPage, error) {
	p, err := pool.FetchPage(storage.HeaderPageID)
	if err != nil {
		return nil, err
	}
	return &storage.HeaderPage{Page: p}, nil
}

// Open binds (or creates) a named table. Its first page id is tracked in
// the header page under the key "heap:<name>", the same mechanism
// btree.Tree uses for index roots, kept disjoint by key prefix.
func Open(pool *buffer.Pool, name string, schema storage.Schema) (*Table, error) {
	key := headerKey(name)

	header, err := fetchHeader(pool)
	if err != nil {
		return nil, err
	}
	first, ok := header.GetRootID(key)
	pool.UnpinPage(storage.HeaderPageID, false)

	t := &Table{pool: pool, name: name, schema: schema}
	if ok {
		t.firstPage = first
		last, err := t.findLastPage(first)
		if err != nil {
			return nil, err
		}
		t.lastPage = last
		return t, nil
	}

	page, err := pool.NewPage()
	if err != nil {
		return nil, err
	}
	page.SetNextPageID(storage.InvalidPageID)
	pid := page.PageID()
	pool.UnpinPage(pid, true)

	t.firstPage = pid
	t.lastPage = pid

	header, err = fetchHeader(pool)
	if err != nil {
		return nil, err
	}
	err = header.InsertRecord(key, pid)
	pool.UnpinPage(storage.HeaderPageID, true)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) findLastPage(first storage.PageID) (storage.PageID, error) {
	cur := first
	for {
		page, err := t.pool.FetchPage(cur)
		if err != nil {
			return 0, err
		}
		next := page.NextPageID()
		t.pool.UnpinPage(cur, false)
		if next == storage.InvalidPageID {
			return cur, nil
		}
		cur = next
	}
}

func (t *Table) ensureOpen() error {
	if t.closed.Load() {
		return ErrTableClosed
	}
	return nil
}

// Insert appends values as a new row, extending the page chain if the last
// page has no room, and returns the row's id.
func (t *Table) Insert(values []any) (TID, error) {
	if err := t.ensureOpen(); err != nil {
		return TID{}, err
	}

	page, err := t.pool.FetchPage(t.lastPage)
	if err != nil {
		return TID{}, err
	}

	hp := NewHeapPage(page, t.schema)
	slot, err := hp.InsertRow(values)
	if err == nil {
		t.pool.UnpinPage(t.lastPage, true)
		return TID{PageID: uint32(t.lastPage), Slot: uint16(slot)}, nil
	}
	t.pool.UnpinPage(t.lastPage, false)
	if !errors.Is(err, storage.ErrPageFull) {
		return TID{}, err
	}

	newPage, err := t.pool.NewPage()
	if err != nil {
		return TID{}, err
	}
	newPage.SetNextPageID(storage.InvalidPageID)
	newPID := newPage.PageID()

	newHP := NewHeapPage(newPage, t.schema)
	slot, err = newHP.InsertRow(values)
	if err != nil {
		t.pool.UnpinPage(newPID, false)
		return TID{}, err
	}
	t.pool.UnpinPage(newPID, true)

	oldLast, err := t.pool.FetchPage(t.lastPage)
	if err != nil {
		return TID{}, err
	}
	oldLast.SetNextPageID(newPID)
	t.pool.UnpinPage(t.lastPage, true)

	t.lastPage = newPID
	slog.Debug(logPrefix+"extended page chain", "table", t.name, "newPageID", newPID)
	return TID{PageID: uint32(newPID), Slot: uint16(slot)}, nil
}

// Get decodes the row identified by tid.
func (t *Table) Get(tid TID) ([]any, error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}
	pid := storage.PageID(int32(tid.PageID))
	page, err := t.pool.FetchPage(pid)
	if err != nil {
		return nil, err
	}
	defer t.pool.UnpinPage(pid, false)

	hp := NewHeapPage(page, t.schema)
	return hp.ReadRow(int(tid.Slot))
}

// Update overwrites the row at tid in place. A row that grows past its
// original slot length cannot be updated in place (§ ambient: raw pages are
// append-only beyond their original tuple length) — callers needing that
// must Delete and re-Insert, which moves the row to a new TID.
func (t *Table) Update(tid TID, values []any) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}

	pid := storage.PageID(int32(tid.PageID))
	page, err := t.pool.FetchPage(pid)
	if err != nil {
		return err
	}
	hp := NewHeapPage(page, t.schema)
	err = hp.UpdateRow(int(tid.Slot), values)
	t.pool.UnpinPage(pid, err == nil)
	return err
}

// Delete soft-deletes the row at tid; Scan will no longer surface it.
func (t *Table) Delete(tid TID) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	pid := storage.PageID(int32(tid.PageID))
	page, err := t.pool.FetchPage(pid)
	if err != nil {
		return err
	}
	hp := NewHeapPage(page, t.schema)
	err = hp.DeleteRow(int(tid.Slot))
	t.pool.UnpinPage(pid, err == nil)
	return err
}

// Scan calls fn for every live row in the table, in page/slot order,
// stopping early if fn returns an error.
func (t *Table) Scan(fn func(tid TID, row []any) error) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	cur := t.firstPage
	for cur != storage.InvalidPageID {
		page, err := t.pool.FetchPage(cur)
		if err != nil {
			return err
		}
		hp := NewHeapPage(page, t.schema)
		n := page.NumSlots()
		for i := 0; i < n; i++ {
			row, err := hp.ReadRow(i)
			if errors.Is(err, storage.ErrSlotOutOfRange) {
				continue // deleted slot
			}
			if err != nil {
				t.pool.UnpinPage(cur, false)
				return err
			}
			if err := fn(TID{PageID: uint32(cur), Slot: uint16(i)}, row); err != nil {
				t.pool.UnpinPage(cur, false)
				return err
			}
		}
		next := page.NextPageID()
		t.pool.UnpinPage(cur, false)
		cur = next
	}
	return nil
}

// Close flushes every dirty page in the pool and marks the table handle
// unusable. Idempotent.
func (t *Table) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.pool.FlushAll()
}

// FirstPageID reports the head of the table's page chain.
func (t *Table) FirstPageID() storage.PageID { return t.firstPage }
