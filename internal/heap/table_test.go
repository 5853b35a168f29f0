package heap

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novasql/internal/buffer"
	"github.com/tuannm99/novasql/internal/storage"
)

func newTestTable(t *testing.T, name string) (*Table, *buffer.Pool) {
	t.Helper()
	dir := t.TempDir()
	disk, err := storage.OpenFileDisk(filepath.Join(dir, "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = disk.Close() })

	pool := buffer.New(disk, 64, 2)
	schema := storage.Schema{
		Cols: []storage.Column{
			{Name: "id", Type: storage.ColInt64, Nullable: false},
			{Name: "name", Type: storage.ColText, Nullable: false},
			{Name: "active", Type: storage.ColBool, Nullable: false},
		},
	}
	tbl, err := Open(pool, name, schema)
	require.NoError(t, err)
	return tbl, pool
}

func TestTableInsertAndScan(t *testing.T) {
	tbl, _ := newTestTable(t, "users")

	type rowData struct {
		id     int64
		name   string
		active bool
	}
	expected := make(map[int64]rowData)

	const numRows = 10
	for i := 1; i <= numRows; i++ {
		r := rowData{id: int64(i), name: fmt.Sprintf("user-%d", i), active: i%2 == 0}
		_, err := tbl.Insert([]any{r.id, r.name, r.active})
		require.NoError(t, err)
		expected[r.id] = r
	}

	got := make(map[int64]rowData)
	err := tbl.Scan(func(tid TID, row []any) error {
		id := row[0].(int64)
		got[id] = rowData{id: id, name: row[1].(string), active: row[2].(bool)}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, expected, got)
	require.NoError(t, tbl.Close())
}

func TestTableGetReturnsInsertedRow(t *testing.T) {
	tbl, _ := newTestTable(t, "users_get")

	tid, err := tbl.Insert([]any{int64(1), "alice", true})
	require.NoError(t, err)

	row, err := tbl.Get(tid)
	require.NoError(t, err)
	require.Equal(t, int64(1), row[0])
	require.Equal(t, "alice", row[1])
	require.Equal(t, true, row[2])
}

func TestTableUpdateInPlaceShrinkSucceeds(t *testing.T) {
	tbl, _ := newTestTable(t, "users_update")

	tid, err := tbl.Insert([]any{int64(1), "user-1-long-name", true})
	require.NoError(t, err)

	err = tbl.Update(tid, []any{int64(1), "u1", false})
	require.NoError(t, err)

	row, err := tbl.Get(tid)
	require.NoError(t, err)
	require.Equal(t, int64(1), row[0])
	require.Equal(t, "u1", row[1])
	require.Equal(t, false, row[2])
}

func TestTableUpdateGrowBeyondOriginalLengthFails(t *testing.T) {
	tbl, _ := newTestTable(t, "users_update_grow")

	tid, err := tbl.Insert([]any{int64(1), "x", true})
	require.NoError(t, err)

	err = tbl.Update(tid, []any{int64(1), "a much longer replacement name", true})
	require.Error(t, err)
}

func TestTableDeleteAndScan(t *testing.T) {
	tbl, _ := newTestTable(t, "users_delete")

	var tid3 TID
	for i := 1; i <= 5; i++ {
		tid, err := tbl.Insert([]any{int64(i), fmt.Sprintf("user-%d", i), i%2 == 0})
		require.NoError(t, err)
		if i == 3 {
			tid3 = tid
		}
	}

	require.NoError(t, tbl.Delete(tid3))

	found := make(map[int64]bool)
	err := tbl.Scan(func(tid TID, row []any) error {
		found[row[0].(int64)] = true
		return nil
	})
	require.NoError(t, err)

	require.False(t, found[3], "id=3 should have been deleted")
	require.Len(t, found, 4)
}

func TestTableInsertAcrossManyPagesPersistsAndReopens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.db")

	disk, err := storage.OpenFileDisk(path)
	require.NoError(t, err)
	pool := buffer.New(disk, 4, 2) // small pool; the rows span two heap pages
	schema := storage.Schema{
		Cols: []storage.Column{
			{Name: "id", Type: storage.ColInt64, Nullable: false},
			{Name: "name", Type: storage.ColText, Nullable: false},
			{Name: "active", Type: storage.ColBool, Nullable: false},
		},
	}
	tbl, err := Open(pool, "wide", schema)
	require.NoError(t, err)

	const numRows = 200
	for i := 0; i < numRows; i++ {
		_, err := tbl.Insert([]any{int64(i), fmt.Sprintf("row-%04d", i), i%3 == 0})
		require.NoError(t, err)
	}
	require.NoError(t, tbl.Close())
	require.NoError(t, disk.Close())

	disk2, err := storage.OpenFileDisk(path)
	require.NoError(t, err)
	defer disk2.Close()
	pool2 := buffer.New(disk2, 16, 2)
	tbl2, err := Open(pool2, "wide", schema)
	require.NoError(t, err)

	count := 0
	err = tbl2.Scan(func(tid TID, row []any) error {
		count++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, numRows, count)
}

func TestTableOperationsFailAfterClose(t *testing.T) {
	tbl, _ := newTestTable(t, "users_closed")
	require.NoError(t, tbl.Close())

	_, err := tbl.Insert([]any{int64(1), "x", true})
	require.ErrorIs(t, err, ErrTableClosed)
}
