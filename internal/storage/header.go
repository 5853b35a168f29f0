package storage

import (
	"errors"

	"github.com/tuannm99/novasql/internal/alias/bx"
)

// HeaderPage wraps page id 0, which the page file reserves exclusively for
// name -> root-page-id records (§3, §6). It reads/writes directly on the
// page's raw bytes instead of using the generic slotted layout, exactly as
// §6 specifies: 4-byte LE record count, then fixed 36-byte records
// (32-byte zero-padded name + 4-byte LE root page id).
type HeaderPage struct {
	Page *Page
}

const (
	headerNameSize   = 32
	headerRecordSize = headerNameSize + 4
	headerCountOff   = 0
	headerRecordsOff = 4
)

var (
	ErrHeaderNameTooLong = errors.New("storage: header record name exceeds 32 bytes")
	ErrHeaderFull        = errors.New("storage: header page has no room for another record")
	ErrHeaderDuplicate   = errors.New("storage: header record already exists")
	ErrHeaderNotFound    = errors.New("storage: header record not found")
)

func maxHeaderRecords() int {
	return (PageSize - headerRecordsOff) / headerRecordSize
}

func (h *HeaderPage) count() int {
	return int(bx.U32(h.Page.Buf[headerCountOff:]))
}

func (h *HeaderPage) setCount(n int) {
	bx.PutU32(h.Page.Buf[headerCountOff:], uint32(n))
}

func (h *HeaderPage) recordOffset(i int) int {
	return headerRecordsOff + i*headerRecordSize
}

func (h *HeaderPage) nameAt(i int) string {
	off := h.recordOffset(i)
	raw := h.Page.Buf[off : off+headerNameSize]
	n := 0
	for n < len(raw) && raw[n] != 0 {
		n++
	}
	return string(raw[:n])
}

func (h *HeaderPage) rootAt(i int) PageID {
	off := h.recordOffset(i) + headerNameSize
	return PageID(int32(bx.U32(h.Page.Buf[off:])))
}

func (h *HeaderPage) writeAt(i int, name string, root PageID) {
	off := h.recordOffset(i)
	nameBuf := h.Page.Buf[off : off+headerNameSize]
	clear(nameBuf)
	copy(nameBuf, name)
	bx.PutU32(h.Page.Buf[off+headerNameSize:], uint32(root))
}

func (h *HeaderPage) indexOf(name string) int {
	for i := 0; i < h.count(); i++ {
		if h.nameAt(i) == name {
			return i
		}
	}
	return -1
}

// GetRootID returns the root page id registered under name, and false if no
// such record exists.
func (h *HeaderPage) GetRootID(name string) (PageID, bool) {
	i := h.indexOf(name)
	if i < 0 {
		return InvalidPageID, false
	}
	return h.rootAt(i), true
}

// InsertRecord appends a new name -> root record.
func (h *HeaderPage) InsertRecord(name string, root PageID) error {
	if len(name) > headerNameSize {
		return ErrHeaderNameTooLong
	}
	if h.indexOf(name) >= 0 {
		return ErrHeaderDuplicate
	}
	n := h.count()
	if n >= maxHeaderRecords() {
		return ErrHeaderFull
	}
	h.writeAt(n, name, root)
	h.setCount(n + 1)
	return nil
}

// UpdateRecord overwrites the root page id for an existing record.
func (h *HeaderPage) UpdateRecord(name string, root PageID) error {
	i := h.indexOf(name)
	if i < 0 {
		return ErrHeaderNotFound
	}
	h.writeAt(i, name, root)
	return nil
}

// DeleteRecord removes a record, shifting subsequent records left to keep
// the array dense.
func (h *HeaderPage) DeleteRecord(name string) error {
	i := h.indexOf(name)
	if i < 0 {
		return ErrHeaderNotFound
	}
	n := h.count()
	for j := i; j < n-1; j++ {
		name := h.nameAt(j + 1)
		root := h.rootAt(j + 1)
		h.writeAt(j, name, root)
	}
	off := h.recordOffset(n - 1)
	clear(h.Page.Buf[off : off+headerRecordSize])
	h.setCount(n - 1)
	return nil
}

// Records returns all (name, root) pairs currently registered.
func (h *HeaderPage) Records() []struct {
	Name string
	Root PageID
} {
	n := h.count()
	out := make([]struct {
		Name string
		Root PageID
	}, n)
	for i := 0; i < n; i++ {
		out[i].Name = h.nameAt(i)
		out[i].Root = h.rootAt(i)
	}
	return out
}
