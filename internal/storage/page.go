package storage

import "github.com/tuannm99/novasql/internal/alias/bx"

// PageID identifies a page within the page file. INVALID_PAGE_ID (-1) means
// "no such page", per §3.
type PageID int32

// InvalidPageID is the sentinel "no such page" id.
const InvalidPageID PageID = -1

// HeaderPageID is reserved exclusively for the header page (§6, §9): the
// original source reused page id 0 as an ordinary data page on some call
// paths, which the spec calls out as a bug to fix (§9 "Open questions").
const HeaderPageID PageID = 0

// Layout of the generic page header (bytes, little-endian):
//
//	0  : uint16 flags            (reserved, always 0)
//	2  : uint32 page id
//	6  : uint16 lower             (end of slot array)
//	8  : uint16 upper             (start of free space / tuple data)
//	10 : uint8  page type
//	11 : uint8  reserved
//	12 : uint16 max size          (node capacity bound; unused by raw pages)
//	14 : uint16 reserved
//	16 : uint32 parent page id    (node header; unused by raw pages)
//	20 : uint32 next page id      (leaf sibling link; unused otherwise)
//	24 : uint32 lsn               (unused, carried for format compatibility)
//	28 : padding to HeaderSize
const (
	HeaderSize = 32
	SlotSize   = 6 // offset(uint16) + length(uint16) + flags(uint16)

	offFlags      = 0
	offPageID     = 2
	offLower      = 6
	offUpper      = 8
	offPageType   = 10
	offMaxSize    = 12
	offParentID   = 16
	offNextID     = 20
	offLSN        = 24
)

// Slot flags.
const (
	slotFlagNormal  uint16 = 0
	slotFlagDeleted uint16 = 1
)

// Page is a fixed-size, PageSize-byte in-memory buffer for exactly one page
// of the page file. It knows nothing about pin counts or dirtiness — that
// bookkeeping belongs to the buffer pool's Frame (§3 "Frame").
type Page struct {
	Buf []byte
}

// NewPage allocates a zero-initialized page buffer tagged with id.
func NewPage(id PageID) *Page {
	p := &Page{Buf: make([]byte, PageSize)}
	p.Reset(id)
	return p
}

// Reset reinitializes the page in place as an empty raw page with the given
// id: slot array empty, free space spanning the whole body. Node
// constructors call Reset and then stamp page type / max size / parent on
// top of it.
func (p *Page) Reset(id PageID) {
	clear(p.Buf)
	bx.PutU16(p.Buf[offFlags:], 0)
	bx.PutU32(p.Buf[offPageID:], uint32(id))
	bx.PutU16(p.Buf[offLower:], HeaderSize)
	bx.PutU16(p.Buf[offUpper:], PageSize)
	bx.PutU16(p.Buf[offPageType:], uint16(PageRaw))
}

func (p *Page) PageID() PageID { return PageID(int32(bx.U32(p.Buf[offPageID:]))) }

func (p *Page) PageType() PageType { return PageType(p.Buf[offPageType]) }
func (p *Page) SetPageType(t PageType) {
	p.Buf[offPageType] = byte(t)
}

func (p *Page) MaxSize() int { return int(bx.U16(p.Buf[offMaxSize:])) }
func (p *Page) SetMaxSize(n int) {
	bx.PutU16(p.Buf[offMaxSize:], uint16(n))
}

func (p *Page) ParentPageID() PageID { return PageID(int32(bx.U32(p.Buf[offParentID:]))) }
func (p *Page) SetParentPageID(id PageID) {
	bx.PutU32(p.Buf[offParentID:], uint32(id))
}

func (p *Page) NextPageID() PageID { return PageID(int32(bx.U32(p.Buf[offNextID:]))) }
func (p *Page) SetNextPageID(id PageID) {
	bx.PutU32(p.Buf[offNextID:], uint32(id))
}

func (p *Page) lower() int { return int(bx.U16(p.Buf[offLower:])) }
func (p *Page) setLower(v int) { bx.PutU16(p.Buf[offLower:], uint16(v)) }
func (p *Page) upper() int { return int(bx.U16(p.Buf[offUpper:])) }
func (p *Page) setUpper(v int) { bx.PutU16(p.Buf[offUpper:], uint16(v)) }

// NumSlots returns the current number of slot entries, i.e. the node's
// "current size" (§3).
func (p *Page) NumSlots() int {
	return (p.lower() - HeaderSize) / SlotSize
}

func (p *Page) slotOffset(i int) int { return HeaderSize + i*SlotSize }

func (p *Page) getSlot(i int) (offset, length int, flags uint16) {
	o := p.slotOffset(i)
	return int(bx.U16(p.Buf[o:])), int(bx.U16(p.Buf[o+2:])), bx.U16(p.Buf[o+4:])
}

func (p *Page) putSlot(i, offset, length int, flags uint16) {
	o := p.slotOffset(i)
	bx.PutU16(p.Buf[o:], uint16(offset))
	bx.PutU16(p.Buf[o+2:], uint16(length))
	bx.PutU16(p.Buf[o+4:], flags)
}

// InsertTuple appends tup as a new slot at the end of the page, growing the
// slot array and shrinking free space from the top. Returns the new slot
// index, or ErrPageFull if there is no room.
func (p *Page) InsertTuple(tup []byte) (int, error) {
	need := len(tup) + SlotSize
	if p.upper()-p.lower() < need {
		return -1, ErrPageFull
	}
	newUpper := p.upper() - len(tup)
	copy(p.Buf[newUpper:], tup)
	p.setUpper(newUpper)

	slot := p.NumSlots()
	p.putSlot(slot, newUpper, len(tup), slotFlagNormal)
	p.setLower(p.lower() + SlotSize)
	return slot, nil
}

// ReadTuple returns the bytes stored at slot i.
func (p *Page) ReadTuple(i int) ([]byte, error) {
	if i < 0 || i >= p.NumSlots() {
		return nil, ErrSlotOutOfRange
	}
	offset, length, flags := p.getSlot(i)
	if flags == slotFlagDeleted {
		return nil, ErrSlotOutOfRange
	}
	return p.Buf[offset : offset+length], nil
}

// FreeBytes reports remaining space available for new tuples, accounting
// for one more slot entry.
func (p *Page) FreeBytes() int {
	return p.upper() - p.lower() - SlotSize
}

// DeleteTuple soft-deletes slot i: the slot stays allocated (so other tuple
// ids in the page keep their indexes) but ReadTuple and NumSlots-based scans
// treat it as gone. Space is reclaimed only when the page is rewritten.
func (p *Page) DeleteTuple(i int) error {
	if i < 0 || i >= p.NumSlots() {
		return ErrSlotOutOfRange
	}
	offset, length, _ := p.getSlot(i)
	p.putSlot(i, offset, length, slotFlagDeleted)
	return nil
}

// UpdateTuple overwrites slot i in place when tup fits in the slot's
// existing length, and returns ErrPageFull otherwise — callers needing a
// larger tuple must delete and re-insert.
func (p *Page) UpdateTuple(i int, tup []byte) error {
	if i < 0 || i >= p.NumSlots() {
		return ErrSlotOutOfRange
	}
	offset, length, _ := p.getSlot(i)
	if len(tup) > length {
		return ErrPageFull
	}
	copy(p.Buf[offset:offset+len(tup)], tup)
	p.putSlot(i, offset, len(tup), slotFlagNormal)
	return nil
}

// RewriteTuples replaces the page's entire slot array and tuple data with
// tuples, in order, preserving the node header fields (page id, type, max
// size, parent, next). B+Tree nodes use this to keep their entries sorted
// after an insert-with-shift or remove-with-shift (§4.4): rather than
// splicing the slot array in place, the node decodes all entries, mutates
// the in-memory slice, and rewrites the page from scratch.
func (p *Page) RewriteTuples(tuples [][]byte) error {
	id, typ, maxSize, parent, next := p.PageID(), p.PageType(), p.MaxSize(), p.ParentPageID(), p.NextPageID()

	p.Reset(id)
	p.SetPageType(typ)
	p.SetMaxSize(maxSize)
	p.SetParentPageID(parent)
	p.SetNextPageID(next)

	for _, t := range tuples {
		if _, err := p.InsertTuple(t); err != nil {
			return err
		}
	}
	return nil
}
