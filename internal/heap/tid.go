// Package heap implements a table heap: an unordered, append-mostly
// collection of rows spread across raw pages, fetched through a
// buffer.Pool. It is a supplemented feature — spec.md scopes only the
// storage/index core, but a disk-oriented engine needs somewhere for rows
// to live so the B+Tree has something to index (grounded on the original
// source's table_heap.cpp / tuple.cpp, §9 "Supplemented features").
package heap

// TID (Tuple ID) identifies one row by the page that holds it and its slot
// index within that page.
type TID struct {
	PageID uint32
	Slot   uint16
}
