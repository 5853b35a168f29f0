package heap

import "github.com/tuannm99/novasql/internal/storage"

// HeapPage pairs a raw page with the schema needed to read and write it at
// row granularity (values []any) instead of raw tuple bytes. Table routes
// every row operation through one of these rather than calling
// storage.EncodeRow/DecodeRow and Page's tuple methods directly.
type HeapPage struct {
	Pg     *storage.Page
	Schema storage.Schema
}

// NewHeapPage pairs an already-fetched page with schema s.
func NewHeapPage(p *storage.Page, s storage.Schema) HeapPage {
	return HeapPage{Pg: p, Schema: s}
}

// InsertRow encodes values per Schema and appends them as a new tuple,
// returning the slot they landed in.
func (hp *HeapPage) InsertRow(values []any) (int, error) {
	data, err := storage.EncodeRow(hp.Schema, values)
	if err != nil {
		return -1, err
	}
	return hp.Pg.InsertTuple(data)
}

// ReadRow decodes the row at slot.
func (hp *HeapPage) ReadRow(slot int) ([]any, error) {
	data, err := hp.Pg.ReadTuple(slot)
	if err != nil {
		return nil, err
	}
	return storage.DecodeRow(hp.Schema, data)
}

// UpdateRow overwrites the row at slot in place; see Page.UpdateTuple for
// the in-place-only constraint.
func (hp *HeapPage) UpdateRow(slot int, values []any) error {
	data, err := storage.EncodeRow(hp.Schema, values)
	if err != nil {
		return err
	}
	return hp.Pg.UpdateTuple(slot, data)
}

// DeleteRow soft-deletes the row at slot.
func (hp *HeapPage) DeleteRow(slot int) error {
	return hp.Pg.DeleteTuple(slot)
}
