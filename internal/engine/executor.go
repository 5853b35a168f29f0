package engine

import (
	"github.com/tuannm99/novasql/internal/btree"
	"github.com/tuannm99/novasql/internal/heap"
)

// SeqScanExecutor walks every live row of a table heap in storage order,
// grounded in the teacher's original_source/src/execution/seq_scan_executor.cpp
// ("thp_ = tinf->table_.get(); table_iter_ = thp_->Begin(...)" followed by a
// Next() that advances the iterator and returns the tuple).
type SeqScanExecutor struct {
	tbl  *heap.Table
	rows []scannedRow
	idx  int
}

type scannedRow struct {
	tid heap.TID
	row []any
}

// NewSeqScanExecutor builds a sequential scan over tbl. Call Init before
// the first Next, mirroring the two-phase Init/Next executor protocol the
// original source uses.
func NewSeqScanExecutor(tbl *heap.Table) *SeqScanExecutor {
	return &SeqScanExecutor{tbl: tbl}
}

// Init primes the executor by taking one pass over the table heap,
// equivalent to the original's Init() binding table_iter_ to thp_->Begin().
func (e *SeqScanExecutor) Init() error {
	e.rows = e.rows[:0]
	e.idx = 0
	return e.tbl.Scan(func(tid heap.TID, row []any) error {
		e.rows = append(e.rows, scannedRow{tid: tid, row: row})
		return nil
	})
}

// Next returns the next row and its tid, or ok=false once the scan is
// exhausted (the original's "table_iter_ != thp_->End()" check).
func (e *SeqScanExecutor) Next() (tid heap.TID, row []any, ok bool) {
	if e.idx >= len(e.rows) {
		return heap.TID{}, nil, false
	}
	r := e.rows[e.idx]
	e.idx++
	return r.tid, r.row, true
}

// IndexScanExecutor walks a B+Tree index in key order, fetching the
// matching row out of the table heap for each entry, grounded in the
// original_source/src/execution/index_scan_executor.cpp pairing of
// indexIter_ (the tree iterator) with tHeap_->GetTuple(rid, ...).
type IndexScanExecutor struct {
	idx btree.Index
	tbl *heap.Table
	it  *btree.Iterator
}

// NewIndexScanExecutor builds an index scan over idx, fetching rows from tbl.
func NewIndexScanExecutor(idx btree.Index, tbl *heap.Table) *IndexScanExecutor {
	return &IndexScanExecutor{idx: idx, tbl: tbl}
}

// Init positions the executor at the first index entry, equivalent to the
// original's "indexIter_ = tree_->GetBeginIterator()".
func (e *IndexScanExecutor) Init() error {
	it, err := e.idx.Begin()
	if err != nil {
		return err
	}
	e.it = it
	return nil
}

// Next returns the row the current index entry points at, advances past
// it, and reports ok=false once the index is exhausted (the original's
// "indexIter_ != tree_->GetEndIterator()" check).
func (e *IndexScanExecutor) Next() (tid heap.TID, row []any, ok bool, err error) {
	if e.it == nil || !e.it.Valid() {
		return heap.TID{}, nil, false, nil
	}
	tid = e.it.Value()
	row, err = e.tbl.Get(tid)
	if err != nil {
		return heap.TID{}, nil, false, err
	}
	if err = e.it.Next(); err != nil {
		return heap.TID{}, nil, false, err
	}
	return tid, row, true, nil
}
