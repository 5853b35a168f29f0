package btree

import "github.com/tuannm99/novasql/internal/heap"

// Index is the ordered-map contract the demo executors (internal/engine)
// consume, mirroring §4.4's public operations.
type Index interface {
	Insert(key KeyType, tid heap.TID) (bool, error)
	Remove(key KeyType) error
	GetValue(key KeyType) (heap.TID, bool, error)
	Begin() (*Iterator, error)
	BeginAt(key KeyType) (*Iterator, error)
}

var _ Index = (*Tree)(nil)
