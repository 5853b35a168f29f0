package btree

import (
	"github.com/tuannm99/novasql/internal/heap"
	"github.com/tuannm99/novasql/internal/storage"
)

// Iterator walks leaf entries in ascending key order via next_page_id
// links (§4.4 "Range iterator"). An iterator past the last leaf (leaf ==
// InvalidPageID) is the end sentinel: Valid() reports false. Iterators come
// from Begin/BeginAt; a zero-value Iterator is not an end sentinel.
type Iterator struct {
	tree *Tree
	leaf storage.PageID // InvalidPageID at end
	idx  int
	keys []leafEntry
}

// Begin returns an iterator at the leftmost leaf's first entry.
func (t *Tree) Begin() (*Iterator, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	root, ok, err := t.rootPageID()
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Iterator{tree: t, leaf: storage.InvalidPageID}, nil
	}

	cur := root
	for {
		page, err := t.fetchPage(cur)
		if err != nil {
			return nil, err
		}
		if page.PageType() == storage.PageBTreeLeaf {
			t.pool.UnpinPage(cur, false)
			break
		}
		entries, err := readInternalEntries(page)
		t.pool.UnpinPage(cur, false)
		if err != nil {
			return nil, err
		}
		cur = entries[0].child
	}
	return t.iteratorAtLeaf(cur, 0)
}

// BeginAt returns an iterator positioned at key, or at its insertion slot
// if key is absent.
func (t *Tree) BeginAt(key KeyType) (*Iterator, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	root, ok, err := t.rootPageID()
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Iterator{tree: t, leaf: storage.InvalidPageID}, nil
	}

	leafPID, _, err := t.findLeafPath(root, key)
	if err != nil {
		return nil, err
	}
	page, err := t.fetchPage(leafPID)
	if err != nil {
		return nil, err
	}
	entries, err := readLeafEntries(page)
	t.pool.UnpinPage(leafPID, false)
	if err != nil {
		return nil, err
	}
	idx := lowerBoundLeaf(entries, key)
	return t.advanceToValid(leafPID, entries, idx)
}

func (t *Tree) iteratorAtLeaf(leafPID storage.PageID, idx int) (*Iterator, error) {
	page, err := t.fetchPage(leafPID)
	if err != nil {
		return nil, err
	}
	entries, err := readLeafEntries(page)
	t.pool.UnpinPage(leafPID, false)
	if err != nil {
		return nil, err
	}
	return t.advanceToValid(leafPID, entries, idx)
}

// advanceToValid skips forward across empty/exhausted leaves until it
// finds an in-range entry or reaches the end sentinel.
func (t *Tree) advanceToValid(leafPID storage.PageID, entries []leafEntry, idx int) (*Iterator, error) {
	for idx >= len(entries) {
		page, err := t.fetchPage(leafPID)
		if err != nil {
			return nil, err
		}
		next := page.NextPageID()
		t.pool.UnpinPage(leafPID, false)

		if next == storage.InvalidPageID {
			return &Iterator{tree: t, leaf: storage.InvalidPageID}, nil
		}
		leafPID = next
		nextPage, err := t.fetchPage(leafPID)
		if err != nil {
			return nil, err
		}
		entries, err = readLeafEntries(nextPage)
		t.pool.UnpinPage(leafPID, false)
		if err != nil {
			return nil, err
		}
		idx = 0
	}
	return &Iterator{tree: t, leaf: leafPID, idx: idx, keys: entries}, nil
}

// Valid reports whether the iterator is positioned at an entry (the end
// sentinel per §4.4 has a null leaf pointer).
func (it *Iterator) Valid() bool {
	return it.leaf != storage.InvalidPageID
}

// Key and Value return the (key, rid) pair the iterator currently points
// to. Calling them past the end is a programming error.
func (it *Iterator) Key() KeyType    { return it.keys[it.idx].key }
func (it *Iterator) Value() heap.TID { return it.keys[it.idx].tid }

// Next advances to the following entry, crossing into the next leaf via
// next_page_id when the current one is exhausted (§4.4).
func (it *Iterator) Next() error {
	if !it.Valid() {
		return nil
	}
	next, err := it.tree.advanceToValid(it.leaf, it.keys, it.idx+1)
	if err != nil {
		return err
	}
	*it = *next
	return nil
}
