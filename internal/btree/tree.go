// Package btree implements the B+Tree index (§4.4): an ordered map from a
// fixed-size key to a record id, with every node dereference going through
// the buffer pool under a scoped pin.
package btree

import (
	"fmt"
	"sync"

	"github.com/tuannm99/novasql/internal/buffer"
	"github.com/tuannm99/novasql/internal/heap"
	"github.com/tuannm99/novasql/internal/storage"
)

// DefaultLeafMaxSize and DefaultInternalMaxSize are the steady-state node
// capacities used when a tree is opened without an explicit configuration
// (§6 Configuration: LeafMaxSize / InternalMaxSize).
const (
	DefaultLeafMaxSize     = 4
	DefaultInternalMaxSize = 4
)

// Tree is a B+Tree index backed by a shared buffer.Pool. All structural
// height-changing operations are serialized by a tree-wide write latch —
// the "simplest protocol" §9 endorses over finer-grained crabbing.
type Tree struct {
	pool *buffer.Pool
	name string

	leafMax     int
	internalMax int

	mu sync.RWMutex
}

// Open binds (or creates) a named index against header-page record name,
// backed by pool. leafMax/internalMax <= 0 fall back to the package
// defaults.
func Open(pool *buffer.Pool, name string, leafMax, internalMax int) *Tree {
	if leafMax <= 0 {
		leafMax = DefaultLeafMaxSize
	}
	if internalMax <= 0 {
		internalMax = DefaultInternalMaxSize
	}
	return &Tree{pool: pool, name: name, leafMax: leafMax, internalMax: internalMax}
}

func (t *Tree) fetchHeader() (*storage.HeaderPage, error) {
	p, err := t.pool.FetchPage(storage.HeaderPageID)
	if err != nil {
		return nil, fmt.Errorf("%w: header page", ErrTreeCorrupted)
	}
	return &storage.HeaderPage{Page: p}, nil
}

func (t *Tree) rootPageID() (storage.PageID, bool, error) {
	h, err := t.fetchHeader()
	if err != nil {
		return 0, false, err
	}
	defer t.pool.UnpinPage(storage.HeaderPageID, false)
	return h.GetRootID(t.name)
}

func (t *Tree) setRootPageID(id storage.PageID) error {
	h, err := t.fetchHeader()
	if err != nil {
		return err
	}
	defer t.pool.UnpinPage(storage.HeaderPageID, true)

	if _, ok := h.GetRootID(t.name); ok {
		return h.UpdateRecord(t.name, id)
	}
	return h.InsertRecord(t.name, id)
}

func (t *Tree) clearRoot() error {
	h, err := t.fetchHeader()
	if err != nil {
		return err
	}
	defer t.pool.UnpinPage(storage.HeaderPageID, true)
	return h.DeleteRecord(t.name)
}

func (t *Tree) fetchPage(pid storage.PageID) (*storage.Page, error) {
	p, err := t.pool.FetchPage(pid)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrTreeCorrupted, pid, err)
	}
	return p, nil
}

// findLeafPath descends from root to the leaf that would contain key,
// returning its page id and the chain of ancestor internal page ids from
// root to the leaf's parent (§4.4 "Point lookup").
func (t *Tree) findLeafPath(root storage.PageID, key KeyType) (storage.PageID, []storage.PageID, error) {
	var path []storage.PageID
	cur := root
	for {
		page, err := t.fetchPage(cur)
		if err != nil {
			return 0, nil, err
		}
		if page.PageType() == storage.PageBTreeLeaf {
			t.pool.UnpinPage(cur, false)
			return cur, path, nil
		}
		entries, err := readInternalEntries(page)
		t.pool.UnpinPage(cur, false)
		if err != nil {
			return 0, nil, err
		}
		ci := childIndexFor(entries, key)
		path = append(path, cur)
		cur = entries[ci].child
	}
}

// GetValue returns the record id mapped to key, if any (§4.4 GetValue).
func (t *Tree) GetValue(key KeyType) (heap.TID, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	root, ok, err := t.rootPageID()
	if err != nil {
		return heap.TID{}, false, err
	}
	if !ok {
		return heap.TID{}, false, nil
	}

	leafPID, _, err := t.findLeafPath(root, key)
	if err != nil {
		return heap.TID{}, false, err
	}
	page, err := t.fetchPage(leafPID)
	if err != nil {
		return heap.TID{}, false, err
	}
	defer t.pool.UnpinPage(leafPID, false)

	entries, err := readLeafEntries(page)
	if err != nil {
		return heap.TID{}, false, err
	}
	i := lowerBoundLeaf(entries, key)
	if i < len(entries) && entries[i].key == key {
		return entries[i].tid, true, nil
	}
	return heap.TID{}, false, nil
}

// Insert places (key, tid), rejecting duplicates, and splits nodes upward
// as needed (§4.4 Insert).
func (t *Tree) Insert(key KeyType, tid heap.TID) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	root, ok, err := t.rootPageID()
	if err != nil {
		return false, err
	}
	if !ok {
		page, err := t.pool.NewPage()
		if err != nil {
			return false, err
		}
		page.SetPageType(storage.PageBTreeLeaf)
		page.SetMaxSize(t.leafMax)
		page.SetNextPageID(storage.InvalidPageID)
		if err := writeLeafEntries(page, []leafEntry{{key: key, tid: tid}}); err != nil {
			t.pool.UnpinPage(page.PageID(), false)
			return false, err
		}
		t.pool.UnpinPage(page.PageID(), true)
		return true, t.setRootPageID(page.PageID())
	}

	leafPID, path, err := t.findLeafPath(root, key)
	if err != nil {
		return false, err
	}
	leafPage, err := t.fetchPage(leafPID)
	if err != nil {
		return false, err
	}

	entries, err := readLeafEntries(leafPage)
	if err != nil {
		t.pool.UnpinPage(leafPID, false)
		return false, err
	}
	i := lowerBoundLeaf(entries, key)
	if i < len(entries) && entries[i].key == key {
		t.pool.UnpinPage(leafPID, false)
		return false, nil // duplicate: reject without modifying state
	}

	entries = append(entries, leafEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = leafEntry{key: key, tid: tid}

	if len(entries) < t.leafMax {
		err := writeLeafEntries(leafPage, entries)
		t.pool.UnpinPage(leafPID, true)
		return true, err
	}

	// Split: upper half moves to a new right sibling R.
	mid := len(entries) / 2
	leftEntries, rightEntries := entries[:mid], entries[mid:]

	rightPage, err := t.pool.NewPage()
	if err != nil {
		t.pool.UnpinPage(leafPID, false)
		return false, err
	}
	rightPage.SetPageType(storage.PageBTreeLeaf)
	rightPage.SetMaxSize(t.leafMax)
	rightPage.SetNextPageID(leafPage.NextPageID())
	rightPage.SetParentPageID(leafPage.ParentPageID())

	leafPage.SetNextPageID(rightPage.PageID())

	if err := writeLeafEntries(leafPage, leftEntries); err != nil {
		return false, err
	}
	if err := writeLeafEntries(rightPage, rightEntries); err != nil {
		return false, err
	}
	kstar := rightEntries[0].key

	t.pool.UnpinPage(leafPID, true)
	t.pool.UnpinPage(rightPage.PageID(), true)

	return true, t.insertIntoParent(path, leafPID, kstar, rightPage.PageID())
}

// insertIntoParent propagates a (separator, newChild) pair installed after
// leftChild into leftChild's parent, splitting internal nodes upward while
// they overflow, and growing the tree by one level when leftChild was the
// root (§4.4 steps 3-4).
func (t *Tree) insertIntoParent(path []storage.PageID, leftChild storage.PageID, sep KeyType, rightChild storage.PageID) error {
	if len(path) == 0 {
		newRoot, err := t.pool.NewPage()
		if err != nil {
			return err
		}
		newRoot.SetPageType(storage.PageBTreeInternal)
		newRoot.SetMaxSize(t.internalMax)
		entries := []internalEntry{{child: leftChild}, {key: sep, child: rightChild}}
		if err := writeInternalEntries(newRoot, entries); err != nil {
			t.pool.UnpinPage(newRoot.PageID(), false)
			return err
		}
		t.pool.UnpinPage(newRoot.PageID(), true)

		if err := t.setParentPageID(leftChild, newRoot.PageID()); err != nil {
			return err
		}
		if err := t.setParentPageID(rightChild, newRoot.PageID()); err != nil {
			return err
		}
		return t.setRootPageID(newRoot.PageID())
	}

	parentID := path[len(path)-1]
	parentPage, err := t.fetchPage(parentID)
	if err != nil {
		return err
	}
	entries, err := readInternalEntries(parentPage)
	if err != nil {
		t.pool.UnpinPage(parentID, false)
		return err
	}

	idx := -1
	for i, e := range entries {
		if e.child == leftChild {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.pool.UnpinPage(parentID, false)
		return fmt.Errorf("%w: left child %d not found in parent %d", ErrTreeCorrupted, leftChild, parentID)
	}

	entries = append(entries, internalEntry{})
	copy(entries[idx+2:], entries[idx+1:])
	entries[idx+1] = internalEntry{key: sep, child: rightChild}

	if err := t.setParentPageID(rightChild, parentID); err != nil {
		t.pool.UnpinPage(parentID, false)
		return err
	}

	if len(entries) < t.internalMax {
		err := writeInternalEntries(parentPage, entries)
		t.pool.UnpinPage(parentID, true)
		return err
	}

	mid := len(entries) / 2
	keep, upper := entries[:mid], entries[mid:]
	pushUp := upper[0].key
	upper[0].key = 0 // becomes the new node's ignored index-0 key

	siblingPage, err := t.pool.NewPage()
	if err != nil {
		t.pool.UnpinPage(parentID, false)
		return err
	}
	siblingPage.SetPageType(storage.PageBTreeInternal)
	siblingPage.SetMaxSize(t.internalMax)
	siblingPage.SetParentPageID(parentPage.ParentPageID())

	if err := writeInternalEntries(parentPage, keep); err != nil {
		return err
	}
	if err := writeInternalEntries(siblingPage, upper); err != nil {
		return err
	}
	t.pool.UnpinPage(parentID, true)
	t.pool.UnpinPage(siblingPage.PageID(), true)

	for _, e := range upper {
		if err := t.setParentPageID(e.child, siblingPage.PageID()); err != nil {
			return err
		}
	}

	return t.insertIntoParent(path[:len(path)-1], parentID, pushUp, siblingPage.PageID())
}

func (t *Tree) setParentPageID(child, parent storage.PageID) error {
	page, err := t.fetchPage(child)
	if err != nil {
		return err
	}
	page.SetParentPageID(parent)
	t.pool.UnpinPage(child, true)
	return nil
}
