package btree

import (
	"fmt"

	"github.com/tuannm99/novasql/internal/storage"
)

// Remove deletes key if present; a missing key is a silent no-op (§4.4
// Delete).
func (t *Tree) Remove(key KeyType) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	root, ok, err := t.rootPageID()
	if err != nil || !ok {
		return err
	}

	leafPID, path, err := t.findLeafPath(root, key)
	if err != nil {
		return err
	}
	leafPage, err := t.fetchPage(leafPID)
	if err != nil {
		return err
	}

	entries, err := readLeafEntries(leafPage)
	if err != nil {
		t.pool.UnpinPage(leafPID, false)
		return err
	}
	i := lowerBoundLeaf(entries, key)
	if i >= len(entries) || entries[i].key != key {
		t.pool.UnpinPage(leafPID, false)
		return nil
	}
	entries = append(entries[:i], entries[i+1:]...)

	if len(path) == 0 { // leaf is the root: tolerate any size >= 0
		if err := writeLeafEntries(leafPage, entries); err != nil {
			t.pool.UnpinPage(leafPID, false)
			return err
		}
		if len(entries) == 0 {
			t.pool.UnpinPage(leafPID, true)
			if _, err := t.pool.DeletePage(leafPID); err != nil {
				return err
			}
			return t.clearRoot()
		}
		t.pool.UnpinPage(leafPID, true)
		return nil
	}

	if len(entries) >= minLeafSize(t.leafMax) {
		err := writeLeafEntries(leafPage, entries)
		t.pool.UnpinPage(leafPID, true)
		return err
	}

	if err := writeLeafEntries(leafPage, entries); err != nil {
		t.pool.UnpinPage(leafPID, false)
		return err
	}
	t.pool.UnpinPage(leafPID, true)
	return t.rebalanceLeaf(leafPID, path)
}

// rebalanceLeaf handles an underflowed non-root leaf by stealing from a
// sibling, or merging into one, then recurses on the parent (§4.4 step 3).
func (t *Tree) rebalanceLeaf(leafPID storage.PageID, path []storage.PageID) error {
	parentID := path[len(path)-1]
	parentPage, err := t.fetchPage(parentID)
	if err != nil {
		return err
	}
	pEntries, err := readInternalEntries(parentPage)
	if err != nil {
		t.pool.UnpinPage(parentID, false)
		return err
	}

	myIdx := indexOfChild(pEntries, leafPID)
	if myIdx < 0 {
		t.pool.UnpinPage(parentID, false)
		return fmt.Errorf("%w: leaf %d missing from parent %d", ErrTreeCorrupted, leafPID, parentID)
	}

	leafPage, err := t.fetchPage(leafPID)
	if err != nil {
		t.pool.UnpinPage(parentID, false)
		return err
	}
	myEntries, err := readLeafEntries(leafPage)
	if err != nil {
		t.pool.UnpinPage(parentID, false)
		t.pool.UnpinPage(leafPID, false)
		return err
	}

	// Prefer stealing from the left sibling, then the right.
	if myIdx > 0 {
		leftPID := pEntries[myIdx-1].child
		leftPage, err := t.fetchPage(leftPID)
		if err != nil {
			return err
		}
		leftEntries, err := readLeafEntries(leftPage)
		if err != nil {
			return err
		}
		if len(leftEntries)-1 >= minLeafSize(t.leafMax) {
			donated := leftEntries[len(leftEntries)-1]
			leftEntries = leftEntries[:len(leftEntries)-1]
			myEntries = append([]leafEntry{donated}, myEntries...)

			if err := writeLeafEntries(leftPage, leftEntries); err != nil {
				return err
			}
			if err := writeLeafEntries(leafPage, myEntries); err != nil {
				return err
			}
			pEntries[myIdx].key = myEntries[0].key // separator reflects new boundary

			err = writeInternalEntries(parentPage, pEntries)
			t.pool.UnpinPage(leftPID, true)
			t.pool.UnpinPage(leafPID, true)
			t.pool.UnpinPage(parentID, true)
			return err
		}
		t.pool.UnpinPage(leftPID, false)
	}

	if myIdx < len(pEntries)-1 {
		rightPID := pEntries[myIdx+1].child
		rightPage, err := t.fetchPage(rightPID)
		if err != nil {
			return err
		}
		rightEntries, err := readLeafEntries(rightPage)
		if err != nil {
			return err
		}
		if len(rightEntries)-1 >= minLeafSize(t.leafMax) {
			donated := rightEntries[0]
			rightEntries = rightEntries[1:]
			myEntries = append(myEntries, donated)

			if err := writeLeafEntries(rightPage, rightEntries); err != nil {
				return err
			}
			if err := writeLeafEntries(leafPage, myEntries); err != nil {
				return err
			}
			pEntries[myIdx+1].key = rightEntries[0].key

			err = writeInternalEntries(parentPage, pEntries)
			t.pool.UnpinPage(rightPID, true)
			t.pool.UnpinPage(leafPID, true)
			t.pool.UnpinPage(parentID, true)
			return err
		}

		// Merge leafPID (left) with rightPID (right) into leafPID.
		merged := append(myEntries, rightEntries...)
		if err := writeLeafEntries(leafPage, merged); err != nil {
			return err
		}
		leafPage.SetNextPageID(rightPage.NextPageID())

		pEntries = append(pEntries[:myIdx+1], pEntries[myIdx+2:]...)
		if err := writeInternalEntries(parentPage, pEntries); err != nil {
			return err
		}

		t.pool.UnpinPage(leafPID, true)
		t.pool.UnpinPage(rightPID, true)
		if _, err := t.pool.DeletePage(rightPID); err != nil {
			t.pool.UnpinPage(parentID, true)
			return err
		}
		return t.finishInternalRemoval(parentID, path[:len(path)-1], len(pEntries))
	}

	// myIdx == len(pEntries)-1 with a left sibling that couldn't donate:
	// merge this leaf into the left sibling instead.
	leftPID := pEntries[myIdx-1].child
	leftPage, err := t.fetchPage(leftPID)
	if err != nil {
		return err
	}
	leftEntries, err := readLeafEntries(leftPage)
	if err != nil {
		return err
	}
	merged := append(leftEntries, myEntries...)
	if err := writeLeafEntries(leftPage, merged); err != nil {
		return err
	}
	leftPage.SetNextPageID(leafPage.NextPageID())

	pEntries = append(pEntries[:myIdx], pEntries[myIdx+1:]...)
	if err := writeInternalEntries(parentPage, pEntries); err != nil {
		return err
	}

	t.pool.UnpinPage(leftPID, true)
	t.pool.UnpinPage(leafPID, true)
	if _, err := t.pool.DeletePage(leafPID); err != nil {
		t.pool.UnpinPage(parentID, true)
		return err
	}
	return t.finishInternalRemoval(parentID, path[:len(path)-1], len(pEntries))
}

func indexOfChild(entries []internalEntry, pid storage.PageID) int {
	for i, e := range entries {
		if e.child == pid {
			return i
		}
	}
	return -1
}

// finishInternalRemoval checks whether the parent (whose child count just
// dropped to newSize after a merge) underflowed, and rebalances or shrinks
// the tree accordingly (§4.4 steps 4-5).
func (t *Tree) finishInternalRemoval(parentID storage.PageID, ancestors []storage.PageID, newSize int) error {
	if len(ancestors) == 0 {
		// parentID is the root; release the caller's pin first so the root
		// can be deleted when it collapses.
		t.pool.UnpinPage(parentID, true)
		if newSize == 1 {
			page, err := t.fetchPage(parentID)
			if err != nil {
				return err
			}
			entries, err := readInternalEntries(page)
			t.pool.UnpinPage(parentID, false)
			if err != nil {
				return err
			}
			onlyChild := entries[0].child
			if err := t.setParentPageID(onlyChild, storage.InvalidPageID); err != nil {
				return err
			}
			if _, err := t.pool.DeletePage(parentID); err != nil {
				return err
			}
			return t.setRootPageID(onlyChild)
		}
		return nil
	}

	if newSize >= minInternalSize(t.internalMax) {
		t.pool.UnpinPage(parentID, true)
		return nil
	}
	t.pool.UnpinPage(parentID, true)
	return t.rebalanceInternal(parentID, ancestors)
}

// rebalanceInternal handles an underflowed non-root internal node,
// symmetric to rebalanceLeaf but rotating/merging the separator key
// through the parent (§4.4 step 4).
func (t *Tree) rebalanceInternal(nodePID storage.PageID, path []storage.PageID) error {
	parentID := path[len(path)-1]
	parentPage, err := t.fetchPage(parentID)
	if err != nil {
		return err
	}
	pEntries, err := readInternalEntries(parentPage)
	if err != nil {
		t.pool.UnpinPage(parentID, false)
		return err
	}
	myIdx := indexOfChild(pEntries, nodePID)
	if myIdx < 0 {
		t.pool.UnpinPage(parentID, false)
		return fmt.Errorf("%w: node %d missing from parent %d", ErrTreeCorrupted, nodePID, parentID)
	}

	nodePage, err := t.fetchPage(nodePID)
	if err != nil {
		return err
	}
	myEntries, err := readInternalEntries(nodePage)
	if err != nil {
		return err
	}

	if myIdx > 0 {
		leftPID := pEntries[myIdx-1].child
		leftPage, err := t.fetchPage(leftPID)
		if err != nil {
			return err
		}
		leftEntries, err := readInternalEntries(leftPage)
		if err != nil {
			return err
		}
		if len(leftEntries)-1 >= minInternalSize(t.internalMax) {
			donatedEntry := leftEntries[len(leftEntries)-1]
			leftEntries = leftEntries[:len(leftEntries)-1]

			// Parent separator descends as my new index-0 key; donor's
			// edge child pointer pairs with it; donor's key ascends.
			myEntries = append([]internalEntry{{child: donatedEntry.child}}, myEntries...)
			myEntries[1].key = pEntries[myIdx].key
			pEntries[myIdx].key = donatedEntry.key

			if err := writeInternalEntries(leftPage, leftEntries); err != nil {
				return err
			}
			if err := writeInternalEntries(nodePage, myEntries); err != nil {
				return err
			}
			if err := writeInternalEntries(parentPage, pEntries); err != nil {
				return err
			}
			if err := t.setParentPageID(donatedEntry.child, nodePID); err != nil {
				return err
			}
			t.pool.UnpinPage(leftPID, true)
			t.pool.UnpinPage(nodePID, true)
			t.pool.UnpinPage(parentID, true)
			return nil
		}
		t.pool.UnpinPage(leftPID, false)
	}

	if myIdx < len(pEntries)-1 {
		rightPID := pEntries[myIdx+1].child
		rightPage, err := t.fetchPage(rightPID)
		if err != nil {
			return err
		}
		rightEntries, err := readInternalEntries(rightPage)
		if err != nil {
			return err
		}
		if len(rightEntries)-1 >= minInternalSize(t.internalMax) {
			donatedEntry := rightEntries[0]
			rightEntries = rightEntries[1:]
			newSep := rightEntries[0].key // donor's edge key ascends
			rightEntries[0].key = 0       // becomes the new ignored index-0 key

			myEntries = append(myEntries, internalEntry{key: pEntries[myIdx+1].key, child: donatedEntry.child})
			pEntries[myIdx+1].key = newSep

			if err := writeInternalEntries(rightPage, rightEntries); err != nil {
				return err
			}
			if err := writeInternalEntries(nodePage, myEntries); err != nil {
				return err
			}
			if err := writeInternalEntries(parentPage, pEntries); err != nil {
				return err
			}
			if err := t.setParentPageID(donatedEntry.child, nodePID); err != nil {
				return err
			}
			t.pool.UnpinPage(rightPID, true)
			t.pool.UnpinPage(nodePID, true)
			t.pool.UnpinPage(parentID, true)
			return nil
		}

		// Merge nodePID (left) with rightPID (right): the parent's
		// separator descends as a real key between them.
		sep := pEntries[myIdx+1].key
		rightEntries[0].key = sep
		merged := append(myEntries, rightEntries...)
		if err := writeInternalEntries(nodePage, merged); err != nil {
			return err
		}
		for _, e := range rightEntries {
			if err := t.setParentPageID(e.child, nodePID); err != nil {
				return err
			}
		}

		pEntries = append(pEntries[:myIdx+1], pEntries[myIdx+2:]...)
		if err := writeInternalEntries(parentPage, pEntries); err != nil {
			return err
		}

		t.pool.UnpinPage(nodePID, true)
		t.pool.UnpinPage(rightPID, true)
		if _, err := t.pool.DeletePage(rightPID); err != nil {
			t.pool.UnpinPage(parentID, true)
			return err
		}
		return t.finishInternalRemoval(parentID, path[:len(path)-1], len(pEntries))
	}

	// myIdx == len(pEntries)-1, no right sibling to merge with: merge this
	// node into the left sibling.
	leftPID := pEntries[myIdx-1].child
	leftPage, err := t.fetchPage(leftPID)
	if err != nil {
		return err
	}
	leftEntries, err := readInternalEntries(leftPage)
	if err != nil {
		return err
	}
	sep := pEntries[myIdx].key
	myEntries[0].key = sep
	merged := append(leftEntries, myEntries...)
	if err := writeInternalEntries(leftPage, merged); err != nil {
		return err
	}
	for _, e := range myEntries {
		if err := t.setParentPageID(e.child, leftPID); err != nil {
			return err
		}
	}

	pEntries = append(pEntries[:myIdx], pEntries[myIdx+1:]...)
	if err := writeInternalEntries(parentPage, pEntries); err != nil {
		return err
	}

	t.pool.UnpinPage(leftPID, true)
	t.pool.UnpinPage(nodePID, true)
	if _, err := t.pool.DeletePage(nodePID); err != nil {
		t.pool.UnpinPage(parentID, true)
		return err
	}
	return t.finishInternalRemoval(parentID, path[:len(path)-1], len(pEntries))
}
