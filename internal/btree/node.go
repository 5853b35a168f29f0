package btree

import (
	"github.com/tuannm99/novasql/internal/heap"
	"github.com/tuannm99/novasql/internal/storage"
)

// minLeafSize and minInternalSize implement §3's tree invariant with the
// thresholds fixed as stated there: ceil(max/2) for leaves, floor(max/2)
// for internal nodes. The source's leaf/internal code paths disagreed on
// which to use (§9 "Open questions"); this is the one definition applied
// everywhere in this implementation.
func minLeafSize(maxSize int) int {
	return (maxSize + 1) / 2
}

func minInternalSize(maxSize int) int {
	return maxSize / 2
}

// leafEntry is the in-memory form of one leaf (key, rid) pair.
type leafEntry struct {
	key KeyType
	tid heap.TID
}

func readLeafEntries(p *storage.Page) ([]leafEntry, error) {
	n := p.NumSlots()
	out := make([]leafEntry, 0, n)
	for i := 0; i < n; i++ {
		data, err := p.ReadTuple(i)
		if err != nil {
			return nil, err
		}
		k, tid := DecodeLeafEntry(data)
		out = append(out, leafEntry{key: k, tid: tid})
	}
	return out, nil
}

func writeLeafEntries(p *storage.Page, entries []leafEntry) error {
	tuples := make([][]byte, len(entries))
	for i, e := range entries {
		tuples[i] = EncodeLeafEntry(e.key, e.tid)
	}
	return p.RewriteTuples(tuples)
}

// internalEntry is the in-memory form of one internal (key, child) pair.
// entries[0].key is meaningless per §3 ("Internal entry at index 0 carries
// only a child pointer").
type internalEntry struct {
	key   KeyType
	child storage.PageID
}

func readInternalEntries(p *storage.Page) ([]internalEntry, error) {
	n := p.NumSlots()
	out := make([]internalEntry, 0, n)
	for i := 0; i < n; i++ {
		data, err := p.ReadTuple(i)
		if err != nil {
			return nil, err
		}
		k, child := DecodeInternalEntry(data)
		out = append(out, internalEntry{key: k, child: storage.PageID(int32(child))})
	}
	return out, nil
}

func writeInternalEntries(p *storage.Page, entries []internalEntry) error {
	tuples := make([][]byte, len(entries))
	for i, e := range entries {
		tuples[i] = EncodeInternalEntry(e.key, uint32(int32(e.child)))
	}
	return p.RewriteTuples(tuples)
}

// lowerBoundLeaf returns the first index i such that entries[i].key >= key.
func lowerBoundLeaf(entries []leafEntry, key KeyType) int {
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if entries[mid].key < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// childIndexFor chooses the child slot ci such that k[i] <= key < k[i+1]
// (§4.4 "Point lookup"), treating missing bounds as +/-infinity.
func childIndexFor(entries []internalEntry, key KeyType) int {
	ci := 0
	for i := 1; i < len(entries); i++ {
		if entries[i].key <= key {
			ci = i
		} else {
			break
		}
	}
	return ci
}
