// Package hashindex implements the in-memory extendible hash directory
// mapping page ids to frame indices for the buffer pool (§4.2).
package hashindex

import (
	"hash/fnv"
	"sync"
)

// Key is the persistent page id used to look up a frame.
type Key int32

// Value is the buffer-pool frame index a key currently occupies.
type Value int

const defaultBucketSize = 4

type entry struct {
	key   Key
	value Value
}

type bucket struct {
	localDepth int
	entries    []entry
}

func newBucket(localDepth int) *bucket {
	return &bucket{localDepth: localDepth}
}

func (b *bucket) find(k Key) (Value, bool) {
	for _, e := range b.entries {
		if e.key == k {
			return e.value, true
		}
	}
	return 0, false
}

func (b *bucket) remove(k Key) bool {
	for i, e := range b.entries {
		if e.key == k {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (b *bucket) upsert(k Key, v Value) {
	for i, e := range b.entries {
		if e.key == k {
			b.entries[i].value = v
			return
		}
	}
	b.entries = append(b.entries, entry{key: k, value: v})
}

// Directory is the extendible hash directory (§4.2): a slice of bucket
// pointers of length 2^globalDepth, doubled on bucket overflow rather than
// rehashing every key.
type Directory struct {
	mu          sync.RWMutex
	globalDepth int
	bucketSize  int
	dir         []*bucket
}

// New creates an empty directory with global depth 0 (a single bucket) and
// the given per-bucket capacity. bucketSize <= 0 defaults to 4.
func New(bucketSize int) *Directory {
	if bucketSize <= 0 {
		bucketSize = defaultBucketSize
	}
	return &Directory{
		globalDepth: 0,
		bucketSize:  bucketSize,
		dir:         []*bucket{newBucket(0)},
	}
}

// hashKey mirrors the pack's sharding convention (fnv.New64a over the raw
// key bytes), grounded on mnohosten-laura-db's ShardKey.HashValue and
// ShardedLRUCache.fnv32 — the extendible-hash original source (§9 glossary)
// uses a generic std::hash<K> with no named library, so fnv is adopted from
// the pack rather than invented.
func hashKey(k Key) uint64 {
	h := fnv.New64a()
	var buf [4]byte
	buf[0] = byte(k)
	buf[1] = byte(k >> 8)
	buf[2] = byte(k >> 16)
	buf[3] = byte(k >> 24)
	h.Write(buf[:])
	return h.Sum64()
}

func (d *Directory) indexFor(k Key) int {
	mask := uint64(1)<<uint(d.globalDepth) - 1
	return int(hashKey(k) & mask)
}

// Find returns the frame index mapped to k, if present.
func (d *Directory) Find(k Key) (Value, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b := d.dir[d.indexFor(k)]
	return b.find(k)
}

// Remove deletes k's entry, if present, and reports whether it was found.
func (d *Directory) Remove(k Key) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.dir[d.indexFor(k)]
	return b.remove(k)
}

// Insert maps k to v, splitting and doubling the directory as needed when
// the target bucket overflows (§4.2 Insert algorithm). An existing mapping
// for k is overwritten in place.
func (d *Directory) Insert(k Key, v Value) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.insertLocked(k, v)
}

func (d *Directory) insertLocked(k Key, v Value) {
	idx := d.indexFor(k)
	b := d.dir[idx]

	if _, exists := b.find(k); exists {
		b.upsert(k, v)
		return
	}
	if len(b.entries) < d.bucketSize {
		b.upsert(k, v)
		return
	}

	d.split(idx)
	d.insertLocked(k, v) // retry: now fits, or recurses through another split
}

// split grows the directory (doubling it if the overflowing bucket's local
// depth has caught up with the global depth) and redistributes the
// bucket's entries between it and a freshly allocated sibling (§4.2 step 3).
func (d *Directory) split(idx int) {
	b := d.dir[idx]

	if b.localDepth == d.globalDepth {
		d.dir = append(d.dir, d.dir...)
		d.globalDepth++
	}

	newLocalDepth := b.localDepth + 1
	newBkt := newBucket(newLocalDepth)
	b.localDepth = newLocalDepth

	// The pattern bit that now distinguishes the old bucket from the new
	// one is bit (newLocalDepth-1); slots whose index has that bit set
	// are repointed at the new bucket.
	splitBit := uint64(1) << uint(newLocalDepth-1)

	for i, ptr := range d.dir {
		if ptr != b {
			continue
		}
		if uint64(i)&splitBit != 0 {
			d.dir[i] = newBkt
		}
	}

	old := b.entries
	b.entries = nil
	for _, e := range old {
		if hashKey(e.key)&splitBit == 0 {
			b.entries = append(b.entries, e)
		} else {
			newBkt.entries = append(newBkt.entries, e)
		}
	}
}

// GlobalDepth reports the current directory fan-out exponent G.
func (d *Directory) GlobalDepth() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.globalDepth
}

// LocalDepth reports the local depth of the bucket currently serving k.
func (d *Directory) LocalDepth(k Key) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dir[d.indexFor(k)].localDepth
}

// Len returns the number of directory slots, always 2^GlobalDepth().
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.dir)
}
