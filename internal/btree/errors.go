package btree

import "errors"

var (
	// ErrTreeCorrupted marks a structural invariant violation: a null page
	// where the tree expected a live node (§4.4 "Failure model" — the tree
	// treats a failed BPM fetch as a fatal structural error).
	ErrTreeCorrupted = errors.New("btree: structural invariant violated")
)
