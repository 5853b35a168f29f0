package hashindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectoryInsertFindRoundTrips(t *testing.T) {
	d := New(4)
	d.Insert(1, 10)
	d.Insert(2, 20)

	v, ok := d.Find(1)
	require.True(t, ok)
	require.Equal(t, Value(10), v)

	v, ok = d.Find(2)
	require.True(t, ok)
	require.Equal(t, Value(20), v)

	_, ok = d.Find(3)
	require.False(t, ok)
}

func TestDirectoryUpsertOverwritesExistingKey(t *testing.T) {
	d := New(4)
	d.Insert(5, 1)
	d.Insert(5, 2)

	v, ok := d.Find(5)
	require.True(t, ok)
	require.Equal(t, Value(2), v)
}

func TestDirectoryRemove(t *testing.T) {
	d := New(4)
	d.Insert(1, 10)
	require.True(t, d.Remove(1))
	_, ok := d.Find(1)
	require.False(t, ok)
	require.False(t, d.Remove(1))
}

// Many keys inserted into a small-capacity directory must force repeated
// splits and directory doublings while preserving §4.2's invariants: the
// directory length always equals 2^GlobalDepth, every bucket's local depth
// is at most the global depth, and every previously inserted key is still
// found afterward.
func TestDirectoryGrowsAndPreservesInvariants(t *testing.T) {
	d := New(2)

	const n = 200
	for i := Key(0); i < n; i++ {
		d.Insert(i, Value(i))
	}

	require.Equal(t, 1<<uint(d.GlobalDepth()), d.Len())

	for i := Key(0); i < n; i++ {
		v, ok := d.Find(i)
		require.True(t, ok, "key %d should be found", i)
		require.Equal(t, Value(i), v)
		require.LessOrEqual(t, d.LocalDepth(i), d.GlobalDepth())
	}

	require.Greater(t, d.GlobalDepth(), 0)
}

func TestDirectorySingleBucketStartsAtGlobalDepthZero(t *testing.T) {
	d := New(4)
	require.Equal(t, 0, d.GlobalDepth())
	require.Equal(t, 1, d.Len())
}

func TestDirectoryRemoveThenReinsertSameKey(t *testing.T) {
	d := New(2)
	for i := Key(0); i < 50; i++ {
		d.Insert(i, Value(i))
	}
	require.True(t, d.Remove(10))
	_, ok := d.Find(10)
	require.False(t, ok)

	d.Insert(10, 999)
	v, ok := d.Find(10)
	require.True(t, ok)
	require.Equal(t, Value(999), v)
}
