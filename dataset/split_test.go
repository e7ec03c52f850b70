package dataset

import (
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharnoff/isodenoise"
)

// groupsOf returns the sorted set of originals the indices belong to.
func groupsOf(indices []int, patches int) []int {
	set := make(map[int]bool)
	for _, i := range indices {
		set[i/patches] = true
	}

	var out []int
	for g := range set {
		out = append(out, g)
	}
	sort.Ints(out)
	return out
}

func newPatchedForSplit(t *testing.T, originals, patches int) *Patched {
	fs := afero.NewMemMapFs()
	makePatched(t, fs, "/data", originals, patches)

	p, err := NewPatched(fs, "/data", DefaultOptions)
	require.NoError(t, err)
	return p
}

func TestRandomSplitGroups(t *testing.T) {
	p := newPatchedForSplit(t, 10, 4)

	seed := int64(42)
	s, err := RandomSplit(p, 0.5, &seed)
	require.NoError(t, err)

	assert.Len(t, s.Test, 20)
	assert.Len(t, s.Train, 20)

	train, test := groupsOf(s.Train, 4), groupsOf(s.Test, 4)
	assert.Len(t, test, 5)
	assert.Len(t, train, 5)

	// disjoint, and covering every sample
	seen := make(map[int]bool)
	for _, i := range append(append([]int(nil), s.Train...), s.Test...) {
		assert.False(t, seen[i], "index %d appears twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, p.Len())

	for _, g := range test {
		assert.NotContains(t, train, g)
	}
}

func TestRandomSplitDeterministic(t *testing.T) {
	p := newPatchedForSplit(t, 10, 4)

	a, b := int64(42), int64(42)
	s1, err := RandomSplit(p, 0.5, &a)
	require.NoError(t, err)
	s2, err := RandomSplit(p, 0.5, &b)
	require.NoError(t, err)

	assert.Equal(t, s1, s2)

	other := int64(7)
	s3, err := RandomSplit(p, 0.5, &other)
	require.NoError(t, err)
	assert.NotEqual(t, s1.Test, s3.Test)
}

func TestRandomSplitFloor(t *testing.T) {
	p := newPatchedForSplit(t, 10, 1)

	seed := int64(1)
	s, err := RandomSplit(p, 0.25, &seed)
	require.NoError(t, err)
	assert.Len(t, s.Test, 2)
	assert.Len(t, s.Train, 8)
}

func TestRandomSplitEmptySide(t *testing.T) {
	p := newPatchedForSplit(t, 3, 2)
	seed := int64(1)

	for _, ratio := range []float64{0.1, 0, 1, -0.5, 1.5} {
		_, err := RandomSplit(p, ratio, &seed)
		require.Error(t, err, "ratio %v", ratio)
		assert.Equal(t, isodenoise.ErrSplit, errors.Cause(err))
	}
}

func TestSubset(t *testing.T) {
	p := newPatchedForSplit(t, 3, 2)

	sub := NewSubset(p, []int{5, 0, 3})
	require.Equal(t, 3, sub.Len())

	loc, err := sub.Locate(0)
	require.NoError(t, err)
	want, err := p.Locate(5)
	require.NoError(t, err)
	assert.Equal(t, want, loc)

	_, err = sub.Locate(3)
	assert.Equal(t, isodenoise.ErrIndexRange, errors.Cause(err))
}
