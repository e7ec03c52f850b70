package dataset

import (
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/sharnoff/isodenoise"
)

// Split is a partition of a dataset's indices into disjoint train and test sets.
type Split struct {
	Train []int
	Test  []int
}

// RandomSplit partitions ds at group granularity: floor(testRatio × Groups()) groups are
// drawn without replacement for the test side and the rest go to the train side, so that
// the patches of one original never end up on both sides. Both index lists are shuffled.
//
// A nil seed draws a fresh split on every call. RandomSplit fails with ErrSplit when
// testRatio is outside (0, 1) or when either side would be left without any groups.
func RandomSplit(ds Grouped, testRatio float64, seed *int64) (Split, error) {
	if !(testRatio > 0 && testRatio < 1) {
		return Split{}, errors.Wrapf(isodenoise.ErrSplit, "test ratio must be in (0, 1) (%v)", testRatio)
	}

	groups := ds.Groups()
	nTest := int(math.Floor(testRatio * float64(groups)))
	if nTest == 0 || nTest == groups {
		return Split{}, errors.Wrapf(isodenoise.ErrSplit, "test ratio %v of %d originals leaves %d for testing and %d for training",
			testRatio, groups, nTest, groups-nTest)
	}

	var rng *rand.Rand
	if seed != nil {
		rng = rand.New(rand.NewSource(*seed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	perm := rng.Perm(groups)
	s := Split{
		Test:  expand(ds, perm[:nTest]),
		Train: expand(ds, perm[nTest:]),
	}

	rng.Shuffle(len(s.Test), func(i, j int) { s.Test[i], s.Test[j] = s.Test[j], s.Test[i] })
	rng.Shuffle(len(s.Train), func(i, j int) { s.Train[i], s.Train[j] = s.Train[j], s.Train[i] })

	return s, nil
}

// expand returns every index belonging to the given groups.
func expand(ds Grouped, groups []int) []int {
	var idx []int
	for _, g := range groups {
		start, n := ds.Group(g)
		for i := start; i < start+n; i++ {
			idx = append(idx, i)
		}
	}
	return idx
}

// Subset is a view of a Dataset through a list of indices; index i of the Subset is index
// Indices[i] of the underlying Dataset.
type Subset struct {
	ds      Dataset
	indices []int
}

// NewSubset returns the view of ds through indices. The slice is not copied.
func NewSubset(ds Dataset, indices []int) *Subset {
	return &Subset{ds, indices}
}

// Indices returns the underlying indices of the Subset.
func (s *Subset) Indices() []int {
	return s.indices
}

// Len implements Dataset.
func (s *Subset) Len() int {
	return len(s.indices)
}

// Locate implements Dataset.
func (s *Subset) Locate(i int) (isodenoise.Location, error) {
	if err := checkIndex(i, len(s.indices)); err != nil {
		return isodenoise.Location{}, err
	}
	return s.ds.Locate(s.indices[i])
}

// Get implements Dataset.
func (s *Subset) Get(i int) (isodenoise.Sample, error) {
	if err := checkIndex(i, len(s.indices)); err != nil {
		return isodenoise.Sample{}, err
	}
	return s.ds.Get(s.indices[i])
}
