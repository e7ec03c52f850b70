// Package dataset maps sample indices onto paired noisy/clean images on disk, splits
// datasets into train and test partitions, and assembles shuffled batches with
// background decoding workers.
//
// Three layouts are supported:
//
//	Patched:  <root>/info.csv, <root>/<original>/{clean,noisy}/<patch>.png
//	Manifest: a CSV of iso, noisy_path, clean_path (and optionally class)
//	ByClass:  <root>/Training_Info.csv, <root>/<Class>/{Clean,Noisy}/<Name>
//
// All of them are safe to query out of order and from several goroutines at once; none
// of them cache decoded images.
package dataset

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/sharnoff/isodenoise"
)

// Dataset is an indexer over samples. Locate only computes where a sample lives; Get
// also reads and decodes its images.
type Dataset interface {
	// Len returns the number of samples. Valid indices are [0, Len()).
	Len() int

	// Locate returns the paths and metadata of the sample at index i, or an error wrapping
	// isodenoise.ErrIndexRange if i is out of range.
	Locate(i int) (isodenoise.Location, error)

	// Get returns the decoded sample at index i.
	Get(i int) (isodenoise.Sample, error)
}

// Grouped is implemented by datasets whose samples come in groups that must not be
// separated by a split, such as all of the patches cut from one original image. Group g
// covers the indices [start, start+n).
type Grouped interface {
	Dataset

	Groups() int
	Group(g int) (start, n int)
}

// Options are the settings shared by every dataset layout.
type Options struct {
	// Channels is the number of channels images are decoded to: 1 (gray) or 3 (RGB).
	Channels int
}

// DefaultOptions decodes RGB images.
var DefaultOptions = Options{Channels: 3}

func (o Options) validate() error {
	if o.Channels != 1 && o.Channels != 3 {
		return errors.Wrapf(isodenoise.ErrConfig, "images can only be decoded to 1 or 3 channels (%d)", o.Channels)
	}
	return nil
}

// checkIndex returns an error wrapping ErrIndexRange unless 0 <= i < n. An index equal
// to n is out of range.
func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return errors.Wrapf(isodenoise.ErrIndexRange, "index %d, length %d", i, n)
	}
	return nil
}

// load decodes the images at loc. The clean image is skipped when loc has no clean path.
func load(fs afero.Fs, loc isodenoise.Location, channels int) (isodenoise.Sample, error) {
	s := isodenoise.Sample{ISO: loc.ISO, Class: loc.Class}

	var err error
	if s.Noisy, err = ReadImage(fs, loc.NoisyPath, channels); err != nil {
		return s, err
	}

	if loc.CleanPath == "" {
		return s, nil
	}

	if s.Clean, err = ReadImage(fs, loc.CleanPath, channels); err != nil {
		return s, err
	}

	if !s.Clean.SameShape(s.Noisy) {
		return s, errors.Wrapf(isodenoise.ErrLayout, "clean image %q and noisy image %q differ in size",
			loc.CleanPath, loc.NoisyPath)
	}

	return s, nil
}

// getter adapts a Locate function into Get.
type getter struct {
	fs       afero.Fs
	channels int
	locate   func(int) (isodenoise.Location, error)
}

func (g getter) get(i int) (isodenoise.Sample, error) {
	loc, err := g.locate(i)
	if err != nil {
		return isodenoise.Sample{}, err
	}

	s, err := load(g.fs, loc, g.channels)
	if err != nil {
		return s, errors.WithMessagef(err, "sample %d", i)
	}
	return s, nil
}

// classIDs assigns dense ids to the distinct names, in sorted order.
func classIDs(names []string) map[string]int {
	set := make(map[string]bool)
	for _, n := range names {
		if n != "" {
			set[n] = true
		}
	}

	sorted := make([]string, 0, len(set))
	for n := range set {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	ids := make(map[string]int, len(sorted))
	for i, n := range sorted {
		ids[n] = i
	}
	return ids
}
