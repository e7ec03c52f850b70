package dataset

import (
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/sharnoff/isodenoise"
)

type manifestRow struct {
	ISO       float64 `csv:"iso"`
	NoisyPath string  `csv:"noisy_path"`
	CleanPath string  `csv:"clean_path"`
	Class     string  `csv:"class"`
}

// Manifest is the record-indexed dataset: one CSV row per sample, with paths relative to
// the directory of the CSV file. The clean_path column may be left out (or empty) for
// inference-only sets, and the class column is optional.
type Manifest struct {
	fs      afero.Fs
	opts    Options
	locs    []isodenoise.Location
	classes int
}

// NewManifest reads the manifest at csvPath.
func NewManifest(fs afero.Fs, csvPath string, opts Options) (*Manifest, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	f, err := fs.Open(csvPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open manifest")
	}
	defer f.Close()

	var rows []manifestRow
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, errors.Wrapf(err, "Failed to read manifest %q", csvPath)
	}

	if len(rows) == 0 {
		return nil, errors.Wrapf(isodenoise.ErrLayout, "manifest %q has no rows", csvPath)
	}

	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Class
	}
	ids := classIDs(names)

	dir := filepath.Dir(csvPath)
	m := &Manifest{
		fs:      fs,
		opts:    opts,
		locs:    make([]isodenoise.Location, len(rows)),
		classes: len(ids),
	}

	for i, r := range rows {
		if r.NoisyPath == "" {
			return nil, errors.Wrapf(isodenoise.ErrLayout, "manifest %q row %d has no noisy_path", csvPath, i)
		} else if !(r.ISO > 0) {
			return nil, errors.Wrapf(isodenoise.ErrLayout, "manifest %q row %d has ISO %v, must be > 0", csvPath, i, r.ISO)
		}

		loc := isodenoise.Location{
			NoisyPath: filepath.Join(dir, r.NoisyPath),
			ISO:       r.ISO,
			Class:     isodenoise.NoClass,
		}
		if r.CleanPath != "" {
			loc.CleanPath = filepath.Join(dir, r.CleanPath)
		}
		if id, ok := ids[r.Class]; ok {
			loc.Class = id
		}

		m.locs[i] = loc
	}

	return m, nil
}

// Len implements Dataset.
func (m *Manifest) Len() int {
	return len(m.locs)
}

// Classes returns the number of distinct class labels in the manifest.
func (m *Manifest) Classes() int {
	return m.classes
}

// Locate implements Dataset.
func (m *Manifest) Locate(i int) (isodenoise.Location, error) {
	if err := checkIndex(i, len(m.locs)); err != nil {
		return isodenoise.Location{}, err
	}
	return m.locs[i], nil
}

// Get implements Dataset.
func (m *Manifest) Get(i int) (isodenoise.Sample, error) {
	return getter{m.fs, m.opts.Channels, m.Locate}.get(i)
}

// Groups implements Grouped; every record is its own group.
func (m *Manifest) Groups() int {
	return len(m.locs)
}

// Group implements Grouped.
func (m *Manifest) Group(g int) (start, n int) {
	return g, 1
}
