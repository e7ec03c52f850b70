package dataset

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/sharnoff/isodenoise"
)

// TrainingInfoFileName is the metadata table of a ByClass dataset.
const TrainingInfoFileName = "Training_Info.csv"

type trainingInfoRow struct {
	Class string  `csv:"Class_Info"`
	Name  string  `csv:"Name_Info"`
	ISO   float64 `csv:"ISO_Info"`
}

// ByClass is the raw dataset layout, grouped by scene class:
// <root>/<ClassDir>/Clean/<Name> and <root>/<ClassDir>/Noisy/<Name>. The class names
// in the info table don't match the directory names exactly: "building" lives in
// "Buildings" and every other class in its capitalized form. File names are
// capitalized too.
type ByClass struct {
	fs      afero.Fs
	opts    Options
	locs    []isodenoise.Location
	classes int
}

// NewByClass reads <root>/Training_Info.csv.
func NewByClass(fs afero.Fs, root string, opts Options) (*ByClass, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if ok, err := afero.IsDir(fs, root); err != nil || !ok {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "no valid top directory %q", root)
	}

	infoPath := filepath.Join(root, TrainingInfoFileName)
	f, err := fs.Open(infoPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open dataset info")
	}
	defer f.Close()

	var rows []trainingInfoRow
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, errors.Wrapf(err, "Failed to read dataset info %q", infoPath)
	}

	if len(rows) == 0 {
		return nil, errors.Wrapf(isodenoise.ErrLayout, "%q has no rows", infoPath)
	}

	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Class
	}
	ids := classIDs(names)

	b := &ByClass{
		fs:      fs,
		opts:    opts,
		locs:    make([]isodenoise.Location, len(rows)),
		classes: len(ids),
	}

	for i, r := range rows {
		if r.Class == "" || r.Name == "" {
			return nil, errors.Wrapf(isodenoise.ErrLayout, "%q row %d lacks a class or name", infoPath, i)
		} else if !(r.ISO > 0) {
			return nil, errors.Wrapf(isodenoise.ErrLayout, "%q row %d has ISO %v, must be > 0", infoPath, i, r.ISO)
		}

		dir := filepath.Join(root, ClassDir(r.Class))
		file := capitalize(r.Name)
		b.locs[i] = isodenoise.Location{
			CleanPath: filepath.Join(dir, "Clean", file),
			NoisyPath: filepath.Join(dir, "Noisy", file),
			ISO:       r.ISO,
			Class:     ids[r.Class],
		}
	}

	return b, nil
}

// ClassDir returns the directory name used for a class from the info table.
func ClassDir(class string) string {
	if class == "building" {
		return "Buildings"
	}
	return capitalize(class)
}

// capitalize upper-cases the first letter of s and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[n:])
}

// Len implements Dataset.
func (b *ByClass) Len() int {
	return len(b.locs)
}

// Classes returns the number of distinct classes.
func (b *ByClass) Classes() int {
	return b.classes
}

// Locate implements Dataset.
func (b *ByClass) Locate(i int) (isodenoise.Location, error) {
	if err := checkIndex(i, len(b.locs)); err != nil {
		return isodenoise.Location{}, err
	}
	return b.locs[i], nil
}

// Get implements Dataset.
func (b *ByClass) Get(i int) (isodenoise.Sample, error) {
	return getter{b.fs, b.opts.Channels, b.Locate}.get(i)
}

// Groups implements Grouped; every image is its own group.
func (b *ByClass) Groups() int {
	return len(b.locs)
}

// Group implements Grouped.
func (b *ByClass) Group(g int) (start, n int) {
	return g, 1
}
