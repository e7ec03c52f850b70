package dataset

import (
	"path/filepath"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/sharnoff/isodenoise"
)

// InfoFileName is the per-original metadata table of a patched dataset.
const InfoFileName = "info.csv"

type infoRow struct {
	ISO float64 `csv:"iso"`
}

// Patched is the patch-indexed dataset: every original image was cut into the same
// number of patches, stored as <root>/<original>/clean/<patch>.png and
// <root>/<original>/noisy/<patch>.png. Sample i is patch i%patches of original
// i/patches.
type Patched struct {
	fs      afero.Fs
	root    string
	opts    Options
	isos    []float64
	patches int
}

// NewPatched loads the patched dataset at root. The number of patches per original is
// counted once, from <root>/0/clean, and every original's clean and noisy directories
// must hold exactly that many entries; a mismatch is reported as ErrLayout.
func NewPatched(fs afero.Fs, root string, opts Options) (*Patched, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if ok, err := afero.IsDir(fs, root); err != nil || !ok {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "no valid top directory %q", root)
	}

	infoPath := filepath.Join(root, InfoFileName)
	f, err := fs.Open(infoPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open dataset info")
	}
	defer f.Close()

	var rows []infoRow
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, errors.Wrapf(err, "Failed to read dataset info %q", infoPath)
	}

	if len(rows) == 0 {
		return nil, errors.Wrapf(isodenoise.ErrLayout, "%q lists no originals", infoPath)
	}

	p := &Patched{
		fs:   fs,
		root: root,
		opts: opts,
		isos: make([]float64, len(rows)),
	}

	for i, r := range rows {
		if !(r.ISO > 0) {
			return nil, errors.Wrapf(isodenoise.ErrLayout, "original %d has ISO %v, must be > 0", i, r.ISO)
		}
		p.isos[i] = r.ISO
	}

	if p.patches, err = p.countEntries(p.dir(0, "clean")); err != nil {
		return nil, err
	} else if p.patches == 0 {
		return nil, errors.Wrapf(isodenoise.ErrLayout, "%q holds no patches", p.dir(0, "clean"))
	}

	if err := p.checkUniform(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Patched) dir(original int, kind string) string {
	return filepath.Join(p.root, strconv.Itoa(original), kind)
}

func (p *Patched) countEntries(dir string) (int, error) {
	infos, err := afero.ReadDir(p.fs, dir)
	if err != nil {
		return 0, errors.Wrapf(isodenoise.ErrLayout, "reading %q: %v", dir, err)
	}
	return len(infos), nil
}

// checkUniform verifies that every original has exactly p.patches clean and noisy
// patches.
func (p *Patched) checkUniform() error {
	for o := range p.isos {
		for _, kind := range []string{"clean", "noisy"} {
			n, err := p.countEntries(p.dir(o, kind))
			if err != nil {
				return err
			} else if n != p.patches {
				return errors.Wrapf(isodenoise.ErrLayout, "%q holds %d patches, expected %d",
					p.dir(o, kind), n, p.patches)
			}
		}
	}
	return nil
}

// Len returns originals × patches per original.
func (p *Patched) Len() int {
	return len(p.isos) * p.patches
}

// Originals returns the number of original images.
func (p *Patched) Originals() int {
	return len(p.isos)
}

// PatchesPerOriginal returns the number of patches cut from each original.
func (p *Patched) PatchesPerOriginal() int {
	return p.patches
}

// Index splits a sample index into its original and patch indices.
func (p *Patched) Index(i int) (original, patch int, err error) {
	if err = checkIndex(i, p.Len()); err != nil {
		return 0, 0, err
	}

	original = i / p.patches
	patch = i - original*p.patches
	return original, patch, nil
}

// Locate implements Dataset.
func (p *Patched) Locate(i int) (isodenoise.Location, error) {
	original, patch, err := p.Index(i)
	if err != nil {
		return isodenoise.Location{}, err
	}

	name := strconv.Itoa(patch) + ".png"
	return isodenoise.Location{
		CleanPath: filepath.Join(p.dir(original, "clean"), name),
		NoisyPath: filepath.Join(p.dir(original, "noisy"), name),
		ISO:       p.isos[original],
		Class:     isodenoise.NoClass,
	}, nil
}

// Get implements Dataset.
func (p *Patched) Get(i int) (isodenoise.Sample, error) {
	return getter{p.fs, p.opts.Channels, p.Locate}.get(i)
}

// Groups implements Grouped; every original is a group.
func (p *Patched) Groups() int {
	return len(p.isos)
}

// Group implements Grouped.
func (p *Patched) Group(g int) (start, n int) {
	return g * p.patches, p.patches
}
