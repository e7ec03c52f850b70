package dataset

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/sharnoff/isodenoise"
)

// Open loads the dataset of the given kind. For DatasetManifest, path is the CSV file;
// for the other kinds it is the root directory.
func Open(fs afero.Fs, kind isodenoise.DatasetKind, path string, opts Options) (Grouped, error) {
	if path == "" {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "no dataset path given")
	}

	var (
		ds  Grouped
		err error
	)

	switch kind {
	case isodenoise.DatasetPatched:
		ds, err = NewPatched(fs, path, opts)
	case isodenoise.DatasetManifest:
		ds, err = NewManifest(fs, path, opts)
	case isodenoise.DatasetByClass:
		ds, err = NewByClass(fs, path, opts)
	default:
		return nil, errors.Wrapf(isodenoise.ErrConfig, "unknown dataset kind %q", kind)
	}

	if err != nil {
		return nil, err
	}
	return ds, nil
}
