package trainer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/dataset"
	"github.com/sharnoff/isodenoise/models"
)

// ImageName returns the file name of the k-th denoised image (1-based).
func ImageName(k int) string {
	return fmt.Sprintf("Test_Image_%d.png", k)
}

// DefaultResultsDir returns where inference results go when no directory is given: next to
// the checkpoint, in a directory named after the checkpoint file up to its first '.'.
func DefaultResultsDir(checkpointPath string) string {
	base := filepath.Base(checkpointPath)
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	return filepath.Join(filepath.Dir(checkpointPath), base)
}

// Test denoises every sample of l and writes the results to dir as Test_Image_1.png,
// Test_Image_2.png and so on, in the order the loader returns them. dir must not exist
// yet. The paths written are returned.
func (t *Trainer) Test(ctx context.Context, l *dataset.Loader, dir string) ([]string, error) {
	if exists, err := afero.Exists(t.fs, dir); err != nil {
		return nil, errors.Wrapf(err, "Failed to stat %q", dir)
	} else if exists {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "results directory %q already exists", dir)
	}

	if err := t.fs.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "Failed to create results directory")
	}

	var paths []string
	err := t.each(ctx, l, "test", func(b int, batch *isodenoise.Batch) error {
		feed, err := models.Feed(t.gen.Conditioning(), batch)
		if err != nil {
			return err
		}

		m, err := t.machine(batch, tagInfer)
		if err != nil {
			return err
		}

		res, err := m.Run(feed)
		if err != nil {
			return errors.WithMessagef(err, "batch %d", b)
		}

		out := res.Outputs[outputOut]
		size := batch.C * batch.H * batch.W
		for i := 0; i < batch.N; i++ {
			im := &isodenoise.Image{
				Channels: batch.C,
				Height:   batch.H,
				Width:    batch.W,
				Pix:      out[i*size : (i+1)*size],
			}

			path := filepath.Join(dir, ImageName(len(paths)+1))
			if err := dataset.WriteImage(t.fs, path, im); err != nil {
				return err
			}
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return paths, err
	}

	t.log.Infow("wrote results", "dir", dir, "images", len(paths))
	return paths, nil
}
