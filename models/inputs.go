package models

import (
	"github.com/pkg/errors"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/nn"
)

// Names of the graph inputs added by AddInputs.
const (
	InputNoisy = "x"
	InputISO   = "iso"
	InputClass = "class"
)

// AddInputs adds the inputs of a generator for a batch of n images of shape (c, h, w).
func AddInputs(b *nn.Builder, cond Conditioning, n, c, h, w int) Inputs {
	in := Inputs{X: b.Input(InputNoisy, n, c, h, w)}
	if cond.ISO {
		in.ISO = b.Input(InputISO, n, 1)
	}
	if cond.Classes > 0 {
		in.Class = b.Input(InputClass, n, cond.Classes)
	}
	return in
}

// Feed returns the values of the inputs added by AddInputs, for the given batch. The ISO
// values are divided by cond.ISOScale. Samples without a class label get an all-zero
// class vector.
func Feed(cond Conditioning, batch *isodenoise.Batch) (map[string][]float32, error) {
	feed := map[string][]float32{InputNoisy: batch.Noisy}

	if cond.ISO {
		iso := make([]float32, batch.N)
		for i, v := range batch.ISO {
			iso[i] = float32(float64(v) / cond.ISOScale)
		}
		feed[InputISO] = iso
	}

	if cond.Classes > 0 {
		oneHot := make([]float32, batch.N*cond.Classes)
		for i, c := range batch.Class {
			if c == isodenoise.NoClass {
				continue
			} else if c < 0 || c >= cond.Classes {
				return nil, errors.Wrapf(isodenoise.ErrConfig, "sample %d has class %d, but the model only knows %d classes",
					batch.Indices[i], c, cond.Classes)
			}
			oneHot[i*cond.Classes+c] = 1
		}
		feed[InputClass] = oneHot
	}

	return feed, nil
}
