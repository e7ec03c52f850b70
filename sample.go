package isodenoise

import (
	"github.com/pkg/errors"
)

// NoClass is the class label of samples from datasets that carry no scene class.
const NoClass = -1

// Location is where a sample lives on disk, along with its metadata. It is what a dataset
// indexer answers for a sample index, before any image is decoded.
type Location struct {
	// CleanPath is empty for datasets that only hold noisy inputs (inference).
	CleanPath string
	NoisyPath string
	ISO       float64
	// Class is NoClass when the dataset has no class labels.
	Class int
}

// Image is a decoded raster, stored channel-major (CHW) with values normalized to [-1, 1].
type Image struct {
	Channels, Height, Width int
	Pix                     []float32
}

// NewImage allocates a zeroed Image of the given shape.
func NewImage(c, h, w int) *Image {
	return &Image{Channels: c, Height: h, Width: w, Pix: make([]float32, c*h*w)}
}

// Size returns the number of values in the image.
func (im *Image) Size() int {
	return im.Channels * im.Height * im.Width
}

// SameShape reports whether two images have identical dimensions.
func (im *Image) SameShape(o *Image) bool {
	return im.Channels == o.Channels && im.Height == o.Height && im.Width == o.Width
}

// Sample is a decoded training or test example. Clean is nil for inference-only datasets.
type Sample struct {
	Clean *Image
	Noisy *Image
	ISO   float64
	Class int
}

// Batch is a set of samples of identical shape, laid out contiguously (NCHW) for the
// tensor engine.
type Batch struct {
	// Indices are the dataset indices the batch was assembled from, in order.
	Indices []int

	N, C, H, W int

	Noisy []float32
	// Clean is nil when any sample of the batch had no clean image.
	Clean []float32
	ISO   []float32
	Class []int
}

// Shape returns the NCHW shape of the batch's image data.
func (b *Batch) Shape() []int {
	return []int{b.N, b.C, b.H, b.W}
}

// Collate assembles samples into a Batch. All samples must share the noisy image shape,
// and clean images, when present, must match it.
func Collate(indices []int, samples []Sample) (*Batch, error) {
	if len(samples) == 0 {
		return nil, errors.Errorf("Can't collate an empty batch")
	} else if len(indices) != len(samples) {
		return nil, errors.Errorf("Got %d indices for %d samples", len(indices), len(samples))
	}

	first := samples[0].Noisy
	if first == nil {
		return nil, NewNilArgError("Noisy image of sample 0")
	}

	b := &Batch{
		Indices: append([]int(nil), indices...),
		N:       len(samples),
		C:       first.Channels,
		H:       first.Height,
		W:       first.Width,
		ISO:     make([]float32, len(samples)),
		Class:   make([]int, len(samples)),
	}

	size := first.Size()
	hasClean := true
	b.Noisy = make([]float32, 0, size*b.N)
	for i, s := range samples {
		if s.Noisy == nil {
			return nil, NewNilArgError("Noisy image of a sample")
		} else if !s.Noisy.SameShape(first) {
			return nil, errors.Errorf("Sample %d has shape %dx%dx%d, batch has %dx%dx%d", indices[i],
				s.Noisy.Channels, s.Noisy.Height, s.Noisy.Width, b.C, b.H, b.W)
		} else if s.Clean != nil && !s.Clean.SameShape(s.Noisy) {
			return nil, errors.Errorf("Sample %d has clean and noisy images of different shapes", indices[i])
		}

		b.Noisy = append(b.Noisy, s.Noisy.Pix...)
		b.ISO[i] = float32(s.ISO)
		b.Class[i] = s.Class
		hasClean = hasClean && s.Clean != nil
	}

	if hasClean {
		b.Clean = make([]float32, 0, size*b.N)
		for _, s := range samples {
			b.Clean = append(b.Clean, s.Clean.Pix...)
		}
	}

	return b, nil
}
