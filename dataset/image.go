package dataset

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/sharnoff/isodenoise"
)

// ReadImage decodes the PNG at path into a normalized Image with the given number of
// channels (1 for luminance, 3 for RGB).
func ReadImage(fs afero.Fs, path string, channels int) (*isodenoise.Image, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open image")
	}
	defer f.Close()

	im, err := DecodeImage(f, channels)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to decode image %q", path)
	}
	return im, nil
}

// DecodeImage decodes a PNG stream. Pixel values p in [0, 1] are stored as 2p-1.
func DecodeImage(r io.Reader, channels int) (*isodenoise.Image, error) {
	src, err := png.Decode(r)
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	out := isodenoise.NewImage(channels, h, w)
	plane := h * w

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			c := src.At(bounds.Min.X+x, bounds.Min.Y+y)
			if channels == 1 {
				g := color.Gray16Model.Convert(c).(color.Gray16)
				out.Pix[i] = normalize(uint32(g.Y))
				continue
			}

			// RGBA returns alpha-premultiplied values; PNG patches are opaque
			r, g, b, _ := c.RGBA()
			out.Pix[i] = normalize(r)
			out.Pix[plane+i] = normalize(g)
			out.Pix[2*plane+i] = normalize(b)
		}
	}

	return out, nil
}

func normalize(v uint32) float32 {
	return float32(v)/0xffff*2 - 1
}

// Denormalize maps a network output in [-1, 1] back to a pixel value in [0, 1], as
// clamp(x*0.5 + 0.5, 0, 1). NaN maps to 0.
func Denormalize(x float32) float32 {
	v := x*0.5 + 0.5
	if math.IsNaN(float64(v)) || v < 0 {
		return 0
	} else if v > 1 {
		return 1
	}
	return v
}

// EncodeImage writes im as a PNG, rescaling values with Denormalize.
func EncodeImage(w io.Writer, im *isodenoise.Image) error {
	if im.Channels != 1 && im.Channels != 3 {
		return errors.Errorf("Can't encode an image with %d channels", im.Channels)
	}

	rect := image.Rect(0, 0, im.Width, im.Height)
	plane := im.Height * im.Width
	px := func(v float32) uint8 {
		return uint8(math.Round(float64(Denormalize(v)) * 255))
	}

	var dst image.Image
	if im.Channels == 1 {
		g := image.NewGray(rect)
		for i := 0; i < plane; i++ {
			g.Pix[i] = px(im.Pix[i])
		}
		dst = g
	} else {
		rgba := image.NewNRGBA(rect)
		for i := 0; i < plane; i++ {
			rgba.Pix[4*i] = px(im.Pix[i])
			rgba.Pix[4*i+1] = px(im.Pix[plane+i])
			rgba.Pix[4*i+2] = px(im.Pix[2*plane+i])
			rgba.Pix[4*i+3] = 0xff
		}
		dst = rgba
	}

	return png.Encode(w, dst)
}

// WriteImage encodes im as a PNG file at path.
func WriteImage(fs afero.Fs, path string, im *isodenoise.Image) error {
	f, err := fs.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to create image file")
	}

	if err := EncodeImage(f, im); err != nil {
		f.Close()
		return errors.Wrapf(err, "Failed to encode image %q", path)
	}

	return errors.Wrapf(f.Close(), "Failed to close image %q", path)
}
