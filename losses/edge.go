package losses

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/nn"
)

const (
	// DefaultEdgeWeight is the weight of the edge term of EdgeAware.
	DefaultEdgeWeight = 0.025
	// SobelEps keeps the gradient magnitude differentiable at zero.
	SobelEps = 1e-5
)

var (
	sobelX = [9]float32{1, 0, -1, 2, 0, -2, 1, 0, -1}
	sobelY = [9]float32{1, 2, 1, 0, 0, 0, -1, -2, -1}
)

type edgeAware struct {
	weight float64
}

// EdgeAware returns the mean squared error plus weight times the mean squared error of
// the Sobel gradient magnitudes of output and target, so that errors on edges count
// more than errors in flat regions. The magnitude is taken per channel, as
// sqrt(Gx² + Gy² + SobelEps).
func EdgeAware(weight float64) edgeAware {
	return edgeAware{weight}
}

func (edgeAware) Kind() isodenoise.LossKind {
	return isodenoise.LossEdgeAware
}

// sobelFilter returns a (C, C, 3, 3) filter applying k to each channel separately.
func sobelFilter(c int, k [9]float32) []float32 {
	f := make([]float32, c*c*9)
	for i := 0; i < c; i++ {
		copy(f[(i*c+i)*9:], k[:])
	}
	return f
}

func (e edgeAware) magnitude(b *nn.Builder, x, fx, fy *G.Node) *G.Node {
	gx := b.Conv2d(x, fx, 1)
	gy := b.Conv2d(x, fy, 1)
	return b.Sqrt(b.AddScalar(b.Add(b.Square(gx), b.Square(gy)), SobelEps))
}

func (e edgeAware) Build(b *nn.Builder, out, target *G.Node) *G.Node {
	if b.Error() != nil {
		return nil
	}

	c := out.Shape()[1]
	shape := []int{c, c, 3, 3}
	fx := b.ConstTensor(fmt.Sprintf("sobel_x_%d", c), shape, sobelFilter(c, sobelX))
	fy := b.ConstTensor(fmt.Sprintf("sobel_y_%d", c), shape, sobelFilter(c, sobelY))

	edges := MSE().Build(b, e.magnitude(b, out, fx, fy), e.magnitude(b, target, fx, fy))
	return b.Add(MSE().Build(b, out, target), b.Scale(edges, float32(e.weight)))
}

func (e edgeAware) Cost(out, target []float32, shape [4]int) float64 {
	mo := sobelMagnitude(out, shape)
	mt := sobelMagnitude(target, shape)
	return MSE().Cost(out, target, shape) + e.weight*MSE().Cost(mo, mt, shape)
}

// sobelMagnitude computes the per-channel gradient magnitude of x (N, C, H, W), with zero
// padding at the borders.
func sobelMagnitude(x []float32, shape [4]int) []float32 {
	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	out := make([]float32, len(x))

	for plane := 0; plane < n*c; plane++ {
		px := x[plane*h*w : (plane+1)*h*w]
		po := out[plane*h*w : (plane+1)*h*w]

		for i := 0; i < h; i++ {
			for j := 0; j < w; j++ {
				var gx, gy float64
				for di := -1; di <= 1; di++ {
					for dj := -1; dj <= 1; dj++ {
						y, z := i+di, j+dj
						if y < 0 || y >= h || z < 0 || z >= w {
							continue
						}
						k := (di+1)*3 + dj + 1
						v := float64(px[y*w+z])
						gx += float64(sobelX[k]) * v
						gy += float64(sobelY[k]) * v
					}
				}
				po[i*w+j] = float32(math.Sqrt(gx*gx + gy*gy + SobelEps))
			}
		}
	}
	return out
}
