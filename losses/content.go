package losses

import (
	"math"

	G "gorgonia.org/gorgonia"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/nn"
)

type mse struct{}

// MSE returns the mean squared error.
func MSE() mse {
	return mse{}
}

func (mse) Kind() isodenoise.LossKind {
	return isodenoise.LossMSE
}

func (mse) Build(b *nn.Builder, out, target *G.Node) *G.Node {
	return b.Mean(b.Square(b.Sub(out, target)))
}

func (mse) Cost(out, target []float32, shape [4]int) float64 {
	var sum float64
	for i := range out {
		d := float64(out[i] - target[i])
		sum += d * d
	}
	return sum / float64(len(out))
}

type l1 struct{}

// L1 returns the mean absolute error.
func L1() l1 {
	return l1{}
}

func (l1) Kind() isodenoise.LossKind {
	return isodenoise.LossL1
}

func (l1) Build(b *nn.Builder, out, target *G.Node) *G.Node {
	return b.Mean(b.Abs(b.Sub(out, target)))
}

func (l1) Cost(out, target []float32, shape [4]int) float64 {
	var sum float64
	for i := range out {
		sum += math.Abs(float64(out[i] - target[i]))
	}
	return sum / float64(len(out))
}

type huber struct {
	δ float64
}

// Huber returns the Huber loss. δ controls the bounds of the transition between squared
// and absolute error: 0.5d² for |d| ≤ δ, and δ|d| - 0.5δ² beyond.
func Huber(δ float64) huber {
	return huber{δ}
}

func (huber) Kind() isodenoise.LossKind {
	return isodenoise.LossHuber
}

// Build expresses the loss without branches, with q = min(|d|, δ):
// 0.5q² + δ(|d| - q)
func (h huber) Build(b *nn.Builder, out, target *G.Node) *G.Node {
	δ := float32(h.δ)
	a := b.Abs(b.Sub(out, target))
	q := b.Sub(a, b.ReLU(b.AddScalar(a, -δ)))
	sq := b.Scale(b.Square(q), 0.5)
	lin := b.Scale(b.Sub(a, q), δ)
	return b.Mean(b.Add(sq, lin))
}

func (h huber) Cost(out, target []float32, shape [4]int) float64 {
	var sum float64
	for i := range out {
		d := math.Abs(float64(out[i] - target[i]))
		if d <= h.δ {
			sum += 0.5 * d * d
		} else {
			sum += h.δ*d - 0.5*h.δ*h.δ
		}
	}
	return sum / float64(len(out))
}
