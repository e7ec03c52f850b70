package nn

import (
	G "gorgonia.org/gorgonia"

	"github.com/sharnoff/isodenoise/initializers"
)

// InitScale multiplies the initial weights of every Conv and Linear layer.
const InitScale = 0.1

// ConvInit is the initializer for convolution filters: base scaled by InitScale, where a
// nil base is Kaiming uniform.
func ConvInit(base initializers.Initializer) initializers.Initializer {
	if base == nil {
		base = initializers.KaimingUniform()
	}
	return initializers.Scaled(base, InitScale)
}

// LinearInit is the initializer for fully connected weights: uniform within
// ±1/sqrt(fanIn), scaled by InitScale.
func LinearInit() initializers.Initializer {
	return initializers.Scaled(initializers.VarianceScaling().In().Factor(1.0/3).Uniform(), InitScale)
}

// Conv is a square 2D convolution with "same" padding and a per-channel bias.
type Conv struct {
	W, B   *Param
	In     int
	Out    int
	Stride int
}

// NewConv adds the filter and bias of a convolution to s.
func NewConv(s Scope, in, out, kernel, stride int) *Conv {
	area := kernel * kernel
	return &Conv{
		W:      s.Add("weight", []int{out, in, kernel, kernel}, ConvInit(s.conv), in*area, out*area),
		B:      s.Add("bias", []int{1, out, 1, 1}, initializers.Zeros(), in*area, out*area),
		In:     in,
		Out:    out,
		Stride: stride,
	}
}

// Apply convolves x (N, In, H, W).
func (c *Conv) Apply(b *Builder, x *G.Node) *G.Node {
	return b.AddBias(b.Conv2d(x, b.Param(c.W), c.Stride), b.Param(c.B))
}

// Linear is a fully connected layer, with an optional bias.
type Linear struct {
	W, B    *Param
	In, Out int
}

// NewLinear adds the weights of a fully connected layer to s. B is nil unless bias is
// true.
func NewLinear(s Scope, in, out int, bias bool) *Linear {
	l := &Linear{
		W:   s.Add("weight", []int{in, out}, LinearInit(), in, out),
		In:  in,
		Out: out,
	}
	if bias {
		l.B = s.Add("bias", []int{1, out}, initializers.Zeros(), in, out)
	}
	return l
}

// Apply maps x (N, In) to (N, Out).
func (l *Linear) Apply(b *Builder, x *G.Node) *G.Node {
	out := b.MatMul(x, b.Param(l.W))
	if l.B != nil {
		out = b.AddRow(out, b.Param(l.B))
	}
	return out
}
