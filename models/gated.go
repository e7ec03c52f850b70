package models

import (
	G "gorgonia.org/gorgonia"

	"github.com/sharnoff/isodenoise/nn"
)

// leak is the negative slope of the generators' LeakyReLU activations.
const leak = 0.2

// conditioner maps the per-sample side information to a per-channel offset.
type conditioner struct {
	iso   *nn.Linear
	class *nn.Linear
}

func newConditioner(s nn.Scope, out int, cond Conditioning) conditioner {
	var c conditioner
	if cond.ISO {
		c.iso = nn.NewLinear(s.Sub("iso"), 1, out, false)
	}
	if cond.Classes > 0 {
		c.class = nn.NewLinear(s.Sub("class"), cond.Classes, out, false)
	}
	return c
}

// apply adds the conditioning offsets to x (N, out, H, W).
func (c conditioner) apply(b *nn.Builder, x *G.Node, in Inputs) *G.Node {
	if c.iso != nil && in.ISO != nil {
		x = b.AddChannel(x, c.iso.Apply(b, in.ISO))
	}
	if c.class != nil && in.Class != nil {
		x = b.AddChannel(x, c.class.Apply(b, in.Class))
	}
	return x
}

// gatedConv computes act(feature(x) + cond) ⊙ sigmoid(gate(x) + cond), where both
// branches get their own conditioning.
type gatedConv struct {
	feature, gate         *nn.Conv
	featureCond, gateCond conditioner
	activate              bool
}

func newGatedConv(s nn.Scope, in, out int, cond Conditioning, activate bool) *gatedConv {
	return &gatedConv{
		feature:     nn.NewConv(s.Sub("feature"), in, out, 3, 1),
		gate:        nn.NewConv(s.Sub("gate"), in, out, 3, 1),
		featureCond: newConditioner(s.Sub("feature_cond"), out, cond),
		gateCond:    newConditioner(s.Sub("gate_cond"), out, cond),
		activate:    activate,
	}
}

func (g *gatedConv) apply(b *nn.Builder, x *G.Node, in Inputs) *G.Node {
	f := g.featureCond.apply(b, g.feature.Apply(b, x), in)
	gt := g.gateCond.apply(b, g.gate.Apply(b, x), in)

	if g.activate {
		f = b.LeakyReLU(f, leak)
	}
	return b.Hadamard(f, b.Sigmoid(gt))
}
