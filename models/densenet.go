package models

import (
	"fmt"
	"math/rand"

	G "gorgonia.org/gorgonia"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/nn"
)

// fixedBeta scales the residual branch of dense blocks when beta isn't learned.
const fixedBeta = 0.2

func layerName(prefix string, i int) string {
	return fmt.Sprintf("%s%d", prefix, i)
}

// residualScale is the beta of a residual connection: either fixed, or
// sigmoid(linear(iso)) per sample and channel.
type residualScale struct {
	cond *nn.Linear
}

func newResidualScale(s nn.Scope, nc int, opts Options) residualScale {
	var r residualScale
	if opts.LearnBeta && opts.Conditioning.ISO {
		r.cond = nn.NewLinear(s.Sub("beta"), 1, nc, false)
	}
	return r
}

// apply returns branch·beta + x
func (r residualScale) apply(b *nn.Builder, branch, x *G.Node, in Inputs) *G.Node {
	if r.cond != nil && in.ISO != nil {
		beta := b.Sigmoid(r.cond.Apply(b, in.ISO))
		return b.Add(b.MulChannel(branch, beta), x)
	}
	return b.Add(b.Scale(branch, fixedBeta), x)
}

// residualDenseBlock is five densely connected convolutions: each one sees the block's
// input concatenated with the outputs of all the convolutions before it.
type residualDenseBlock struct {
	convs []*nn.Conv
	// last is a gated convolution unless beta is learned, in which case lastConv is used
	last     *gatedConv
	lastConv *nn.Conv
	scale    residualScale
}

func newResidualDenseBlock(s nn.Scope, nc, gc int, opts Options) *residualDenseBlock {
	r := &residualDenseBlock{scale: newResidualScale(s, nc, opts)}
	for i := 0; i < 4; i++ {
		r.convs = append(r.convs, nn.NewConv(s.Sub(layerName("conv", i+1)), nc+i*gc, gc, 3, 1))
	}

	in := nc + 4*gc
	if opts.LearnBeta {
		r.lastConv = nn.NewConv(s.Sub("conv5"), in, nc, 3, 1)
	} else {
		// only ISO conditioning reaches the dense blocks
		cond := Conditioning{ISO: opts.Conditioning.ISO, ISOScale: opts.Conditioning.ISOScale}
		r.last = newGatedConv(s.Sub("conv5"), in, nc, cond, false)
	}
	return r
}

func (r *residualDenseBlock) apply(b *nn.Builder, x *G.Node, in Inputs) *G.Node {
	features := []*G.Node{x}
	for _, c := range r.convs {
		cat := features[0]
		if len(features) > 1 {
			cat = b.Concat(features...)
		}
		features = append(features, b.LeakyReLU(c.Apply(b, cat), leak))
	}

	cat := b.Concat(features...)
	var out *G.Node
	if r.lastConv != nil {
		out = r.lastConv.Apply(b, cat)
	} else {
		out = r.last.apply(b, cat, in)
	}

	return r.scale.apply(b, out, x, in)
}

// rddb is a residual in residual dense block: three residual dense blocks with an outer
// residual connection.
type rddb struct {
	blocks [3]*residualDenseBlock
	scale  residualScale
}

func newRDDB(s nn.Scope, nc, gc int, opts Options) *rddb {
	r := &rddb{scale: newResidualScale(s, nc, opts)}
	for i := range r.blocks {
		r.blocks[i] = newResidualDenseBlock(s.Sub(layerName("rdb", i+1)), nc, gc, opts)
	}
	return r
}

func (r *rddb) apply(b *nn.Builder, x *G.Node, in Inputs) *G.Node {
	out := x
	for _, blk := range r.blocks {
		out = blk.apply(b, out, in)
	}
	return r.scale.apply(b, out, x, in)
}

// DenseGated is a generator built from residual in residual dense blocks, ending each
// dense block in a gated convolution.
type DenseGated struct {
	opts   Options
	params *nn.Params

	input  *nn.Conv
	hidden []*rddb
	output *nn.Conv
}

// NewDenseGated builds a DenseGated generator, drawing its initial weights from rng.
func NewDenseGated(opts Options, rng *rand.Rand) *DenseGated {
	m := &DenseGated{opts: opts, params: nn.NewParams()}
	s := opts.scope(m.params, rng)

	m.input = nn.NewConv(s.Sub("input"), opts.InChannels, opts.HiddenChannels, 3, 1)
	for i := 0; i < opts.HiddenLayers; i++ {
		m.hidden = append(m.hidden, newRDDB(s.Sub(layerName("rddb", i)), opts.HiddenChannels, opts.GrowthChannels, opts))
	}
	m.output = nn.NewConv(s.Sub("output"), opts.HiddenChannels, opts.InChannels, 3, 1)
	return m
}

func (m *DenseGated) Kind() isodenoise.ModelKind {
	return isodenoise.ModelDenseGated
}

func (m *DenseGated) Params() *nn.Params {
	return m.params
}

func (m *DenseGated) Conditioning() Conditioning {
	return m.opts.Conditioning
}

func (m *DenseGated) Forward(b *nn.Builder, in Inputs) *G.Node {
	out := m.input.Apply(b, in.X)
	for _, l := range m.hidden {
		out = l.apply(b, out, in)
	}
	out = m.output.Apply(b, out)

	if m.opts.Residual {
		out = b.Add(out, in.X)
	}
	return out
}
