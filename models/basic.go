package models

import (
	"math/rand"

	G "gorgonia.org/gorgonia"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/nn"
)

// Basic is a stack of gated convolutions with a uniform number of channels throughout
// the hidden layers.
type Basic struct {
	opts   Options
	params *nn.Params

	input  *nn.Conv
	hidden []*gatedConv
	output *nn.Conv
}

// NewBasic builds a Basic generator, drawing its initial weights from rng.
func NewBasic(opts Options, rng *rand.Rand) *Basic {
	m := &Basic{opts: opts, params: nn.NewParams()}
	s := opts.scope(m.params, rng)

	m.input = nn.NewConv(s.Sub("input"), opts.InChannels, opts.HiddenChannels, 3, 1)
	for i := 0; i < opts.HiddenLayers; i++ {
		m.hidden = append(m.hidden, newGatedConv(s.Sub(layerName("hidden", i)), opts.HiddenChannels,
			opts.HiddenChannels, opts.Conditioning, true))
	}
	m.output = nn.NewConv(s.Sub("output"), opts.HiddenChannels, opts.InChannels, 3, 1)
	return m
}

func (m *Basic) Kind() isodenoise.ModelKind {
	return isodenoise.ModelBasic
}

func (m *Basic) Params() *nn.Params {
	return m.params
}

func (m *Basic) Conditioning() Conditioning {
	return m.opts.Conditioning
}

func (m *Basic) Forward(b *nn.Builder, in Inputs) *G.Node {
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
