package models

import (
	"math/rand"

	G "gorgonia.org/gorgonia"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/nn"
)

const discriminatorLeak = 0.1

// discriminatorLayers are the (channels, stride) of each convolution of the
// SimpleDiscriminator.
var discriminatorLayers = [][2]int{{64, 1}, {64, 2}, {128, 1}, {128, 2}, {256, 1}, {256, 2}}

// SimpleDiscriminator is a stack of strided convolutions, followed by global average
// pooling and a linear layer giving one score per image.
type SimpleDiscriminator struct {
	params *nn.Params
	convs  []*nn.Conv
	fc     *nn.Linear
}

// NewSimpleDiscriminator builds a SimpleDiscriminator, drawing its initial weights from
// rng.
func NewSimpleDiscriminator(opts Options, rng *rand.Rand) *SimpleDiscriminator {
	d := &SimpleDiscriminator{params: nn.NewParams()}
	s := opts.scope(d.params, rng).Sub("disc")

	in := opts.InChannels
	for i, l := range discriminatorLayers {
		d.convs = append(d.convs, nn.NewConv(s.Sub(layerName("conv", i)), in, l[0], 3, l[1]))
		in = l[0]
	}
	d.fc = nn.NewLinear(s.Sub("fc"), in, 1, true)
	return d
}

func (d *SimpleDiscriminator) Kind() isodenoise.DiscriminatorKind {
	return isodenoise.DiscriminatorSimple
}

func (d *SimpleDiscriminator) Params() *nn.Params {
	return d.params
}

func (d *SimpleDiscriminator) Forward(b *nn.Builder, x *G.Node) *G.Node {
	out := x
	for _, c := range d.convs {
		out = b.LeakyReLU(c.Apply(b, out), discriminatorLeak)
	}
	return d.fc.Apply(b, b.GlobalAvgPool(out))
}
