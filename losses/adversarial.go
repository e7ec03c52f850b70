package losses

import (
	G "gorgonia.org/gorgonia"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/nn"
)

// generatorTerm is -mean D(fake), for both adversarial losses.
func generatorTerm(b *nn.Builder, fake *G.Node) *G.Node {
	return b.Scale(b.Mean(fake), -1)
}

type wasserstein struct{}

// Wasserstein returns the Wasserstein (earth mover's distance) loss: the discriminator
// minimizes mean D(fake) - mean D(real). Its weights are clipped after each step.
func Wasserstein() wasserstein {
	return wasserstein{}
}

func (wasserstein) Kind() isodenoise.AdversarialKind {
	return isodenoise.AdversarialWasserstein
}

func (wasserstein) Discriminator(b *nn.Builder, fake, real *G.Node) *G.Node {
	return b.Sub(b.Mean(fake), b.Mean(real))
}

func (wasserstein) Generator(b *nn.Builder, fake *G.Node) *G.Node {
	return generatorTerm(b, fake)
}

func (wasserstein) Clips() bool {
	return true
}

type hinge struct{}

// Hinge returns the hinge loss: the discriminator minimizes
// mean(relu(1 - D(real))) + mean(relu(1 + D(fake))).
func Hinge() hinge {
	return hinge{}
}

func (hinge) Kind() isodenoise.AdversarialKind {
	return isodenoise.AdversarialHinge
}

func (hinge) Discriminator(b *nn.Builder, fake, real *G.Node) *G.Node {
	r := b.Mean(b.ReLU(b.AddScalar(b.Scale(real, -1), 1)))
	f := b.Mean(b.ReLU(b.AddScalar(fake, 1)))
	return b.Add(r, f)
}

func (hinge) Generator(b *nn.Builder, fake *G.Node) *G.Node {
	return generatorTerm(b, fake)
}

func (hinge) Clips() bool {
	return false
}
