// Package losses provides the content losses that compare a denoised image with its
// clean target, and the adversarial losses used when training against a discriminator.
//
// Every loss is added to a graph through an nn.Builder. Content losses can also be
// computed directly on float32 slices with Cost, which is what the validation metrics
// and the tests use.
package losses

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/nn"
)

// Content is a loss between a network's output and its target. Both have the shape
// (N, C, H, W), and the loss is averaged over every value.
type Content interface {
	Kind() isodenoise.LossKind

	// Build adds the loss to the graph, returning a scalar node.
	Build(b *nn.Builder, out, target *G.Node) *G.Node

	// Cost computes the loss directly. shape is (N, C, H, W).
	Cost(out, target []float32, shape [4]int) float64
}

// Adversarial is a loss for training a discriminator against the generator.
type Adversarial interface {
	Kind() isodenoise.AdversarialKind

	// Discriminator returns the loss of the discriminator, from its scores (N, 1) on
	// generated and real samples.
	Discriminator(b *nn.Builder, fake, real *G.Node) *G.Node

	// Generator returns the adversarial term of the generator's loss, from the
	// discriminator's scores on generated samples.
	Generator(b *nn.Builder, fake *G.Node) *G.Node

	// Clips reports whether the discriminator's weights are clipped after each step.
	Clips() bool
}

var contents = map[isodenoise.LossKind]func() Content{
	isodenoise.LossMSE:       func() Content { return MSE() },
	isodenoise.LossL1:        func() Content { return L1() },
	isodenoise.LossHuber:     func() Content { return Huber(1) },
	isodenoise.LossEdgeAware: func() Content { return EdgeAware(DefaultEdgeWeight) },
}

var adversarials = map[isodenoise.AdversarialKind]func() Adversarial{
	isodenoise.AdversarialWasserstein: func() Adversarial { return Wasserstein() },
	isodenoise.AdversarialHinge:       func() Adversarial { return Hinge() },
}

// New returns the content loss of the given kind.
func New(kind isodenoise.LossKind) (Content, error) {
	f, ok := contents[kind]
	if !ok {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "unknown loss %q", kind)
	}
	return f(), nil
}

// NewAdversarial returns the adversarial loss of the given kind.
func NewAdversarial(kind isodenoise.AdversarialKind) (Adversarial, error) {
	f, ok := adversarials[kind]
	if !ok {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "unknown adversarial loss %q", kind)
	}
	return f(), nil
}

// Validate checks that every loss kind has an implementation.
func Validate() error {
	for _, k := range isodenoise.LossKinds {
		if _, ok := contents[k]; !ok {
			return errors.Errorf("no implementation for loss %q", k)
		}
	}
	for _, k := range isodenoise.AdversarialKinds {
		if _, ok := adversarials[k]; !ok {
			return errors.Errorf("no implementation for adversarial loss %q", k)
		}
	}
	return nil
}
