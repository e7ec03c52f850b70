// Package models builds the denoising generators and the discriminators they can be
// trained against.
//
// A model owns its parameters (an nn.Params set, initialized once from the run seed)
// and can add itself to any number of graphs through Forward, one per input shape.
package models

import (
	"math/rand"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/initializers"
	"github.com/sharnoff/isodenoise/nn"
)

// Conditioning describes the side information a generator is given with every image.
type Conditioning struct {
	// ISO conditions on the ISO value of each sample, scaled by ISOScale.
	ISO      bool
	ISOScale float64
	// Classes conditions on a one-hot scene class label when greater than zero.
	Classes int
}

// Inputs are the graph nodes a generator is built from.
type Inputs struct {
	// X holds the noisy images, (N, C, H, W).
	X *G.Node
	// ISO is (N, 1), or nil without ISO conditioning.
	ISO *G.Node
	// Class is (N, Classes), or nil without class conditioning.
	Class *G.Node
}

// Generator maps noisy images to denoised ones of the same shape.
type Generator interface {
	Kind() isodenoise.ModelKind
	Params() *nn.Params
	Conditioning() Conditioning
	Forward(b *nn.Builder, in Inputs) *G.Node
}

// Discriminator scores images, with one value per sample: (N, C, H, W) to (N, 1).
type Discriminator interface {
	Kind() isodenoise.DiscriminatorKind
	Params() *nn.Params
	Forward(b *nn.Builder, x *G.Node) *G.Node
}

// Options are the architecture settings shared by every model.
type Options struct {
	InChannels     int
	HiddenChannels int
	HiddenLayers   int
	GrowthChannels int
	Conditioning   Conditioning
	LearnBeta      bool
	Residual       bool
	// Init draws the convolution filters of a new model.
	Init isodenoise.InitKind
}

// OptionsFrom extracts the model settings from a run configuration.
func OptionsFrom(cfg *isodenoise.Config) Options {
	return Options{
		InChannels:     cfg.InChannels,
		HiddenChannels: cfg.HiddenChannels,
		HiddenLayers:   cfg.HiddenLayers,
		GrowthChannels: cfg.GrowthChannels,
		Conditioning: Conditioning{
			ISO:      cfg.ISO,
			ISOScale: cfg.ISOScale,
			Classes:  cfg.NumClasses,
		},
		LearnBeta: cfg.LearnBeta,
		Residual:  cfg.Residual,
		Init:      cfg.Init,
	}
}

func (o Options) validate() error {
	if o.InChannels < 1 || o.HiddenChannels < 1 || o.GrowthChannels < 1 {
		return errors.Wrapf(isodenoise.ErrConfig, "channel counts must be >= 1 (in %d, hidden %d, growth %d)",
			o.InChannels, o.HiddenChannels, o.GrowthChannels)
	} else if o.HiddenLayers < 0 {
		return errors.Wrapf(isodenoise.ErrConfig, "hidden layers must be >= 0 (%d)", o.HiddenLayers)
	} else if o.Conditioning.Classes < 0 {
		return errors.Wrapf(isodenoise.ErrConfig, "number of classes must be >= 0 (%d)", o.Conditioning.Classes)
	} else if o.Conditioning.ISO && !(o.Conditioning.ISOScale > 0) {
		return errors.Wrapf(isodenoise.ErrConfig, "ISO scale must be > 0 (%v)", o.Conditioning.ISOScale)
	} else if _, err := initializers.ByKind(o.Init); err != nil {
		return err
	}
	return nil
}

// scope returns the root Scope for a new model's parameters.
func (o Options) scope(ps *nn.Params, rng *rand.Rand) nn.Scope {
	s := nn.NewScope(ps, rng)
	if init, err := initializers.ByKind(o.Init); err == nil {
		s = s.WithConvInit(init)
	}
	return s
}

var generators = map[isodenoise.ModelKind]func(Options, *rand.Rand) Generator{
	isodenoise.ModelBasic:      func(o Options, rng *rand.Rand) Generator { return NewBasic(o, rng) },
	isodenoise.ModelDenseGated: func(o Options, rng *rand.Rand) Generator { return NewDenseGated(o, rng) },
}

var discriminators = map[isodenoise.DiscriminatorKind]func(Options, *rand.Rand) Discriminator{
	isodenoise.DiscriminatorSimple: func(o Options, rng *rand.Rand) Discriminator { return NewSimpleDiscriminator(o, rng) },
}

// New returns a freshly initialized generator of the given kind.
func New(kind isodenoise.ModelKind, opts Options, rng *rand.Rand) (Generator, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	f, ok := generators[kind]
	if !ok {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "unknown model %q", kind)
	}
	return f(opts, rng), nil
}

// NewDiscriminator returns a freshly initialized discriminator of the given kind, or nil
// for DiscriminatorNone.
func NewDiscriminator(kind isodenoise.DiscriminatorKind, opts Options, rng *rand.Rand) (Discriminator, error) {
	if kind == isodenoise.DiscriminatorNone || kind == "" {
		return nil, nil
	}

	if err := opts.validate(); err != nil {
		return nil, err
	}

	f, ok := discriminators[kind]
	if !ok {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "unknown discriminator %q", kind)
	}
	return f(opts, rng), nil
}

// Validate checks that every model and discriminator kind has a constructor.
func Validate() error {
	for _, k := range isodenoise.ModelKinds {
		if _, ok := generators[k]; !ok {
			return errors.Errorf("no constructor for model %q", k)
		}
	}
	for _, k := range isodenoise.DiscriminatorKinds {
		if _, ok := discriminators[k]; !ok && k != isodenoise.DiscriminatorNone {
			return errors.Errorf("no constructor for discriminator %q", k)
		}
	}
	return nil
}
