// Package initializers fills freshly created parameters with their starting values.
//
// Every Initializer draws from the *rand.Rand it is given, so that a model built twice
// from the same seed starts from identical weights.
package initializers

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/sharnoff/isodenoise"
)

// Initializer sets the starting values of a parameter. fanIn and fanOut are the number
// of inputs and outputs connected through each weight: for a convolution filter of
// shape (out, in, kh, kw), they are in*kh*kw and out*kh*kw.
type Initializer interface {
	Set(fanIn, fanOut int, ws []float32, rng *rand.Rand)
}

const (
	defaultUniformLower = -1
	defaultUniformUpper = 1
	defaultNormalMean   = 0
	defaultNormalSD     = 1
	defaultVarFactor    = 1
)

// ByKind returns the unscaled initializer for convolution filters named by k.
func ByKind(k isodenoise.InitKind) (Initializer, error) {
	switch k {
	case isodenoise.InitKaimingUniform, "":
		return KaimingUniform(), nil
	case isodenoise.InitHe:
		return He(), nil
	case isodenoise.InitLeCun:
		return LeCun(), nil
	case isodenoise.InitXavier:
		return Xavier(), nil
	}
	return nil, errors.Wrapf(isodenoise.ErrConfig, "unknown initializer %q", k)
}

type random struct {
	RNG
}

// Random returns an Initializer that uses the provided RNG to generate the weights. There is no
// scaling beyond that of the RNG.
func Random(g RNG) random {
	return random{g}
}

// Set is the implementation of Initializer
func (r random) Set(fanIn, fanOut int, ws []float32, rng *rand.Rand) {
	for i := range ws {
		ws[i] = float32(r.Gen(rng))
	}
}

type constant float32

// Zeros returns an Initializer that sets every value to zero. It's used for biases.
func Zeros() constant {
	return constant(0)
}

func (c constant) Set(fanIn, fanOut int, ws []float32, rng *rand.Rand) {
	for i := range ws {
		ws[i] = float32(c)
	}
}

type scaled struct {
	Initializer
	factor float32
}

// Scaled multiplies every value produced by init by factor.
func Scaled(init Initializer, factor float32) scaled {
	return scaled{init, factor}
}

func (s scaled) Set(fanIn, fanOut int, ws []float32, rng *rand.Rand) {
	s.Initializer.Set(fanIn, fanOut, ws, rng)
	for i := range ws {
		ws[i] *= s.factor
	}
}
