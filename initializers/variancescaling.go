package initializers

import (
	"math"
	"math/rand"
)

type varianceScaling struct {
	// either: "in", "out", "avg"
	mode   string
	factor float64
	// draw from a uniform distribution instead of a truncated normal one
	uniform bool
}

const defaultVarianceMode string = "avg"

// VarianceScaling returns the variance scaling initializer, which has 3 modes and a user-defined
// scaling factor. The three modes can be set by In, Out, and Avg. It defaults to Avg.
func VarianceScaling() *varianceScaling {
	return &varianceScaling{mode: defaultVarianceMode, factor: defaultVarFactor}
}

// Factor sets the scaling factor to be used for the Initializer.
func (v *varianceScaling) Factor(f float64) *varianceScaling {
	v.factor = f
	return v
}

// In sets the scaling to be based on the number of inputs to the weight.
func (v *varianceScaling) In() *varianceScaling {
	v.mode = "in"
	return v
}

// Out sets the scaling to be based on the number of outputs of the weight.
func (v *varianceScaling) Out() *varianceScaling {
	v.mode = "out"
	return v
}

// Avg sets the scaling to be based on the average of the numbers of inputs and outputs.
func (v *varianceScaling) Avg() *varianceScaling {
	v.mode = "avg"
	return v
}

// Uniform makes the Initializer draw from a uniform distribution with the same variance,
// i.e. within ±sqrt(3·factor/scale).
func (v *varianceScaling) Uniform() *varianceScaling {
	v.uniform = true
	return v
}

// Set is the implementation of Initializer
func (v *varianceScaling) Set(fanIn, fanOut int, ws []float32, rng *rand.Rand) {
	var scale float64
	if v.mode == "in" {
		scale = float64(fanIn)
	} else if v.mode == "out" {
		scale = float64(fanOut)
	} else { // must be "avg"
		scale = float64(fanIn+fanOut) / 2
	}

	if scale < 1 {
		scale = 1
	}

	var gen RNG
	if v.uniform {
		limit := math.Sqrt(3 * v.factor / scale)
		gen = Uniform().Bounds(-limit, limit)
	} else {
		gen = TruncNormal().SD(math.Sqrt(v.factor / scale))
	}

	for i := range ws {
		ws[i] = float32(gen.Gen(rng))
	}
}
