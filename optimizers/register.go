// Package optimizers updates parameters from their gradients.
//
// Optimizers keep their per-parameter buffers keyed by parameter name, and expose them
// as a State that can be written into a checkpoint and restored into a fresh Optimizer
// of the same kind.
package optimizers

import (
	"github.com/pkg/errors"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/nn"
	"github.com/sharnoff/isodenoise/penalties"
)

// Optimizer applies gradient steps.
type Optimizer interface {
	Kind() isodenoise.OptimKind

	// Step updates params in place from grads, where grads[i] belongs to params[i]. The
	// gradients may be modified.
	Step(params []*nn.Param, grads [][]float32, lr float64) error

	// State returns a copy of the optimizer's internal buffers.
	State() *State

	// SetState replaces the internal buffers. The State must have come from an Optimizer
	// of the same kind.
	SetState(*State) error
}

// Options are the settings shared by every kind of optimizer. Unused settings are
// ignored.
type Options struct {
	// Momentum of the "momentum" optimizer.
	Momentum float64
	// Penalty, if not nil, is added to every gradient before the update.
	Penalty penalties.Penalty
}

var list = map[isodenoise.OptimKind]func(Options) Optimizer{
	isodenoise.OptimSGD:      func(o Options) Optimizer { return GradientDescent(o) },
	isodenoise.OptimMomentum: func(o Options) Optimizer { return Momentum(o) },
	isodenoise.OptimAdam:     func(o Options) Optimizer { return Adam(o) },
	isodenoise.OptimRMSProp:  func(o Options) Optimizer { return RMSProp(o) },
}

// New returns a fresh Optimizer of the given kind.
func New(kind isodenoise.OptimKind, opts Options) (Optimizer, error) {
	f, ok := list[kind]
	if !ok {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "unknown optimizer %q", kind)
	}
	return f(opts), nil
}

// Validate checks that every optimizer kind has an implementation.
func Validate() error {
	for _, k := range isodenoise.OptimKinds {
		if _, ok := list[k]; !ok {
			return errors.Errorf("no implementation for optimizer %q", k)
		}
	}
	return nil
}

// prepare checks the gradients against the parameters and applies the penalty.
func prepare(params []*nn.Param, grads [][]float32, pen penalties.Penalty) error {
	if len(params) != len(grads) {
		return errors.Errorf("got %d gradients for %d parameters", len(grads), len(params))
	}

	for i, p := range params {
		if len(grads[i]) != len(p.Data) {
			return errors.Errorf("gradient of %q has %d values, expected %d", p.Name, len(grads[i]), len(p.Data))
		}
		if pen != nil {
			pen.Penalize(p.Data, grads[i])
		}
	}
	return nil
}

// opsPerThread is the number of values each goroutine updates at a time. Smaller
// parameters are updated on the calling goroutine.
const opsPerThread = 1 << 14

// slots holds one named buffer per parameter.
type slots map[string][]float32

func (s slots) get(p *nn.Param) []float32 {
	b, ok := s[p.Name]
	if !ok || len(b) != len(p.Data) {
		b = make([]float32, len(p.Data))
		s[p.Name] = b
	}
	return b
}
