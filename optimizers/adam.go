package optimizers

import (
	"math"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/nn"
	"github.com/sharnoff/isodenoise/utils"
)

const (
	adamβ1 = 0.9
	adamβ2 = 0.999
	adamε  = 1e-8
)

type adam struct {
	opts  Options
	steps int64
	m, v  slots
}

// Adam returns the Adam optimizer, with β1 = 0.9, β2 = 0.999 and bias-corrected moment
// estimates.
func Adam(opts Options) *adam {
	return &adam{opts: opts, m: make(slots), v: make(slots)}
}

func (a *adam) Kind() isodenoise.OptimKind {
	return isodenoise.OptimAdam
}

func (a *adam) Step(params []*nn.Param, grads [][]float32, lr float64) error {
	if err := prepare(params, grads, a.opts.Penalty); err != nil {
		return err
	}

	a.steps++
	c1 := 1 - math.Pow(adamβ1, float64(a.steps))
	c2 := 1 - math.Pow(adamβ2, float64(a.steps))

	for i, p := range params {
		m, v, grad, w := a.m.get(p), a.v.get(p), grads[i], p.Data
		utils.MultiThread(0, len(w), func(lo, hi int) {
			for j := lo; j < hi; j++ {
				g := float64(grad[j])
				m[j] = float32(adamβ1*float64(m[j]) + (1-adamβ1)*g)
				v[j] = float32(adamβ2*float64(v[j]) + (1-adamβ2)*g*g)

				mHat := float64(m[j]) / c1
				vHat := float64(v[j]) / c2
				w[j] -= float32(lr * mHat / (math.Sqrt(vHat) + adamε))
			}
		}, opsPerThread)
	}
	return nil
}

func (a *adam) State() *State {
	return &State{
		Kind:  string(isodenoise.OptimAdam),
		Steps: a.steps,
		Slots: map[string]map[string][]float32{
			"m": copySlots(a.m),
			"v": copySlots(a.v),
		},
	}
}

func (a *adam) SetState(s *State) error {
	if err := s.check(isodenoise.OptimAdam); err != nil {
		return err
	}
	a.steps = s.Steps
	a.m = copySlots(s.Slots["m"])
	a.v = copySlots(s.Slots["v"])
	return nil
}
