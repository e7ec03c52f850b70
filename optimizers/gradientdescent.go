package optimizers

import (
	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/nn"
	"github.com/sharnoff/isodenoise/utils"
)

type gradientdescent struct {
	opts Options
}

// GradientDescent returns plain stochastic gradient descent: w -= lr·g
func GradientDescent(opts Options) *gradientdescent {
	return &gradientdescent{opts}
}

func (g *gradientdescent) Kind() isodenoise.OptimKind {
	return isodenoise.OptimSGD
}

func (g *gradientdescent) Step(params []*nn.Param, grads [][]float32, lr float64) error {
	if err := prepare(params, grads, g.opts.Penalty); err != nil {
		return err
	}

	η := float32(lr)
	for i, p := range params {
		grad, w := grads[i], p.Data
		utils.MultiThread(0, len(w), func(lo, hi int) {
			for j := lo; j < hi; j++ {
				w[j] -= η * grad[j]
			}
		}, opsPerThread)
	}
	return nil
}

func (g *gradientdescent) State() *State {
	return &State{Kind: string(isodenoise.OptimSGD)}
}

func (g *gradientdescent) SetState(s *State) error {
	return s.check(isodenoise.OptimSGD)
}

type momentum struct {
	opts Options
	vel  slots
}

// Momentum returns gradient descent with momentum μ: v = μv + g; w -= lr·v
func Momentum(opts Options) *momentum {
	return &momentum{opts: opts, vel: make(slots)}
}

func (m *momentum) Kind() isodenoise.OptimKind {
	return isodenoise.OptimMomentum
}

func (m *momentum) Step(params []*nn.Param, grads [][]float32, lr float64) error {
	if err := prepare(params, grads, m.opts.Penalty); err != nil {
		return err
	}

	η, μ := float32(lr), float32(m.opts.Momentum)
	for i, p := range params {
		v, grad, w := m.vel.get(p), grads[i], p.Data
		utils.MultiThread(0, len(w), func(lo, hi int) {
			for j := lo; j < hi; j++ {
				v[j] = μ*v[j] + grad[j]
				w[j] -= η * v[j]
			}
		}, opsPerThread)
	}
	return nil
}

func (m *momentum) State() *State {
	return &State{
		Kind:  string(isodenoise.OptimMomentum),
		Slots: map[string]map[string][]float32{"velocity": copySlots(m.vel)},
	}
}

func (m *momentum) SetState(s *State) error {
	if err := s.check(isodenoise.OptimMomentum); err != nil {
		return err
	}
	m.vel = copySlots(s.Slots["velocity"])
	return nil
}
