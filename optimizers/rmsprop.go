package optimizers

import (
	"math"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/nn"
	"github.com/sharnoff/isodenoise/utils"
)

const (
	rmspropα = 0.99
	rmspropε = 1e-8
)

type rmsprop struct {
	opts Options
	sq   slots
}

// RMSProp divides each step by a running average of the squared gradient, with decay
// 0.99.
func RMSProp(opts Options) *rmsprop {
	return &rmsprop{opts: opts, sq: make(slots)}
}

func (r *rmsprop) Kind() isodenoise.OptimKind {
	return isodenoise.OptimRMSProp
}

func (r *rmsprop) Step(params []*nn.Param, grads [][]float32, lr float64) error {
	if err := prepare(params, grads, r.opts.Penalty); err != nil {
		return err
	}

	for i, p := range params {
		sq, grad, w := r.sq.get(p), grads[i], p.Data
		utils.MultiThread(0, len(w), func(lo, hi int) {
			for j := lo; j < hi; j++ {
				g := float64(grad[j])
				sq[j] = float32(rmspropα*float64(sq[j]) + (1-rmspropα)*g*g)
				w[j] -= float32(lr * g / (math.Sqrt(float64(sq[j])) + rmspropε))
			}
		}, opsPerThread)
	}
	return nil
}

func (r *rmsprop) State() *State {
	return &State{
		Kind:  string(isodenoise.OptimRMSProp),
		Slots: map[string]map[string][]float32{"square_avg": copySlots(r.sq)},
	}
}

func (r *rmsprop) SetState(s *State) error {
	if err := s.check(isodenoise.OptimRMSProp); err != nil {
		return err
	}
	r.sq = copySlots(s.Slots["square_avg"])
	return nil
}
