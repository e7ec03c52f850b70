package penalties

import (
	"math"

	"github.com/sharnoff/isodenoise"
)

type elasticNet struct {
	α float64
	λ float64
}

// λ is a small value close to 0 where λ > 0,
// α is a value that controls the ratio between L1 and L2
// Regularization, where 0 ≤ a ≤ 1. a = 1 is functionally identical to L1 and a = 0 is equivalent to
// L2.
func ElasticNet(α, λ float64) *elasticNet {
	return &elasticNet{α, λ}
}

func (p *elasticNet) Kind() isodenoise.PenaltyKind {
	return isodenoise.PenaltyElasticNet
}

func (p *elasticNet) Penalize(weights, grad []float32) {
	for i, w := range weights {
		wf := float64(w)
		grad[i] += float32(p.λ * ((1-p.α)*2*wf + p.α*math.Copysign(1, wf)))
	}
}
