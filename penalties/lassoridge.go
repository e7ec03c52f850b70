package penalties

import (
	"math"

	"github.com/sharnoff/isodenoise"
)

// **********************************************
// L1 (Lasso)
// **********************************************

type l1 float64

// λ is a small value close to 0 where λ > 0
func L1(λ float64) *l1 {
	p := l1(λ)
	return &p
}

// λ is a small value close to 0 where λ > 0
func Lasso(λ float64) *l1 {
	return L1(λ)
}

func (p *l1) Kind() isodenoise.PenaltyKind {
	return isodenoise.PenaltyL1
}

func (p *l1) Penalize(weights, grad []float32) {
	λ := float64(*p)
	for i, w := range weights {
		grad[i] += float32(λ * math.Copysign(1, float64(w)))
	}
}

// **********************************************
// L2 (Ridge)
// **********************************************

type l2 float64

// λ is a small value close to 0 where λ > 0
func L2(λ float64) *l2 {
	p := l2(λ)
	return &p
}

// λ is a small value close to 0 where λ > 0
func Ridge(λ float64) *l2 {
	return L2(λ)
}

func (p *l2) Kind() isodenoise.PenaltyKind {
	return isodenoise.PenaltyL2
}

func (p *l2) Penalize(weights, grad []float32) {
	λ := float32(*p)
	for i, w := range weights {
		grad[i] += 2 * λ * w
	}
}
