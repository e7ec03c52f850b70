// Package penalties regularizes weights by adding the derivative of a penalty on their
// magnitude to their gradients, before the optimizer applies them.
package penalties

import (
	"github.com/pkg/errors"

	"github.com/sharnoff/isodenoise"
)

// Penalty adds the derivative of a weight penalty to grad, given the current weights.
type Penalty interface {
	Kind() isodenoise.PenaltyKind
	Penalize(weights, grad []float32)
}

// New returns the Penalty of the given kind. λ is its strength and α the share of L1 in
// an elastic net. The "none" kind returns a nil Penalty.
func New(kind isodenoise.PenaltyKind, λ, α float64) (Penalty, error) {
	switch kind {
	case isodenoise.PenaltyNone:
		return nil, nil
	case isodenoise.PenaltyL1:
		return L1(λ), nil
	case isodenoise.PenaltyL2:
		return L2(λ), nil
	case isodenoise.PenaltyElasticNet:
		if α < 0 || α > 1 {
			return nil, errors.Wrapf(isodenoise.ErrConfig, "elastic net ratio must be in [0, 1] (%v)", α)
		}
		return ElasticNet(α, λ), nil
	default:
		return nil, errors.Wrapf(isodenoise.ErrConfig, "unknown penalty %q", kind)
	}
}
