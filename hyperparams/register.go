// Package hyperparams provides hyperparameters that change over the course of training,
// such as the learning rate.
package hyperparams

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/sharnoff/isodenoise"
)

// Schedule gives the value of a hyperparameter at each epoch.
type Schedule interface {
	TypeString() string
	Value(epoch int) float64
}

// LearningRate returns the learning rate schedule for a run: constant at base when there
// are no milestones, and otherwise multiplied by gamma at each of the given epochs.
func LearningRate(base float64, milestones []int, gamma float64) (Schedule, error) {
	if !(base > 0) {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "learning rate must be > 0 (%v)", base)
	}

	if len(milestones) == 0 {
		return Constant(base), nil
	}

	if !(gamma > 0) {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "learning rate decay must be > 0 (%v)", gamma)
	}

	ms := append([]int(nil), milestones...)
	sort.Ints(ms)

	s := Step(base)
	v := base
	for i, m := range ms {
		if m <= 0 {
			return nil, errors.Wrapf(isodenoise.ErrConfig, "learning rate milestones must be > 0 (%d)", m)
		} else if i > 0 && m == ms[i-1] {
			return nil, errors.Wrapf(isodenoise.ErrConfig, "repeated learning rate milestone %d", m)
		}

		v *= gamma
		s.Add(m, v)
	}
	return s, nil
}
