package penalties

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharnoff/isodenoise"
)

func TestPenalize(t *testing.T) {
	ws := []float32{2, -0.5}

	cases := []struct {
		p    Penalty
		want []float32
	}{
		{L1(0.1), []float32{0.1, -0.1}},
		{L2(0.1), []float32{0.4, -0.1}},
		{ElasticNet(1, 0.1), []float32{0.1, -0.1}},
		{ElasticNet(0, 0.1), []float32{0.4, -0.1}},
		{ElasticNet(0.5, 0.1), []float32{0.25, -0.1}},
	}

	for _, c := range cases {
		grad := make([]float32, 2)
		c.p.Penalize(ws, grad)
		assert.InDeltaSlice(t, c.want, grad, 1e-6, "%s", c.p.Kind())
	}
}

func TestNew(t *testing.T) {
	p, err := New(isodenoise.PenaltyNone, 0.1, 0)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = New(isodenoise.PenaltyElasticNet, 0.1, 0.3)
	require.NoError(t, err)
	assert.Equal(t, isodenoise.PenaltyElasticNet, p.Kind())

	_, err = New(isodenoise.PenaltyElasticNet, 0.1, 2)
	assert.Equal(t, isodenoise.ErrConfig, errors.Cause(err))

	_, err = New("dropout", 0.1, 0)
	assert.Equal(t, isodenoise.ErrConfig, errors.Cause(err))
}
