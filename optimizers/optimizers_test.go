package optimizers

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/nn"
	"github.com/sharnoff/isodenoise/penalties"
)

func param(vs ...float32) *nn.Param {
	return &nn.Param{Name: "w", Shape: []int{len(vs)}, Data: vs}
}

func TestGradientDescent(t *testing.T) {
	p := param(1, -1)
	require.NoError(t, GradientDescent(Options{}).Step([]*nn.Param{p}, [][]float32{{0.5, -2}}, 0.1))
	assert.InDeltaSlice(t, []float32{0.95, -0.8}, p.Data, 1e-6)
}

func TestPenalty(t *testing.T) {
	p := param(1)
	opt := GradientDescent(Options{Penalty: penalties.L2(0.5)})
	require.NoError(t, opt.Step([]*nn.Param{p}, [][]float32{{0}}, 0.1))
	// grad = 2·0.5·1
	assert.InDeltaSlice(t, []float32{0.9}, p.Data, 1e-6)
}

func TestMomentum(t *testing.T) {
	p := param(0)
	opt := Momentum(Options{Momentum: 0.9})
	for i := 0; i < 2; i++ {
		require.NoError(t, opt.Step([]*nn.Param{p}, [][]float32{{1}}, 0.1))
	}
	// v1 = 1, v2 = 1.9
	assert.InDeltaSlice(t, []float32{-0.29}, p.Data, 1e-6)
}

func TestAdamFirstStep(t *testing.T) {
	// the bias-corrected first step has magnitude lr, whatever the gradient's scale
	p := param(0, 0)
	require.NoError(t, Adam(Options{}).Step([]*nn.Param{p}, [][]float32{{100, -0.01}}, 0.005))
	assert.InDeltaSlice(t, []float32{-0.005, 0.005}, p.Data, 1e-5)
}

func TestRMSPropFirstStep(t *testing.T) {
	p := param(0)
	require.NoError(t, RMSProp(Options{}).Step([]*nn.Param{p}, [][]float32{{2}}, 0.01))
	// sq = 0.01·4, step = 0.01·2/0.2
	assert.InDeltaSlice(t, []float32{-0.1}, p.Data, 1e-5)
}

func TestStepMismatch(t *testing.T) {
	p := param(0, 0)
	for _, kind := range isodenoise.OptimKinds {
		opt, err := New(kind, Options{})
		require.NoError(t, err)
		assert.Error(t, opt.Step([]*nn.Param{p}, [][]float32{{1}}, 0.1))
		assert.Error(t, opt.Step([]*nn.Param{p}, nil, 0.1))
	}
}

// Resuming from a saved state must continue exactly where the original left off.
func TestStateRoundTrip(t *testing.T) {
	grads := [][]float32{{0.3, -0.2}}

	for _, kind := range isodenoise.OptimKinds {
		t.Run(string(kind), func(t *testing.T) {
			opts := Options{Momentum: 0.9}
			a, err := New(kind, opts)
			require.NoError(t, err)

			pa := param(1, 2)
			require.NoError(t, a.Step([]*nn.Param{pa}, [][]float32{{0.1, 0.4}}, 0.01))

			var buf bytes.Buffer
			w := msgp.NewWriter(&buf)
			require.NoError(t, a.State().EncodeMsg(w))
			require.NoError(t, w.Flush())

			var st State
			require.NoError(t, st.DecodeMsg(msgp.NewReader(&buf)))
			assert.Equal(t, string(kind), st.Kind)

			b, err := New(kind, opts)
			require.NoError(t, err)
			require.NoError(t, b.SetState(&st))

			pb := param(pa.Data[0], pa.Data[1])
			g1 := [][]float32{append([]float32(nil), grads[0]...)}
			g2 := [][]float32{append([]float32(nil), grads[0]...)}
			require.NoError(t, a.Step([]*nn.Param{pa}, g1, 0.01))
			require.NoError(t, b.Step([]*nn.Param{pb}, g2, 0.01))
			assert.Equal(t, pa.Data, pb.Data)
		})
	}
}

func TestSetStateWrongKind(t *testing.T) {
	err := Adam(Options{}).SetState(&State{Kind: string(isodenoise.OptimSGD)})
	assert.Equal(t, isodenoise.ErrCheckpoint, errors.Cause(err))
}

func TestNew(t *testing.T) {
	require.NoError(t, Validate())
	_, err := New("lbfgs", Options{})
	assert.Equal(t, isodenoise.ErrConfig, errors.Cause(err))
}

func TestLargeParamsSplitAcrossThreads(t *testing.T) {
	n := 3*opsPerThread + 5
	w, g := make([]float32, n), make([]float32, n)
	for i := range g {
		g[i] = float32(i % 7)
	}

	p := &nn.Param{Name: "big", Shape: []int{n}, Data: w}
	opt := Momentum(Options{Momentum: 0.5})
	require.NoError(t, opt.Step([]*nn.Param{p}, [][]float32{g}, 0.1))

	for i, v := range p.Data {
		require.InDelta(t, -0.1*float64(i%7), float64(v), 1e-6, "index %d", i)
	}
}
