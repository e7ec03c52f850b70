package initializers

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharnoff/isodenoise"
)

func TestKaimingUniformBounds(t *testing.T) {
	ws := make([]float32, 4096)
	KaimingUniform().Set(27, 9, ws, rand.New(rand.NewSource(1)))

	limit := float32(math.Sqrt(6.0 / 27))
	var nonzero int
	for _, w := range ws {
		require.True(t, w >= -limit && w <= limit, "%v outside ±%v", w, limit)
		if w != 0 {
			nonzero++
		}
	}
	assert.True(t, nonzero > len(ws)/2)
}

func TestScaled(t *testing.T) {
	a := make([]float32, 64)
	b := make([]float32, 64)
	KaimingUniform().Set(9, 9, a, rand.New(rand.NewSource(5)))
	Scaled(KaimingUniform(), 0.1).Set(9, 9, b, rand.New(rand.NewSource(5)))

	for i := range a {
		assert.InDelta(t, a[i]*0.1, b[i], 1e-7)
	}
}

func TestDeterministic(t *testing.T) {
	for _, init := range []Initializer{He(), Xavier(), LeCun(), Random(Normal()), Random(Uniform())} {
		a := make([]float32, 32)
		b := make([]float32, 32)
		init.Set(8, 8, a, rand.New(rand.NewSource(9)))
		init.Set(8, 8, b, rand.New(rand.NewSource(9)))
		assert.Equal(t, a, b)
	}
}

func TestTruncNormal(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	g := TruncNormal().SD(0.5).Trunc(1)
	for i := 0; i < 1000; i++ {
		v := g.Gen(rng)
		require.True(t, v >= -0.5 && v <= 0.5)
	}
}

func TestZeros(t *testing.T) {
	ws := []float32{1, 2, 3}
	Zeros().Set(1, 1, ws, nil)
	assert.Equal(t, []float32{0, 0, 0}, ws)
}

func TestVarianceScalingTruncated(t *testing.T) {
	// scale 4, so the standard deviation is 0.5 and nothing lies beyond ±1
	ws := make([]float32, 4096)
	VarianceScaling().In().Set(4, 4, ws, rand.New(rand.NewSource(4)))
	for _, w := range ws {
		require.True(t, w >= -1 && w <= 1, "%v beyond 2 standard deviations", w)
	}
}

func TestByKind(t *testing.T) {
	for _, k := range isodenoise.InitKinds {
		init, err := ByKind(k)
		require.NoError(t, err, k)

		a := make([]float32, 16)
		init.Set(9, 9, a, rand.New(rand.NewSource(1)))
		assert.NotEqual(t, make([]float32, 16), a, k)
	}

	a := make([]float32, 64)
	b := make([]float32, 64)
	he, _ := ByKind(isodenoise.InitHe)
	xavier, _ := ByKind(isodenoise.InitXavier)
	he.Set(9, 90, a, rand.New(rand.NewSource(1)))
	xavier.Set(9, 90, b, rand.New(rand.NewSource(1)))
	assert.NotEqual(t, a, b)

	_, err := ByKind("orthogonal")
	assert.Equal(t, isodenoise.ErrConfig, errors.Cause(err))
}
