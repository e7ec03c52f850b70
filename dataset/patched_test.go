package dataset

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharnoff/isodenoise"
)

func TestPatchedIndex(t *testing.T) {
	fs := afero.NewMemMapFs()
	makePatched(t, fs, "/data", 3, 5)

	p, err := NewPatched(fs, "/data", DefaultOptions)
	require.NoError(t, err)

	assert.Equal(t, 15, p.Len())
	assert.Equal(t, 3, p.Originals())
	assert.Equal(t, 5, p.PatchesPerOriginal())

	for i := 0; i < p.Len(); i++ {
		o, patch, err := p.Index(i)
		require.NoError(t, err)
		assert.Equal(t, i/5, o)
		assert.Equal(t, i%5, patch)
		assert.Equal(t, i, o*5+patch)
	}

	loc, err := p.Locate(7)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "1", "clean", "2.png"), loc.CleanPath)
	assert.Equal(t, filepath.Join("/data", "1", "noisy", "2.png"), loc.NoisyPath)
	assert.Equal(t, 200.0, loc.ISO)
	assert.Equal(t, isodenoise.NoClass, loc.Class)
}

func TestPatchedIndexRange(t *testing.T) {
	fs := afero.NewMemMapFs()
	makePatched(t, fs, "/data", 2, 3)

	p, err := NewPatched(fs, "/data", DefaultOptions)
	require.NoError(t, err)

	for _, i := range []int{-1, p.Len(), p.Len() + 1} {
		_, err := p.Locate(i)
		require.Error(t, err, "index %d", i)
		assert.Equal(t, isodenoise.ErrIndexRange, errors.Cause(err))

		_, err = p.Get(i)
		assert.Equal(t, isodenoise.ErrIndexRange, errors.Cause(err))
	}
}

func TestPatchedGet(t *testing.T) {
	fs := afero.NewMemMapFs()
	makePatched(t, fs, "/data", 2, 2)

	p, err := NewPatched(fs, "/data", DefaultOptions)
	require.NoError(t, err)

	s, err := p.Get(3)
	require.NoError(t, err)
	require.NotNil(t, s.Clean)
	require.NotNil(t, s.Noisy)

	assert.Equal(t, 200.0, s.ISO)
	assert.Equal(t, 3, s.Noisy.Channels)
	assert.Equal(t, 4, s.Noisy.Height)
	assert.Equal(t, 4, s.Noisy.Width)
	for _, v := range s.Clean.Pix {
		assert.InDelta(t, 1, v, 1e-6)
	}
	for _, v := range s.Noisy.Pix {
		assert.InDelta(t, -1, v, 1e-6)
	}
}

func TestPatchedGray(t *testing.T) {
	fs := afero.NewMemMapFs()
	makePatched(t, fs, "/data", 1, 1)

	p, err := NewPatched(fs, "/data", Options{Channels: 1})
	require.NoError(t, err)

	s, err := p.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Noisy.Channels)
	assert.Len(t, s.Noisy.Pix, 16)
}

func TestPatchedNonUniform(t *testing.T) {
	fs := afero.NewMemMapFs()
	makePatched(t, fs, "/data", 3, 4)
	require.NoError(t, fs.Remove(filepath.Join("/data", "2", "noisy", "3.png")))

	_, err := NewPatched(fs, "/data", DefaultOptions)
	require.Error(t, err)
	assert.Equal(t, isodenoise.ErrLayout, errors.Cause(err))
}

func TestPatchedMissingRoot(t *testing.T) {
	_, err := NewPatched(afero.NewMemMapFs(), "/nowhere", DefaultOptions)
	require.Error(t, err)
	assert.Equal(t, isodenoise.ErrConfig, errors.Cause(err))
}

func TestPatchedBadISO(t *testing.T) {
	fs := afero.NewMemMapFs()
	makePatched(t, fs, "/data", 2, 1)
	writeFile(t, fs, filepath.Join("/data", InfoFileName), "iso\n100\n0\n")

	_, err := NewPatched(fs, "/data", DefaultOptions)
	require.Error(t, err)
	assert.Equal(t, isodenoise.ErrLayout, errors.Cause(err))
}

func TestPatchedGroups(t *testing.T) {
	fs := afero.NewMemMapFs()
	makePatched(t, fs, "/data", 4, 3)

	p, err := NewPatched(fs, "/data", DefaultOptions)
	require.NoError(t, err)

	require.Equal(t, 4, p.Groups())
	for g := 0; g < p.Groups(); g++ {
		start, n := p.Group(g)
		assert.Equal(t, g*3, start, fmt.Sprint("group ", g))
		assert.Equal(t, 3, n)
	}
}

func TestOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	makePatched(t, fs, "/data", 2, 2)

	ds, err := Open(fs, isodenoise.DatasetPatched, "/data", DefaultOptions)
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Len())

	_, err = Open(fs, isodenoise.DatasetPatched, "", DefaultOptions)
	assert.Equal(t, isodenoise.ErrConfig, errors.Cause(err))

	_, err = Open(fs, isodenoise.DatasetKind("folders"), "/data", DefaultOptions)
	assert.Equal(t, isodenoise.ErrConfig, errors.Cause(err))
}
