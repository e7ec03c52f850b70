package dataset

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharnoff/isodenoise"
)

func TestManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/sets/a/clean.png", solidImage(3, 2, 2, 1))
	writePNG(t, fs, "/sets/a/noisy.png", solidImage(3, 2, 2, 0))
	writePNG(t, fs, "/sets/b/noisy.png", solidImage(3, 2, 2, 0))
	writeFile(t, fs, "/sets/manifest.csv",
		"iso,noisy_path,clean_path,class\n"+
			"800,a/noisy.png,a/clean.png,street\n"+
			"3200,b/noisy.png,,indoor\n")

	m, err := NewManifest(fs, "/sets/manifest.csv", DefaultOptions)
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())
	assert.Equal(t, 2, m.Classes())
	assert.Equal(t, 2, m.Groups())

	loc, err := m.Locate(0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/sets", "a", "clean.png"), loc.CleanPath)
	assert.Equal(t, 800.0, loc.ISO)
	assert.Equal(t, 1, loc.Class) // indoor < street

	s, err := m.Get(1)
	require.NoError(t, err)
	assert.Nil(t, s.Clean)
	assert.Equal(t, 3200.0, s.ISO)
	assert.Equal(t, 0, s.Class)

	_, err = m.Locate(2)
	assert.Equal(t, isodenoise.ErrIndexRange, errors.Cause(err))
}

func TestManifestNoClass(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/m.csv", "iso,noisy_path,clean_path\n100,x.png,y.png\n")

	m, err := NewManifest(fs, "/m.csv", DefaultOptions)
	require.NoError(t, err)

	loc, err := m.Locate(0)
	require.NoError(t, err)
	assert.Equal(t, isodenoise.NoClass, loc.Class)
	assert.Equal(t, 0, m.Classes())
}

func TestManifestMissingNoisy(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/m.csv", "iso,noisy_path,clean_path\n100,,y.png\n")

	_, err := NewManifest(fs, "/m.csv", DefaultOptions)
	require.Error(t, err)
	assert.Equal(t, isodenoise.ErrLayout, errors.Cause(err))
}

func TestByClass(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/raw/"+TrainingInfoFileName,
		"Class_Info,Name_Info,ISO_Info\n"+
			"building,img_01.png,1600\n"+
			"street,IMG_02.png,400\n")

	b, err := NewByClass(fs, "/raw", DefaultOptions)
	require.NoError(t, err)
	require.Equal(t, 2, b.Len())
	assert.Equal(t, 2, b.Classes())

	loc, err := b.Locate(0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/raw", "Buildings", "Clean", "Img_01.png"), loc.CleanPath)
	assert.Equal(t, filepath.Join("/raw", "Buildings", "Noisy", "Img_01.png"), loc.NoisyPath)
	assert.Equal(t, 0, loc.Class)

	loc, err = b.Locate(1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/raw", "Street", "Noisy", "Img_02.png"), loc.NoisyPath)
	assert.Equal(t, 400.0, loc.ISO)
	assert.Equal(t, 1, loc.Class)
}

func TestClassDir(t *testing.T) {
	assert.Equal(t, "Buildings", ClassDir("building"))
	assert.Equal(t, "Street", ClassDir("street"))
	assert.Equal(t, "Indoor", ClassDir("INDOOR"))
}
