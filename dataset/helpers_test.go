package dataset

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/sharnoff/isodenoise"
)

// solidImage returns a c×h×w image whose every value is v.
func solidImage(c, h, w int, v float32) *isodenoise.Image {
	im := isodenoise.NewImage(c, h, w)
	for i := range im.Pix {
		im.Pix[i] = v
	}
	return im
}

func writePNG(t *testing.T, fs afero.Fs, path string, im *isodenoise.Image) {
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, WriteImage(fs, path, im))
}

func writeFile(t *testing.T, fs afero.Fs, path, contents string) {
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(contents), 0644))
}

// makePatched writes a patched dataset with the given number of originals and patches per
// original. Original o has ISO 100*(o+1).
func makePatched(t *testing.T, fs afero.Fs, root string, originals, patches int) {
	rows := []string{"iso"}
	for o := 0; o < originals; o++ {
		rows = append(rows, fmt.Sprint(100*(o+1)))
		for p := 0; p < patches; p++ {
			name := fmt.Sprintf("%d.png", p)
			writePNG(t, fs, filepath.Join(root, fmt.Sprint(o), "clean", name), solidImage(3, 4, 4, 1))
			writePNG(t, fs, filepath.Join(root, fmt.Sprint(o), "noisy", name), solidImage(3, 4, 4, -1))
		}
	}
	writeFile(t, fs, filepath.Join(root, InfoFileName), strings.Join(rows, "\n")+"\n")
}
