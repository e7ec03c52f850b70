package trainer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/checkpoint"
	"github.com/sharnoff/isodenoise/dataset"
	"github.com/sharnoff/isodenoise/history"
	"github.com/sharnoff/isodenoise/models"
)

var nop = zap.NewNop().Sugar()

func noiseImage(rng *rand.Rand, c, h, w int) *isodenoise.Image {
	im := isodenoise.NewImage(c, h, w)
	for i := range im.Pix {
		im.Pix[i] = float32(rng.Float64()*2 - 1)
	}
	return im
}

func writePNG(t *testing.T, fs afero.Fs, path string, im *isodenoise.Image) {
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, dataset.WriteImage(fs, path, im))
}

// makePatched writes a patched dataset of 4×4 RGB patches.
func makePatched(t *testing.T, fs afero.Fs, root string, originals, patches int) {
	rng := rand.New(rand.NewSource(3))
	rows := []string{"iso"}
	for o := 0; o < originals; o++ {
		rows = append(rows, fmt.Sprint(400*(o+1)))
		for p := 0; p < patches; p++ {
			name := fmt.Sprintf("%d.png", p)
			writePNG(t, fs, filepath.Join(root, fmt.Sprint(o), "clean", name), noiseImage(rng, 3, 4, 4))
			writePNG(t, fs, filepath.Join(root, fmt.Sprint(o), "noisy", name), noiseImage(rng, 3, 4, 4))
		}
	}
	require.NoError(t, afero.WriteFile(fs, filepath.Join(root, dataset.InfoFileName),
		[]byte(strings.Join(rows, "\n")+"\n"), 0644))
}

func testConfig() isodenoise.Config {
	cfg := isodenoise.DefaultConfig()
	cfg.Seed = 1
	cfg.SaveDir = "/save"
	cfg.Workers = 0
	cfg.Epochs = 2
	cfg.TrainBatchSize = 2
	cfg.TestBatchSize = 2
	cfg.LR = 1e-3
	cfg.HiddenChannels = 2
	cfg.HiddenLayers = 1
	cfg.Dataset = "/data"
	cfg.TestRatio = 0.5
	return cfg
}

func setupFS(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	makePatched(t, fs, "/data", 4, 2)
	return fs
}

func readHistory(t *testing.T, fs afero.Fs) []history.Record {
	h, err := history.Open(fs, "/save", math.MaxInt32)
	require.NoError(t, err)
	return h.Records()
}

func TestTrainWritesArtifacts(t *testing.T) {
	fs := setupFS(t)
	require.NoError(t, Train(context.Background(), fs, nop, testConfig(), Options{}))

	for _, name := range []string{
		"checkpoint_000.pth.tar",
		"checkpoint_001.pth.tar",
		checkpoint.BestFileName,
		isodenoise.ConfigFileName,
		history.FileName,
		history.PlotFileName,
	} {
		exists, err := afero.Exists(fs, filepath.Join("/save", name))
		require.NoError(t, err)
		assert.True(t, exists, name)
	}

	records := readHistory(t, fs)
	require.Len(t, records, 2)
	for i, r := range records {
		assert.Equal(t, i, r.Epoch)
		assert.False(t, math.IsNaN(r.TrainLoss))
		assert.Equal(t, 1e-3, r.LR)
	}
	assert.True(t, records[1].BestLoss <= records[0].BestLoss)

	saved, err := isodenoise.LoadConfig(fs, "/save/denoising.config")
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Seed)
}

// A run resumed from the checkpoint of epoch e trains epoch e+1 next, and the best
// checkpoint holds the lowest validation loss over both runs.
func TestResumeContinues(t *testing.T) {
	fs := setupFS(t)
	cfg := testConfig()
	require.NoError(t, Train(context.Background(), fs, nop, cfg, Options{}))

	cfg.Epochs = 4
	cfg.Seed = 99
	require.NoError(t, Train(context.Background(), fs, nop, cfg,
		Options{Resume: "/save/checkpoint_001.pth.tar"}))

	last, err := checkpoint.Load(fs, "/save/checkpoint_003.pth.tar")
	require.NoError(t, err)
	assert.Equal(t, 3, last.Epoch)
	assert.Equal(t, int64(4*2), last.Iteration, "two batches per epoch")

	records := readHistory(t, fs)
	require.Len(t, records, 4)
	min := math.Inf(1)
	for i, r := range records {
		assert.Equal(t, i, r.Epoch)
		min = math.Min(min, r.ValLoss)
	}

	best, err := checkpoint.Load(fs, "/save/"+checkpoint.BestFileName)
	require.NoError(t, err)
	assert.InDelta(t, min, best.BestLoss, 1e-9)
	assert.InDelta(t, min, last.BestLoss, 1e-9)

	// the split comes from the first run's configuration, not the new seed
	saved, err := isodenoise.LoadConfig(fs, "/save/denoising.config")
	require.NoError(t, err)
	require.NotNil(t, saved.SplitSeed)
	assert.Equal(t, int64(1), *saved.SplitSeed)
}

func TestRestore(t *testing.T) {
	cfg := testConfig()
	tr, err := New(&cfg, afero.NewMemMapFs(), nop, false)
	require.NoError(t, err)
	defer tr.Close()

	c := tr.snapshot(12)
	c.BestLoss = 0.05
	c.Model[0].Data[0] += 1
	want := c.Model[0].Data[0]

	other, err := New(&cfg, afero.NewMemMapFs(), nop, false)
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, other.Restore(c))
	assert.Equal(t, 13, other.Epoch())
	assert.Equal(t, 0.05, other.BestLoss())
	assert.Equal(t, want, other.Generator().Params().List()[0].Data[0])

	// a checkpoint of another architecture doesn't fit
	cfg.HiddenChannels = 3
	wider, err := New(&cfg, afero.NewMemMapFs(), nop, false)
	require.NoError(t, err)
	defer wider.Close()
	assert.Equal(t, isodenoise.ErrCheckpoint, errors.Cause(wider.Restore(c)))
}

func TestRunCancelled(t *testing.T) {
	fs := setupFS(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Train(ctx, fs, nop, testConfig(), Options{})
	assert.Equal(t, context.Canceled, err)

	exists, err := afero.Exists(fs, "/save/checkpoint_000.pth.tar")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEvaluate(t *testing.T) {
	fs := setupFS(t)
	cfg := testConfig()
	cfg.Epochs = 1

	_, err := Evaluate(context.Background(), fs, nop, cfg, Options{})
	assert.Equal(t, isodenoise.ErrConfig, errors.Cause(err))

	require.NoError(t, Train(context.Background(), fs, nop, cfg, Options{}))

	loss, err := Evaluate(context.Background(), fs, nop, cfg, Options{Resume: "/save", Progress: true})
	require.NoError(t, err)

	records := readHistory(t, fs)
	require.Len(t, records, 1)
	assert.InDelta(t, records[0].ValLoss, loss, 1e-6)
}

func TestTrainEpochStats(t *testing.T) {
	fs := setupFS(t)
	cfg := testConfig()
	cfg.Loss = isodenoise.LossL1

	tr, err := New(&cfg, fs, nop, false)
	require.NoError(t, err)
	defer tr.Close()

	train, _, err := splitLoaders(fs, nop, tr.cfg)
	require.NoError(t, err)

	st, err := tr.TrainEpoch(context.Background(), train)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Batches)
	assert.Equal(t, 4, st.Samples)
	assert.True(t, st.Min <= st.Mean && st.Mean <= st.Max)
	assert.InDelta(t, st.Mean, st.Loss, 1e-9, "equal batch sizes")
	assert.Equal(t, int64(2), tr.iteration)
}

func TestAdversarialClipsDiscriminator(t *testing.T) {
	fs := setupFS(t)
	cfg := testConfig()
	cfg.Discriminator = isodenoise.DiscriminatorSimple
	cfg.AdvLoss = isodenoise.AdversarialWasserstein
	cfg.DClip = 0.01

	tr, err := New(&cfg, fs, nop, false)
	require.NoError(t, err)
	defer tr.Close()

	train, _, err := splitLoaders(fs, nop, tr.cfg)
	require.NoError(t, err)

	_, err = tr.TrainEpoch(context.Background(), train)
	require.NoError(t, err)

	for _, p := range tr.disc.Params().List() {
		for _, v := range p.Data {
			require.True(t, v >= -0.01 && v <= 0.01, "%s = %v", p.Name, v)
		}
	}

	c := tr.snapshot(0)
	require.NotNil(t, c.Discriminator)
	require.NotNil(t, c.DOptimizer)
}

// Three test samples are written as Test_Image_1..3.png in loader order. The inputs have
// different sizes so that each output can be matched to its input.
func TestInferWritesImagesInOrder(t *testing.T) {
	fs := setupFS(t)
	cfg := testConfig()
	cfg.Epochs = 1
	require.NoError(t, Train(context.Background(), fs, nop, cfg, Options{}))

	rng := rand.New(rand.NewSource(5))
	sizes := []int{2, 3, 5}
	rows := []string{"iso,noisy_path,clean_path"}
	for i, s := range sizes {
		name := fmt.Sprintf("in%d.png", i)
		writePNG(t, fs, filepath.Join("/infer", name), noiseImage(rng, 3, s, s))
		rows = append(rows, fmt.Sprintf("800,%s,", name))
	}
	require.NoError(t, afero.WriteFile(fs, "/infer/test.csv", []byte(strings.Join(rows, "\n")+"\n"), 0644))

	cfg.DatasetKind = isodenoise.DatasetManifest
	cfg.TestBatchSize = 1
	opts := Options{Resume: "/save", TestData: "/infer/test.csv"}

	paths, err := Infer(context.Background(), fs, nop, cfg, opts)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	for i, s := range sizes {
		assert.Equal(t, filepath.Join("/save/model_best", ImageName(i+1)), paths[i])
		im, err := dataset.ReadImage(fs, paths[i], 3)
		require.NoError(t, err)
		assert.Equal(t, s, im.Height)
		assert.Equal(t, s, im.Width)
	}

	_, err = Infer(context.Background(), fs, nop, cfg, opts)
	assert.Equal(t, isodenoise.ErrConfig, errors.Cause(err), "results directory exists")

	_, err = Infer(context.Background(), fs, nop, cfg, Options{TestData: "/infer/test.csv"})
	assert.Equal(t, isodenoise.ErrConfig, errors.Cause(err))
}

func TestDefaultResultsDir(t *testing.T) {
	assert.Equal(t, "/runs/a/model_best", DefaultResultsDir("/runs/a/model_best.pth.tar"))
	assert.Equal(t, "/runs/a/checkpoint_007", DefaultResultsDir("/runs/a/checkpoint_007.pth.tar"))
	assert.Equal(t, "ckpt", DefaultResultsDir("ckpt"))
}

func TestCheckFinite(t *testing.T) {
	assert.NoError(t, checkFinite(0.5))
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.Equal(t, isodenoise.ErrNumeric, errors.Cause(checkFinite(v)))
	}
}

func firstBatch(t *testing.T, l *dataset.Loader) *isodenoise.Batch {
	e := l.Epoch(context.Background())
	defer e.Close()

	batch, err := e.Next()
	require.NoError(t, err)
	return batch
}

// The generator output read from the training graph is what the discriminator is trained
// on, so it must match the output of the inference graph for the same weights.
func TestTrainOutputMatchesInference(t *testing.T) {
	for _, disc := range []isodenoise.DiscriminatorKind{isodenoise.DiscriminatorNone, isodenoise.DiscriminatorSimple} {
		t.Run(string(disc), func(t *testing.T) {
			fs := setupFS(t)
			cfg := testConfig()
			cfg.Discriminator = disc

			tr, err := New(&cfg, fs, nop, false)
			require.NoError(t, err)
			defer tr.Close()

			train, _, err := splitLoaders(fs, nop, tr.cfg)
			require.NoError(t, err)
			batch := firstBatch(t, train)

			feed, err := models.Feed(tr.gen.Conditioning(), batch)
			require.NoError(t, err)
			feed[inputTarget] = batch.Clean

			tm, err := tr.machine(batch, tagTrain)
			require.NoError(t, err)
			trained, err := tm.Run(feed)
			require.NoError(t, err)

			im, err := tr.machine(batch, tagInfer)
			require.NoError(t, err)
			inferred, err := im.Run(feed)
			require.NoError(t, err)

			require.Len(t, trained.Outputs[outputOut], len(batch.Noisy))
			assert.InDeltaSlice(t, inferred.Outputs[outputOut], trained.Outputs[outputOut], 1e-5)
		})
	}
}

func TestEdgeAwareLossTrains(t *testing.T) {
	fs := setupFS(t)
	cfg := testConfig()
	cfg.Loss = isodenoise.LossEdgeAware

	tr, err := New(&cfg, fs, nop, false)
	require.NoError(t, err)
	defer tr.Close()

	train, val, err := splitLoaders(fs, nop, tr.cfg)
	require.NoError(t, err)

	st, err := tr.TrainEpoch(context.Background(), train)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(st.Loss))

	loss, err := tr.Validate(context.Background(), val)
	require.NoError(t, err)
	assert.True(t, loss > 0)
}

func TestHingeDiscriminatorTrains(t *testing.T) {
	fs := setupFS(t)
	cfg := testConfig()
	cfg.Discriminator = isodenoise.DiscriminatorSimple
	cfg.AdvLoss = isodenoise.AdversarialHinge

	tr, err := New(&cfg, fs, nop, false)
	require.NoError(t, err)
	defer tr.Close()

	before := tr.disc.Params().Snapshot()

	train, _, err := splitLoaders(fs, nop, tr.cfg)
	require.NoError(t, err)

	st, err := tr.TrainEpoch(context.Background(), train)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Batches)
	assert.NotEqual(t, before, tr.disc.Params().Snapshot())
}

// The filter initializer only changes the starting weights.
func TestInitKind(t *testing.T) {
	fs := setupFS(t)
	weights := make(map[isodenoise.InitKind][]float32)

	for _, k := range []isodenoise.InitKind{isodenoise.InitKaimingUniform, isodenoise.InitXavier} {
		cfg := testConfig()
		cfg.Init = k

		tr, err := New(&cfg, fs, nop, false)
		require.NoError(t, err)
		weights[k] = append([]float32(nil), tr.gen.Params().List()[0].Data...)
		tr.Close()
	}

	assert.NotEqual(t, weights[isodenoise.InitKaimingUniform], weights[isodenoise.InitXavier])

	cfg := testConfig()
	cfg.Init = "orthogonal"
	_, err := New(&cfg, fs, nop, false)
	assert.Equal(t, isodenoise.ErrConfig, errors.Cause(err))
}
