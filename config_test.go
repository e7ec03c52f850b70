package isodenoise

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Adversarial())
	assert.True(t, cfg.Residual)
}

func TestValidateCanonicalizesKinds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model = "DenseGatedCNN"
	cfg.Loss = "SmoothL1Loss"
	cfg.Optim = "RMSprop"
	cfg.Discriminator = "SimpleDiscriminator"
	cfg.AdvLoss = "WassersteinLossGAN"
	cfg.DatasetKind = "by-class"
	cfg.Penalty = ""
	cfg.Init = "Glorot"

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModelDenseGated, cfg.Model)
	assert.Equal(t, LossHuber, cfg.Loss)
	assert.Equal(t, OptimRMSProp, cfg.Optim)
	assert.Equal(t, DiscriminatorSimple, cfg.Discriminator)
	assert.Equal(t, AdversarialWasserstein, cfg.AdvLoss)
	assert.Equal(t, DatasetByClass, cfg.DatasetKind)
	assert.Equal(t, PenaltyNone, cfg.Penalty)
	assert.Equal(t, InitXavier, cfg.Init)
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*Config)
		cause error
	}{
		{"unknown model", func(c *Config) { c.Model = "unet" }, ErrConfig},
		{"unknown loss", func(c *Config) { c.Loss = "ssim" }, ErrConfig},
		{"unknown optimizer", func(c *Config) { c.Optim = "lbfgs" }, ErrConfig},
		{"unknown dataset", func(c *Config) { c.DatasetKind = "folders" }, ErrConfig},
		{"unknown initializer", func(c *Config) { c.Init = "orthogonal" }, ErrConfig},
		{"unknown adversarial", func(c *Config) {
			c.Discriminator = DiscriminatorSimple
			c.AdvLoss = "lsgan"
		}, ErrConfig},
		{"no adversarial weight", func(c *Config) {
			c.Discriminator = DiscriminatorSimple
			c.AdvWeight = 0
		}, ErrNumeric},
		{"wasserstein without clip", func(c *Config) {
			c.Discriminator = DiscriminatorSimple
			c.AdvLoss = AdversarialWasserstein
			c.DClip = 0
		}, ErrNumeric},
		{"zero batch", func(c *Config) { c.TrainBatchSize = 0 }, ErrConfig},
		{"NaN lr", func(c *Config) { c.LR = math.NaN() }, ErrConfig},
		{"momentum", func(c *Config) {
			c.Optim = OptimMomentum
			c.Momentum = 1
		}, ErrConfig},
		{"test ratio", func(c *Config) { c.TestRatio = 1 }, ErrConfig},
		{"iso scale", func(c *Config) { c.ISOScale = 0 }, ErrConfig},
		{"classes", func(c *Config) { c.NumClasses = -1 }, ErrConfig},
		{"penalty", func(c *Config) { c.Penalty = PenaltyL2 }, ErrConfig},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.edit(&cfg)
		err := cfg.Validate()
		require.Error(t, err, tc.name)
		assert.Equal(t, tc.cause, errors.Cause(err), tc.name)
	}
}

func TestSaveLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := DefaultConfig()
	cfg.Seed = 4242
	cfg.LRSteps = []int{30, 60}
	cfg.Model = ModelDenseGated
	cfg.LearnBeta = true
	seed := int64(7)
	cfg.SplitSeed = &seed

	require.NoError(t, cfg.Save(fs, "/runs/a/"+ConfigFileName))

	got, err := LoadConfig(fs, "/runs/a/"+ConfigFileName)
	require.NoError(t, err)
	assert.Equal(t, cfg, *got)
	assert.Equal(t, int64(7), got.EffectiveSplitSeed())
}

func TestLoadFillsDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c.yaml", []byte("seed: 3\nmodel: dense_gated\n"), 0644))

	got, err := LoadConfig(fs, "/c.yaml")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Seed)
	assert.Equal(t, ModelDenseGated, got.Model)
	assert.Equal(t, DefaultConfig().HiddenChannels, got.HiddenChannels)
	assert.Equal(t, int64(3), got.EffectiveSplitSeed())
}

func TestLoadInvalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bad.yaml", []byte("model: [1, 2\n"), 0644))
	_, err := LoadConfig(fs, "/bad.yaml")
	assert.Equal(t, ErrConfig, errors.Cause(err))

	require.NoError(t, afero.WriteFile(fs, "/unknown.yaml", []byte("model: unet\n"), 0644))
	_, err = LoadConfig(fs, "/unknown.yaml")
	assert.Equal(t, ErrConfig, errors.Cause(err))
}

func TestWithArchitecture(t *testing.T) {
	saved := DefaultConfig()
	saved.Model = ModelDenseGated
	saved.HiddenChannels = 64
	saved.ISO = false
	saved.Residual = false
	saved.Seed = 1

	cfg := DefaultConfig()
	cfg.Epochs = 500
	cfg.Seed = 2
	got := cfg.WithArchitecture(&saved)

	assert.Equal(t, ModelDenseGated, got.Model)
	assert.Equal(t, 64, got.HiddenChannels)
	assert.False(t, got.ISO)
	assert.False(t, got.Residual)
	assert.Equal(t, 500, got.Epochs)
	assert.Equal(t, int64(2), got.Seed)
	assert.Equal(t, ModelBasic, cfg.Model, "receiver is unchanged")
}
