package isodenoise

import (
	"math"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

// ConfigFileName is the name of the run configuration artifact written to the save
// directory. It is read back on resume and for inference.
const ConfigFileName = "denoising.config"

// Config is the full configuration of a run. Once validated it is treated as immutable:
// components receive a *Config and never modify it.
type Config struct {
	// Seed drives weight initialization, shuffling and the dataset split.
	Seed    int64  `yaml:"seed"`
	SaveDir string `yaml:"save_dir"`
	Workers int    `yaml:"workers"`

	Epochs         int `yaml:"epochs"`
	StartEpoch     int `yaml:"start_epoch"`
	TrainBatchSize int `yaml:"train_batch_size"`
	TestBatchSize  int `yaml:"test_batch_size"`

	LR float64 `yaml:"lr"`
	// LRSteps are the epochs at which the learning rate is multiplied by LRGamma.
	LRSteps  []int     `yaml:"lr_steps,omitempty"`
	LRGamma  float64   `yaml:"lr_gamma"`
	Loss     LossKind  `yaml:"loss"`
	Model    ModelKind `yaml:"model"`
	Optim    OptimKind `yaml:"optim"`
	Momentum float64   `yaml:"momentum"`

	Penalty       PenaltyKind `yaml:"penalty"`
	PenaltyLambda float64     `yaml:"penalty_lambda"`
	PenaltyAlpha  float64     `yaml:"penalty_alpha"`

	Discriminator DiscriminatorKind `yaml:"discriminator"`
	AdvLoss       AdversarialKind   `yaml:"adv_loss"`
	AdvWeight     float64           `yaml:"adv_weight"`
	// DClip bounds discriminator weights after each step for the wasserstein loss.
	DClip float64 `yaml:"d_clip"`

	InChannels     int `yaml:"cnn_in_channels"`
	HiddenChannels int `yaml:"cnn_hidden_channels"`
	HiddenLayers   int `yaml:"cnn_hidden_layers"`
	GrowthChannels int `yaml:"growth_channels"`
	// ISO enables conditioning on the (scaled) ISO value of each sample.
	ISO      bool    `yaml:"iso"`
	ISOScale float64 `yaml:"iso_scale"`
	// NumClasses enables class-label conditioning when greater than zero.
	NumClasses int  `yaml:"num_classes"`
	LearnBeta  bool `yaml:"learn_beta"`
	// Residual makes the generator learn the noise residual (output + input) rather
	// than the clean image directly.
	Residual bool `yaml:"residual"`
	// Init draws the initial convolution filters. It has no effect when resuming.
	Init InitKind `yaml:"init"`

	Dataset     string      `yaml:"dataset"`
	DatasetKind DatasetKind `yaml:"dataset_kind"`
	TestRatio   float64     `yaml:"test_ratio"`
	// SplitSeed fixes the train/test split independently of Seed. Nil uses Seed.
	SplitSeed *int64 `yaml:"split_seed,omitempty"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		SaveDir:        filepath.Join("results", "save_dir"),
		Workers:        4,
		Epochs:         100,
		TrainBatchSize: 256,
		TestBatchSize:  1,
		LR:             0.005,
		LRGamma:        0.1,
		Loss:           LossMSE,
		Model:          ModelBasic,
		Optim:          OptimAdam,
		Momentum:       0.9,
		Penalty:        PenaltyNone,
		Discriminator:  DiscriminatorNone,
		AdvLoss:        AdversarialHinge,
		AdvWeight:      1e-3,
		DClip:          0.01,
		InChannels:     3,
		HiddenChannels: 32,
		HiddenLayers:   7,
		GrowthChannels: 32,
		ISO:            true,
		ISOScale:       3200,
		Residual:       true,
		Init:           InitKaimingUniform,
		DatasetKind:    DatasetPatched,
		TestRatio:      0.2,
	}
}

// Adversarial reports whether the configuration trains a discriminator.
func (c *Config) Adversarial() bool {
	return c.Discriminator != "" && c.Discriminator != DiscriminatorNone
}

// WithArchitecture returns a copy of c whose model settings are taken from saved, so that
// a resumed or inference run rebuilds exactly the model that was checkpointed.
func (c Config) WithArchitecture(saved *Config) Config {
	c.Model = saved.Model
	c.Discriminator = saved.Discriminator
	c.AdvLoss = saved.AdvLoss
	c.InChannels = saved.InChannels
	c.HiddenChannels = saved.HiddenChannels
	c.HiddenLayers = saved.HiddenLayers
	c.GrowthChannels = saved.GrowthChannels
	c.ISO = saved.ISO
	c.ISOScale = saved.ISOScale
	c.NumClasses = saved.NumClasses
	c.LearnBeta = saved.LearnBeta
	c.Residual = saved.Residual
	c.Init = saved.Init
	c.Optim = saved.Optim
	return c
}

// EffectiveSplitSeed returns the seed used for splitting the dataset.
func (c *Config) EffectiveSplitSeed() int64 {
	if c.SplitSeed != nil {
		return *c.SplitSeed
	}
	return c.Seed
}

// Validate checks every field of the configuration, returning an error wrapping ErrConfig
// (or ErrNumeric for incompatible loss combinations) for the first problem found. Kind
// names are replaced by their canonical form.
func (c *Config) Validate() error {
	var err error
	if c.Model, err = ParseModelKind(string(c.Model)); err != nil {
		return err
	}
	if c.Discriminator, err = ParseDiscriminatorKind(string(c.Discriminator)); err != nil {
		return err
	}
	if c.Loss, err = ParseLossKind(string(c.Loss)); err != nil {
		return err
	}
	if c.Optim, err = ParseOptimKind(string(c.Optim)); err != nil {
		return err
	}
	if c.Penalty, err = ParsePenaltyKind(string(c.Penalty)); err != nil {
		return err
	}
	if c.Init, err = ParseInitKind(string(c.Init)); err != nil {
		return err
	}
	if c.DatasetKind, err = ParseDatasetKind(string(c.DatasetKind)); err != nil {
		return err
	}
	if c.Adversarial() {
		if c.AdvLoss, err = ParseAdversarialKind(string(c.AdvLoss)); err != nil {
			return err
		}
		if !positive(c.AdvWeight) {
			return errors.Wrapf(ErrNumeric, "adversarial weight must be > 0 (%v)", c.AdvWeight)
		}
		if c.AdvLoss == AdversarialWasserstein && !positive(c.DClip) {
			return errors.Wrapf(ErrNumeric, "wasserstein loss needs a clip value > 0 (%v)", c.DClip)
		}
	}

	switch {
	case c.Workers < 0:
		return errors.Wrapf(ErrConfig, "workers must be >= 0 (%d)", c.Workers)
	case c.Epochs < 0:
		return errors.Wrapf(ErrConfig, "epochs must be >= 0 (%d)", c.Epochs)
	case c.StartEpoch < 0:
		return errors.Wrapf(ErrConfig, "start epoch must be >= 0 (%d)", c.StartEpoch)
	case c.TrainBatchSize < 1:
		return errors.Wrapf(ErrConfig, "train batch size must be >= 1 (%d)", c.TrainBatchSize)
	case c.TestBatchSize < 1:
		return errors.Wrapf(ErrConfig, "test batch size must be >= 1 (%d)", c.TestBatchSize)
	case !positive(c.LR):
		return errors.Wrapf(ErrConfig, "learning rate must be > 0 (%v)", c.LR)
	case len(c.LRSteps) > 0 && !positive(c.LRGamma):
		return errors.Wrapf(ErrConfig, "learning rate gamma must be > 0 (%v)", c.LRGamma)
	case c.Optim == OptimMomentum && (c.Momentum <= 0 || c.Momentum >= 1):
		return errors.Wrapf(ErrConfig, "momentum must be in (0, 1) (%v)", c.Momentum)
	case c.Penalty != PenaltyNone && c.Penalty != "" && !positive(c.PenaltyLambda):
		return errors.Wrapf(ErrConfig, "penalty lambda must be > 0 (%v)", c.PenaltyLambda)
	case c.Penalty == PenaltyElasticNet && (c.PenaltyAlpha < 0 || c.PenaltyAlpha > 1):
		return errors.Wrapf(ErrConfig, "elastic net alpha must be in [0, 1] (%v)", c.PenaltyAlpha)
	case c.InChannels < 1:
		return errors.Wrapf(ErrConfig, "input channels must be >= 1 (%d)", c.InChannels)
	case c.HiddenChannels < 1:
		return errors.Wrapf(ErrConfig, "hidden channels must be >= 1 (%d)", c.HiddenChannels)
	case c.HiddenLayers < 0:
		return errors.Wrapf(ErrConfig, "hidden layers must be >= 0 (%d)", c.HiddenLayers)
	case c.Model == ModelDenseGated && c.GrowthChannels < 1:
		return errors.Wrapf(ErrConfig, "growth channels must be >= 1 (%d)", c.GrowthChannels)
	case c.ISO && !positive(c.ISOScale):
		return errors.Wrapf(ErrConfig, "ISO scale must be > 0 (%v)", c.ISOScale)
	case c.NumClasses < 0:
		return errors.Wrapf(ErrConfig, "number of classes must be >= 0 (%d)", c.NumClasses)
	case c.TestRatio <= 0 || c.TestRatio >= 1:
		return errors.Wrapf(ErrConfig, "test ratio must be in (0, 1) (%v)", c.TestRatio)
	}

	return nil
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// Save writes the configuration as YAML to path, creating parent directories.
func (c *Config) Save(fs afero.Fs, path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrapf(err, "Failed to encode configuration")
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "Failed to create directory %q", filepath.Dir(path))
	}

	if err := afero.WriteFile(fs, path, b, 0644); err != nil {
		return errors.Wrapf(err, "Failed to write configuration to %q", path)
	}

	return nil
}

// LoadConfig reads a configuration written by Save. The result is validated.
func LoadConfig(fs afero.Fs, path string) (*Config, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read configuration %q", path)
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, errors.Wrapf(ErrConfig, "decoding %q: %v", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "configuration %q", path)
	}

	return &c, nil
}
