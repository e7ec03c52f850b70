package main

import (
	"math/rand"

	"github.com/sharnoff/isodenoise"
)

// common are the flags shared by the train and test commands. Flags left unset keep the
// value from isodenoise.DefaultConfig.
type common struct {
	Workers    *int   `arg:"-j,--workers" help:"number of data loading workers"`
	NoCUDA     bool   `arg:"--no-cuda" help:"disable GPU use"`
	GPUNum     int    `arg:"--gpu-num" help:"GPU to use"`
	ManualSeed *int64 `arg:"--manual-seed" help:"seed for initialization, shuffling and the split (random in [1, 100000] if unset)"`
	SaveDir    string `arg:"--save-dir" help:"directory for checkpoints, history and the run configuration"`
	Resume     string `arg:"--resume" help:"checkpoint file, or a directory holding model_best.pth.tar"`

	TestBatchSize *int `arg:"--test-batch-size" help:"batch size for validation and testing"`

	Model          string `arg:"--model" help:"generator architecture: basic, dense_gated"`
	InChannels     *int   `arg:"--cnn-in-channels" help:"image channels: 1 or 3"`
	HiddenChannels *int   `arg:"--cnn-hidden-channels" help:"channels of the hidden layers"`
	HiddenLayers   *int   `arg:"--cnn-hidden-layers" help:"number of hidden layers or blocks"`
	GrowthChannels *int   `arg:"--growth-channels" help:"growth channels of the dense blocks"`
	NoISO          bool   `arg:"--no-iso" help:"disable ISO conditioning"`
	NumClasses     *int   `arg:"--num-classes" help:"number of scene classes to condition on (0 disables)"`
	LearnBeta      bool   `arg:"--learn-beta" help:"learn the residual scaling from the ISO value"`
	Interpolate    bool   `arg:"--interpolate" help:"learn the clean image directly instead of the noise residual"`

	DatasetKind string `arg:"--dataset-kind" help:"dataset layout: patched, manifest, by_class"`
}

type trainCmd struct {
	common

	Epochs         *int     `arg:"--epochs" help:"number of epochs to train for"`
	StartEpoch     *int     `arg:"--start-epoch" help:"epoch to start from, when not resuming"`
	TrainBatchSize *int     `arg:"--train-batch-size" help:"batch size for training"`
	LR             *float64 `arg:"--lr" help:"initial learning rate"`
	LRSteps        []int    `arg:"--lr-steps" help:"epochs at which the learning rate decays"`
	LRGamma        *float64 `arg:"--lr-gamma" help:"learning rate decay factor"`
	Loss           string   `arg:"--loss" help:"content loss: mse, l1, huber, edge_aware"`
	Optim          string   `arg:"--optim" help:"optimizer: sgd, momentum, adam, rmsprop"`
	Init           string   `arg:"--init" help:"initial filter distribution: kaiming_uniform, he, lecun, xavier"`
	Discriminator  string   `arg:"--discriminator" help:"discriminator: none, simple"`
	AdvLoss        string   `arg:"--adv-loss" help:"adversarial loss: wasserstein, hinge"`
	AdvWeight      *float64 `arg:"--adv-weight" help:"weight of the adversarial term"`
	Evaluate       bool     `arg:"--evaluate" help:"only evaluate the resumed checkpoint on the validation split"`

	Dataset   string   `arg:"--dataset" help:"dataset root, or manifest CSV"`
	TestRatio *float64 `arg:"--test-ratio" help:"fraction of originals held out for validation"`
	SplitSeed *int64   `arg:"--split-seed" help:"seed of the train/validation split (defaults to the run seed)"`
}

type testCmd struct {
	common

	TestData   string `arg:"--test-data,required" help:"dataset to denoise"`
	ResultsDir string `arg:"--results-dir" help:"output directory, which must not exist (next to the checkpoint by default)"`
}

type args struct {
	Train *trainCmd `arg:"subcommand:train" help:"train a model"`
	Test  *testCmd  `arg:"subcommand:test" help:"denoise a dataset with a trained model"`

	Progress  bool   `arg:"--progress" help:"show progress bars"`
	LogFormat string `arg:"--log-format" help:"json or console"`
	Debug     bool   `arg:"--debug" help:"enable debug logging"`
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// apply overrides cfg with the common flags that were given. rng draws the seed when
// none was.
func (c *common) apply(cfg *isodenoise.Config, rng *rand.Rand) {
	if c.ManualSeed != nil {
		cfg.Seed = *c.ManualSeed
	} else {
		cfg.Seed = rng.Int63n(100000) + 1
	}

	setInt(&cfg.Workers, c.Workers)
	setString(&cfg.SaveDir, c.SaveDir)
	setInt(&cfg.TestBatchSize, c.TestBatchSize)

	setString((*string)(&cfg.Model), c.Model)
	setInt(&cfg.InChannels, c.InChannels)
	setInt(&cfg.HiddenChannels, c.HiddenChannels)
	setInt(&cfg.HiddenLayers, c.HiddenLayers)
	setInt(&cfg.GrowthChannels, c.GrowthChannels)
	setInt(&cfg.NumClasses, c.NumClasses)
	cfg.ISO = !c.NoISO
	cfg.LearnBeta = c.LearnBeta
	cfg.Residual = !c.Interpolate

	setString((*string)(&cfg.DatasetKind), c.DatasetKind)
}

// config returns the run configuration of the train command.
func (t *trainCmd) config(rng *rand.Rand) isodenoise.Config {
	cfg := isodenoise.DefaultConfig()
	t.apply(&cfg, rng)

	setInt(&cfg.Epochs, t.Epochs)
	setInt(&cfg.StartEpoch, t.StartEpoch)
	setInt(&cfg.TrainBatchSize, t.TrainBatchSize)
	setFloat(&cfg.LR, t.LR)
	if len(t.LRSteps) > 0 {
		cfg.LRSteps = t.LRSteps
	}
	setFloat(&cfg.LRGamma, t.LRGamma)
	setString((*string)(&cfg.Loss), t.Loss)
	setString((*string)(&cfg.Optim), t.Optim)
	setString((*string)(&cfg.Init), t.Init)
	setString((*string)(&cfg.Discriminator), t.Discriminator)
	setString((*string)(&cfg.AdvLoss), t.AdvLoss)
	setFloat(&cfg.AdvWeight, t.AdvWeight)

	setString(&cfg.Dataset, t.Dataset)
	setFloat(&cfg.TestRatio, t.TestRatio)
	cfg.SplitSeed = t.SplitSeed
	return cfg
}

// config returns the run configuration of the test command. The model settings are
// replaced by the ones saved with the checkpoint.
func (t *testCmd) config(rng *rand.Rand) isodenoise.Config {
	cfg := isodenoise.DefaultConfig()
	t.apply(&cfg, rng)
	return cfg
}
