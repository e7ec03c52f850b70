package trainer

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/checkpoint"
	"github.com/sharnoff/isodenoise/dataset"
)

// Options are the settings of a run that aren't part of its saved configuration.
type Options struct {
	// Resume is a checkpoint file, or a directory holding model_best.pth.tar.
	Resume   string
	Progress bool

	// for inference only
	TestData   string
	ResultsDir string
}

// setup builds a Trainer, restoring it from opts.Resume if given. When resuming, the
// model architecture and the dataset split come from the configuration saved with the
// checkpoint.
func setup(fs afero.Fs, log *zap.SugaredLogger, cfg isodenoise.Config, opts Options) (*Trainer, *checkpoint.Resumed, error) {
	var r *checkpoint.Resumed
	if opts.Resume != "" {
		var err error
		if r, err = checkpoint.Resume(fs, opts.Resume); err != nil {
			return nil, nil, err
		}

		cfg = cfg.WithArchitecture(r.Config)
		if cfg.SplitSeed == nil {
			seed := r.Config.EffectiveSplitSeed()
			cfg.SplitSeed = &seed
		}

		log.Infow("resuming",
			"checkpoint", r.Path,
			"config", r.ConfigPath,
			"epoch", r.Checkpoint.Epoch,
			"best_loss", r.Checkpoint.BestLoss,
		)
	}

	t, err := New(&cfg, fs, log, opts.Progress)
	if err != nil {
		return nil, nil, err
	}

	if r != nil {
		if err := t.Restore(r.Checkpoint); err != nil {
			t.Close()
			return nil, nil, errors.WithMessagef(err, "restoring %q", r.Path)
		}
	}
	return t, r, nil
}

// splitLoaders opens the configured dataset and splits it into a shuffled training
// loader and an ordered validation loader.
func splitLoaders(fs afero.Fs, log *zap.SugaredLogger, cfg *isodenoise.Config) (train, val *dataset.Loader, err error) {
	ds, err := dataset.Open(fs, cfg.DatasetKind, cfg.Dataset, dataset.Options{Channels: cfg.InChannels})
	if err != nil {
		return nil, nil, err
	}

	seed := cfg.EffectiveSplitSeed()
	split, err := dataset.RandomSplit(ds, cfg.TestRatio, &seed)
	if err != nil {
		return nil, nil, err
	}

	train, err = dataset.NewLoader(dataset.NewSubset(ds, split.Train), dataset.LoaderOptions{
		BatchSize: cfg.TrainBatchSize,
		Shuffle:   true,
		Seed:      cfg.Seed,
		Workers:   cfg.Workers,
	})
	if err != nil {
		return nil, nil, err
	}

	val, err = dataset.NewLoader(dataset.NewSubset(ds, split.Test), dataset.LoaderOptions{
		BatchSize: cfg.TestBatchSize,
		Workers:   cfg.Workers,
	})
	if err != nil {
		return nil, nil, err
	}

	log.Infow("split dataset",
		"dataset", cfg.Dataset,
		"kind", cfg.DatasetKind,
		"groups", ds.Groups(),
		"train", train.Samples(),
		"test", val.Samples(),
		"split_seed", seed,
	)
	return train, val, nil
}

// Train trains the model described by cfg, writing the configuration, checkpoints and
// history to cfg.SaveDir.
func Train(ctx context.Context, fs afero.Fs, log *zap.SugaredLogger, cfg isodenoise.Config, opts Options) error {
	t, _, err := setup(fs, log, cfg, opts)
	if err != nil {
		return err
	}
	defer t.Close()

	cfgPath := filepath.Join(t.cfg.SaveDir, isodenoise.ConfigFileName)
	if err := t.cfg.Save(fs, cfgPath); err != nil {
		return err
	}
	log.Infow("saved configuration", "path", cfgPath, "seed", t.cfg.Seed)

	train, val, err := splitLoaders(fs, log, t.cfg)
	if err != nil {
		return err
	}

	return t.Run(ctx, train, val)
}

// Evaluate restores the checkpoint at opts.Resume and returns its loss on the validation
// split, without training.
func Evaluate(ctx context.Context, fs afero.Fs, log *zap.SugaredLogger, cfg isodenoise.Config, opts Options) (float64, error) {
	if opts.Resume == "" {
		return 0, errors.Wrapf(isodenoise.ErrConfig, "evaluating requires a checkpoint to resume from")
	}

	t, _, err := setup(fs, log, cfg, opts)
	if err != nil {
		return 0, err
	}
	defer t.Close()

	_, val, err := splitLoaders(fs, log, t.cfg)
	if err != nil {
		return 0, err
	}

	loss, err := t.Validate(ctx, val)
	if err != nil {
		return 0, err
	}

	log.Infow("evaluated", "val_loss", loss, "samples", val.Samples())
	return loss, nil
}

// Infer restores the checkpoint at opts.Resume and denoises every sample of
// opts.TestData, writing the results to opts.ResultsDir or, if that's empty, to
// DefaultResultsDir of the checkpoint.
func Infer(ctx context.Context, fs afero.Fs, log *zap.SugaredLogger, cfg isodenoise.Config, opts Options) ([]string, error) {
	if opts.Resume == "" {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "testing requires a checkpoint to resume from")
	} else if opts.TestData == "" {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "no test data given")
	}

	t, r, err := setup(fs, log, cfg, opts)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	ds, err := dataset.Open(fs, t.cfg.DatasetKind, opts.TestData, dataset.Options{Channels: t.cfg.InChannels})
	if err != nil {
		return nil, err
	}

	l, err := dataset.NewLoader(ds, dataset.LoaderOptions{
		BatchSize: t.cfg.TestBatchSize,
		Workers:   t.cfg.Workers,
	})
	if err != nil {
		return nil, err
	}

	dir := opts.ResultsDir
	if dir == "" {
		dir = DefaultResultsDir(r.Path)
	}
	return t.Test(ctx, l, dir)
}
