// Package isodenoise holds the types shared across the ISO-conditioned image denoising
// trainer: the run configuration, the kinds of models, losses and optimizers it can be
// built from, decoded samples and batches, and the errors returned throughout.
//
// The work itself is done by the subpackages:
//
//	dataset      indexes datasets on disk, splits them and loads batches
//	models       builds the generators and discriminators
//	losses       content and adversarial losses
//	optimizers   parameter updates, with checkpointable state
//	checkpoint   saving, loading and resuming training state
//	trainer      the training, validation and inference loops
//	history      per-epoch statistics and loss plots
//
// A run is described entirely by a Config, which is written to the save directory as
// denoising.config so that the same model can be rebuilt to resume training or to denoise
// new images:
//
//	cfg := isodenoise.DefaultConfig()
//	cfg.Dataset = "data/patches"
//	cfg.SaveDir = "runs/a"
//	err := trainer.Train(ctx, afero.NewOsFs(), log, cfg, trainer.Options{})
//
// Errors are wrapped with github.com/pkg/errors. Their kind can be checked by comparing
// errors.Cause(err) against the values declared here, such as ErrConfig or ErrCheckpoint.
package isodenoise
