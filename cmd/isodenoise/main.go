// Command isodenoise trains ISO-conditioned image denoising models and runs them over
// test images.
//
//	isodenoise train --dataset data/patches --save-dir runs/a --epochs 50
//	isodenoise train --resume runs/a --epochs 100
//	isodenoise test --resume runs/a --test-data data/test.csv --dataset-kind manifest
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sharnoff/isodenoise/logging"
	"github.com/sharnoff/isodenoise/trainer"
)

func main() {
	var a args
	p := arg.MustParse(&a)
	if a.Train == nil && a.Test == nil {
		p.Fail("a command is required: train or test")
	}

	logger, err := logging.New(a.LogFormat, a.Debug)
	if err != nil {
		p.Fail(err.Error())
	}
	defer logger.Sync()
	log := logger.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Warnw("interrupted, stopping after the current epoch", "signal", s)
		cancel()
	}()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	fs := afero.NewOsFs()

	if err := run(ctx, fs, log, a, rng); err != nil {
		log.Fatalw("failed", "error", err)
	}
}

func run(ctx context.Context, fs afero.Fs, log *zap.SugaredLogger, a args, rng *rand.Rand) error {
	var c common
	switch {
	case a.Train != nil:
		c = a.Train.common
	case a.Test != nil:
		c = a.Test.common
	}

	if !c.NoCUDA {
		log.Debugw("GPU requested, running on the CPU", "gpu", c.GPUNum)
	}

	opts := trainer.Options{Resume: c.Resume, Progress: a.Progress}

	if a.Test != nil {
		cfg := a.Test.config(rng)
		opts.TestData = a.Test.TestData
		opts.ResultsDir = a.Test.ResultsDir

		paths, err := trainer.Infer(ctx, fs, log, cfg, opts)
		if err != nil {
			return err
		}
		log.Infow("done", "images", len(paths))
		return nil
	}

	cfg := a.Train.config(rng)
	log.Infow("seed", "seed", cfg.Seed, "manual", c.ManualSeed != nil)

	if a.Train.Evaluate {
		_, err := trainer.Evaluate(ctx, fs, log, cfg, opts)
		return err
	}

	err := trainer.Train(ctx, fs, log, cfg, opts)
	if err == context.Canceled {
		log.Infow("stopped", "save_dir", cfg.SaveDir)
		return nil
	}
	return err
}
