// Package trainer runs the training, validation and inference loops of a denoising model,
// checkpointing after every epoch.
package trainer

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	G "gorgonia.org/gorgonia"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/checkpoint"
	"github.com/sharnoff/isodenoise/dataset"
	"github.com/sharnoff/isodenoise/history"
	"github.com/sharnoff/isodenoise/hyperparams"
	"github.com/sharnoff/isodenoise/losses"
	"github.com/sharnoff/isodenoise/models"
	"github.com/sharnoff/isodenoise/nn"
	"github.com/sharnoff/isodenoise/optimizers"
	"github.com/sharnoff/isodenoise/penalties"
)

// Graph inputs and outputs besides the ones added by models.AddInputs.
const (
	inputTarget = "target"
	inputFake   = "fake"

	outputOut     = "out"
	outputLoss    = "loss"
	outputContent = "content"
)

// Machine tags, one graph per tag and input shape.
const (
	tagTrain = "train"
	tagDisc  = "disc"
	tagEval  = "eval"
	tagInfer = "infer"
)

// Trainer holds a model, its optimizer and the training progress. It is used from a
// single goroutine.
type Trainer struct {
	cfg      *isodenoise.Config
	fs       afero.Fs
	log      *zap.SugaredLogger
	progress bool

	gen  models.Generator
	disc models.Discriminator
	loss losses.Content
	adv  losses.Adversarial

	gOpt optimizers.Optimizer
	dOpt optimizers.Optimizer
	lr   hyperparams.Schedule

	machines *nn.Cache

	// epoch is the next epoch to train
	epoch     int
	iteration int64
	tracker   *checkpoint.Tracker
}

// EpochStats summarizes the batch losses of one training epoch.
type EpochStats struct {
	Epoch int
	LR    float64
	// Loss is the mean loss over samples.
	Loss float64

	// summary of the per-batch losses
	Mean, StdDev, Min, Max float64

	Batches int
	Samples int
}

// New builds the model, loss and optimizer described by cfg, with weights drawn from
// cfg.Seed. Training starts at cfg.StartEpoch unless a checkpoint is restored.
func New(cfg *isodenoise.Config, fs afero.Fs, log *zap.SugaredLogger, progress bool) (*Trainer, error) {
	if cfg == nil {
		return nil, isodenoise.NewNilArgError("Config")
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Trainer{
		cfg:      cfg,
		fs:       fs,
		log:      log,
		progress: progress,
		epoch:    cfg.StartEpoch,
		tracker:  checkpoint.NewTracker(),
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	opts := models.OptionsFrom(cfg)

	var err error
	if t.gen, err = models.New(cfg.Model, opts, rng); err != nil {
		return nil, err
	}
	if t.disc, err = models.NewDiscriminator(cfg.Discriminator, opts, rng); err != nil {
		return nil, err
	}

	if t.loss, err = losses.New(cfg.Loss); err != nil {
		return nil, err
	}
	if t.disc != nil {
		if t.adv, err = losses.NewAdversarial(cfg.AdvLoss); err != nil {
			return nil, err
		}
	}

	pen, err := penalties.New(cfg.Penalty, cfg.PenaltyLambda, cfg.PenaltyAlpha)
	if err != nil {
		return nil, err
	}
	optOpts := optimizers.Options{Momentum: cfg.Momentum, Penalty: pen}
	if t.gOpt, err = optimizers.New(cfg.Optim, optOpts); err != nil {
		return nil, err
	}
	if t.disc != nil {
		// the discriminator is never regularized
		if t.dOpt, err = optimizers.New(cfg.Optim, optimizers.Options{Momentum: cfg.Momentum}); err != nil {
			return nil, err
		}
	}

	if t.lr, err = hyperparams.LearningRate(cfg.LR, cfg.LRSteps, cfg.LRGamma); err != nil {
		return nil, err
	}

	t.machines = nn.NewCache(t.build)

	log.Infow("built model",
		"model", cfg.Model,
		"parameters", t.gen.Params().Count(),
		"discriminator", cfg.Discriminator,
		"loss", cfg.Loss,
		"optimizer", cfg.Optim,
	)
	return t, nil
}

// Epoch returns the next epoch to be trained.
func (t *Trainer) Epoch() int {
	return t.epoch
}

// Generator returns the model being trained.
func (t *Trainer) Generator() models.Generator {
	return t.gen
}

// BestLoss returns the lowest validation loss seen so far, including the one restored
// from a checkpoint.
func (t *Trainer) BestLoss() float64 {
	return t.tracker.Best()
}

// Close releases the compiled graphs.
func (t *Trainer) Close() error {
	return t.machines.Close()
}

// Restore loads the weights, optimizer state and progress of a checkpoint. Training
// continues at the epoch after the one that was saved.
func (t *Trainer) Restore(c *checkpoint.Checkpoint) error {
	if err := t.gen.Params().Load(c.Model); err != nil {
		return errors.WithMessagef(err, "model")
	} else if err := t.gOpt.SetState(c.Optimizer); err != nil {
		return errors.WithMessagef(err, "optimizer")
	}

	if t.disc != nil {
		if c.Discriminator == nil || c.DOptimizer == nil {
			return errors.Wrapf(isodenoise.ErrCheckpoint, "checkpoint has no discriminator")
		} else if err := t.disc.Params().Load(c.Discriminator); err != nil {
			return errors.WithMessagef(err, "discriminator")
		} else if err := t.dOpt.SetState(c.DOptimizer); err != nil {
			return errors.WithMessagef(err, "discriminator optimizer")
		}
	}

	t.epoch = c.Epoch + 1
	t.iteration = c.Iteration
	t.tracker.Restore(c.BestLoss)
	return nil
}

// snapshot captures the state after training epoch.
func (t *Trainer) snapshot(epoch int) *checkpoint.Checkpoint {
	c := checkpoint.New()
	c.Epoch = epoch
	c.Iteration = t.iteration
	c.BestLoss = t.tracker.Best()
	c.Model = t.gen.Params().Snapshot()
	c.Optimizer = t.gOpt.State()
	if t.disc != nil {
		c.Discriminator = t.disc.Params().Snapshot()
		c.DOptimizer = t.dOpt.State()
	}
	return c
}

// build compiles the graph for one input shape.
func (t *Trainer) build(k nn.Key) (*nn.Machine, error) {
	b := nn.NewBuilder()
	cond := t.gen.Conditioning()

	switch k.Tag {
	case tagTrain:
		in := models.AddInputs(b, cond, k.N, k.C, k.H, k.W)
		target := b.Input(inputTarget, k.N, k.C, k.H, k.W)
		out := t.gen.Forward(b, in)

		content := t.loss.Build(b, out, target)
		loss := content
		if t.disc != nil {
			adv := t.adv.Generator(b, t.disc.Forward(b, out))
			loss = b.Add(content, b.Scale(adv, float32(t.cfg.AdvWeight)))
		}

		outputs := map[string]*G.Node{outputOut: out, outputLoss: loss, outputContent: content}
		return b.Compile(outputs, loss, t.gen.Params().List())

	case tagDisc:
		fake := b.Input(inputFake, k.N, k.C, k.H, k.W)
		clean := b.Input(inputTarget, k.N, k.C, k.H, k.W)
		loss := t.adv.Discriminator(b, t.disc.Forward(b, fake), t.disc.Forward(b, clean))
		return b.Compile(map[string]*G.Node{outputLoss: loss}, loss, t.disc.Params().List())

	case tagEval:
		in := models.AddInputs(b, cond, k.N, k.C, k.H, k.W)
		target := b.Input(inputTarget, k.N, k.C, k.H, k.W)
		out := t.gen.Forward(b, in)
		loss := t.loss.Build(b, out, target)
		return b.Compile(map[string]*G.Node{outputLoss: loss}, nil, nil)

	case tagInfer:
		in := models.AddInputs(b, cond, k.N, k.C, k.H, k.W)
		out := t.gen.Forward(b, in)
		return b.Compile(map[string]*G.Node{outputOut: out}, nil, nil)
	}

	return nil, errors.Errorf("unknown graph %q", k.Tag)
}

func (t *Trainer) machine(batch *isodenoise.Batch, tag string) (*nn.Machine, error) {
	return t.machines.Get(nn.Key{N: batch.N, C: batch.C, H: batch.H, W: batch.W, Tag: tag})
}

// checkFinite returns an error wrapping ErrNumeric if loss is NaN or infinite.
func checkFinite(loss float64) error {
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return errors.Wrapf(isodenoise.ErrNumeric, "loss is %v", loss)
	}
	return nil
}

// each runs fn over every batch of a new epoch of l, drawing a progress bar if enabled.
func (t *Trainer) each(ctx context.Context, l *dataset.Loader, desc string,
	fn func(b int, batch *isodenoise.Batch) error) error {

	if !t.progress {
		return l.Each(ctx, fn)
	}

	e := l.Epoch(ctx)
	defer e.Close()

	var fnErr error
	err := tqdm.With(iterators.Interval(0, e.Len()), desc, func(v interface{}) (brk bool) {
		batch, err := e.Next()
		if err == nil {
			err = fn(v.(int), batch)
		}
		if err != nil {
			fnErr = err
			return true
		}
		return false
	})

	if fnErr != nil {
		return fnErr
	}
	return err
}

// TrainEpoch makes one pass over the training data, with one optimizer step per batch.
// With a discriminator, each generator step is followed by a discriminator step on the
// generator's output for that batch.
func (t *Trainer) TrainEpoch(ctx context.Context, l *dataset.Loader) (EpochStats, error) {
	st := EpochStats{Epoch: t.epoch, LR: t.lr.Value(t.epoch)}
	var batchLosses stats.Float64Data
	var total float64

	err := t.each(ctx, l, "train", func(b int, batch *isodenoise.Batch) error {
		loss, err := t.trainBatch(batch, st.LR)
		if err != nil {
			return errors.WithMessagef(err, "batch %d", b)
		}

		batchLosses = append(batchLosses, loss)
		total += loss * float64(batch.N)
		st.Samples += batch.N
		t.iteration++
		return nil
	})
	if err != nil {
		return st, errors.WithMessagef(err, "epoch %d", t.epoch)
	}

	st.Batches = len(batchLosses)
	if st.Batches == 0 {
		return st, errors.Wrapf(isodenoise.ErrConfig, "epoch %d had no training data", t.epoch)
	}

	st.Loss = total / float64(st.Samples)
	st.Mean, _ = batchLosses.Mean()
	st.StdDev, _ = batchLosses.StandardDeviation()
	st.Min, _ = batchLosses.Min()
	st.Max, _ = batchLosses.Max()
	return st, nil
}

func (t *Trainer) trainBatch(batch *isodenoise.Batch, lr float64) (float64, error) {
	if batch.Clean == nil {
		return 0, errors.Wrapf(isodenoise.ErrConfig, "training batch has no clean images")
	}

	feed, err := models.Feed(t.gen.Conditioning(), batch)
	if err != nil {
		return 0, err
	}
	feed[inputTarget] = batch.Clean

	m, err := t.machine(batch, tagTrain)
	if err != nil {
		return 0, err
	}

	res, err := m.Run(feed)
	if err != nil {
		return 0, err
	}

	loss := float64(res.Scalar(outputLoss))
	if err := checkFinite(loss); err != nil {
		return 0, err
	}

	if err := t.gOpt.Step(m.Params(), res.Grads, lr); err != nil {
		return 0, err
	}

	if t.disc == nil {
		return loss, nil
	}

	dm, err := t.machine(batch, tagDisc)
	if err != nil {
		return 0, err
	}

	dres, err := dm.Run(map[string][]float32{inputFake: res.Outputs[outputOut], inputTarget: batch.Clean})
	if err != nil {
		return 0, err
	}
	if err := checkFinite(float64(dres.Scalar(outputLoss))); err != nil {
		return 0, errors.WithMessagef(err, "discriminator")
	}

	if err := t.dOpt.Step(dm.Params(), dres.Grads, lr); err != nil {
		return 0, err
	}
	if t.adv.Clips() {
		t.disc.Params().Clip(float32(t.cfg.DClip))
	}

	return loss, nil
}

// Validate runs the model over every sample of l once, without updating it, and returns
// the mean content loss over samples.
func (t *Trainer) Validate(ctx context.Context, l *dataset.Loader) (float64, error) {
	var total float64
	var n int

	err := t.each(ctx, l, "validate", func(b int, batch *isodenoise.Batch) error {
		if batch.Clean == nil {
			return errors.Wrapf(isodenoise.ErrConfig, "batch %d has no clean images to validate against", b)
		}

		feed, err := models.Feed(t.gen.Conditioning(), batch)
		if err != nil {
			return err
		}
		feed[inputTarget] = batch.Clean

		m, err := t.machine(batch, tagEval)
		if err != nil {
			return err
		}

		res, err := m.Run(feed)
		if err != nil {
			return errors.WithMessagef(err, "batch %d", b)
		}

		total += float64(res.Scalar(outputLoss)) * float64(batch.N)
		n += batch.N
		return nil
	})
	if err != nil {
		return 0, err
	} else if n == 0 {
		return 0, errors.Wrapf(isodenoise.ErrConfig, "no validation data")
	}

	loss := total / float64(n)
	return loss, checkFinite(loss)
}

// Run trains from the current epoch up to cfg.Epochs, validating, checkpointing and
// recording history after every epoch. The context is only checked between epochs; if
// it is cancelled, Run returns its error once the last completed epoch is saved.
func (t *Trainer) Run(ctx context.Context, train, val *dataset.Loader) error {
	ckpts := checkpoint.NewManager(t.fs, t.cfg.SaveDir, t.log)
	hist, err := history.Open(t.fs, t.cfg.SaveDir, t.epoch)
	if err != nil {
		return err
	}

	for ; t.epoch < t.cfg.Epochs; t.epoch++ {
		if err := ctx.Err(); err != nil {
			t.log.Infow("stopping", "next_epoch", t.epoch, "reason", err)
			return err
		}

		start := time.Now()

		// epochs run to completion once started
		st, err := t.TrainEpoch(context.Background(), train)
		if err != nil {
			return err
		}

		valLoss, err := t.Validate(context.Background(), val)
		if err != nil {
			return errors.WithMessagef(err, "validating epoch %d", t.epoch)
		}

		isBest := t.tracker.Observe(valLoss)
		if _, err := ckpts.Save(t.snapshot(t.epoch), isBest); err != nil {
			return err
		}

		elapsed := time.Since(start)
		err = hist.Add(history.Record{
			Epoch:     t.epoch,
			TrainLoss: st.Loss,
			ValLoss:   valLoss,
			BestLoss:  t.tracker.Best(),
			LR:        st.LR,
			TrainStd:  st.StdDev,
			Seconds:   elapsed.Seconds(),
		})
		if err != nil {
			return err
		}

		t.log.Infow("epoch done",
			"epoch", t.epoch,
			"lr", st.LR,
			"train_loss", st.Loss,
			"batch_loss_std", st.StdDev,
			"batch_loss_min", st.Min,
			"batch_loss_max", st.Max,
			"val_loss", valLoss,
			"best", isBest,
			"best_loss", t.tracker.Best(),
			"elapsed", elapsed,
		)
	}

	return nil
}
