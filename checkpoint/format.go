// Package checkpoint saves and restores training state.
//
// A checkpoint is a msgpack map, compressed with the snappy framing format. Fields are
// keyed by name and unknown keys are skipped, so that older readers can load files with
// fields they don't know about, as long as the format version isn't newer than theirs.
package checkpoint

import (
	"io"
	"math"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/tinylib/msgp/msgp"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/nn"
	"github.com/sharnoff/isodenoise/optimizers"
)

// Version is the current checkpoint format version.
const Version = 1

// Checkpoint is the state of a training run at the end of an epoch.
type Checkpoint struct {
	Version int
	// Epoch is the last completed epoch; training resumes at Epoch+1.
	Epoch     int
	Iteration int64
	// BestLoss is the lowest validation loss seen so far, or +Inf.
	BestLoss float64

	Model     []*nn.Param
	Optimizer *optimizers.State

	// Discriminator and DOptimizer are nil unless a discriminator was trained.
	Discriminator []*nn.Param
	DOptimizer    *optimizers.State
}

// New returns an empty Checkpoint of the current version.
func New() *Checkpoint {
	return &Checkpoint{Version: Version, BestLoss: math.Inf(1)}
}

func encodeParams(en *msgp.Writer, ps []*nn.Param) error {
	if err := en.WriteArrayHeader(uint32(len(ps))); err != nil {
		return err
	}
	for _, p := range ps {
		if err := p.EncodeMsg(en); err != nil {
			return err
		}
	}
	return nil
}

func decodeParams(dc *msgp.Reader) ([]*nn.Param, error) {
	n, err := dc.ReadArrayHeader()
	if err != nil {
		return nil, err
	}

	ps := make([]*nn.Param, n)
	for i := range ps {
		ps[i] = new(nn.Param)
		if err := ps[i].DecodeMsg(dc); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

// EncodeMsg implements msgp.Encodable
func (c *Checkpoint) EncodeMsg(en *msgp.Writer) error {
	fields := uint32(6)
	if c.Discriminator != nil {
		fields += 2
	}

	if err := en.WriteMapHeader(fields); err != nil {
		return err
	}

	if err := en.WriteString("version"); err != nil {
		return err
	} else if err := en.WriteInt(c.Version); err != nil {
		return err
	}

	if err := en.WriteString("epoch"); err != nil {
		return err
	} else if err := en.WriteInt(c.Epoch); err != nil {
		return err
	}

	if err := en.WriteString("iteration"); err != nil {
		return err
	} else if err := en.WriteInt64(c.Iteration); err != nil {
		return err
	}

	if err := en.WriteString("best_loss"); err != nil {
		return err
	} else if err := en.WriteFloat64(c.BestLoss); err != nil {
		return err
	}

	if err := en.WriteString("model"); err != nil {
		return err
	} else if err := encodeParams(en, c.Model); err != nil {
		return err
	}

	if err := en.WriteString("optimizer"); err != nil {
		return err
	} else if err := c.Optimizer.EncodeMsg(en); err != nil {
		return err
	}

	if c.Discriminator == nil {
		return nil
	}

	if err := en.WriteString("discriminator"); err != nil {
		return err
	} else if err := encodeParams(en, c.Discriminator); err != nil {
		return err
	}

	if err := en.WriteString("d_optimizer"); err != nil {
		return err
	}
	if c.DOptimizer == nil {
		return en.WriteNil()
	}
	return c.DOptimizer.EncodeMsg(en)
}

// DecodeMsg implements msgp.Decodable
func (c *Checkpoint) DecodeMsg(dc *msgp.Reader) error {
	sz, err := dc.ReadMapHeader()
	if err != nil {
		return err
	}

	*c = Checkpoint{BestLoss: math.Inf(1)}
	for sz > 0 {
		sz--
		key, err := dc.ReadString()
		if err != nil {
			return err
		}

		switch key {
		case "version":
			c.Version, err = dc.ReadInt()
		case "epoch":
			c.Epoch, err = dc.ReadInt()
		case "iteration":
			c.Iteration, err = dc.ReadInt64()
		case "best_loss":
			c.BestLoss, err = dc.ReadFloat64()
		case "model":
			c.Model, err = decodeParams(dc)
		case "optimizer":
			c.Optimizer = new(optimizers.State)
			err = c.Optimizer.DecodeMsg(dc)
		case "discriminator":
			c.Discriminator, err = decodeParams(dc)
		case "d_optimizer":
			if dc.IsNil() {
				err = dc.ReadNil()
			} else {
				c.DOptimizer = new(optimizers.State)
				err = c.DOptimizer.DecodeMsg(dc)
			}
		default:
			err = dc.Skip()
		}

		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
	}
	return nil
}

// validate checks the fields every checkpoint must have.
func (c *Checkpoint) validate() error {
	if c.Version < 1 {
		return errors.Wrapf(isodenoise.ErrCheckpoint, "missing format version")
	} else if c.Version > Version {
		return errors.Wrapf(isodenoise.ErrCheckpoint, "format version %d is newer than the supported %d", c.Version, Version)
	} else if c.Model == nil {
		return errors.Wrapf(isodenoise.ErrCheckpoint, "no model parameters")
	} else if c.Optimizer == nil {
		return errors.Wrapf(isodenoise.ErrCheckpoint, "no optimizer state")
	} else if c.Epoch < 0 {
		return errors.Wrapf(isodenoise.ErrCheckpoint, "negative epoch %d", c.Epoch)
	}
	return nil
}

// Write encodes c to w.
func Write(w io.Writer, c *Checkpoint) error {
	if c.Optimizer == nil {
		return isodenoise.NewNilArgError("Checkpoint optimizer state")
	}

	sw := snappy.NewBufferedWriter(w)
	en := msgp.NewWriter(sw)
	if err := c.EncodeMsg(en); err != nil {
		return errors.Wrapf(err, "Failed to encode checkpoint")
	} else if err := en.Flush(); err != nil {
		return errors.Wrapf(err, "Failed to flush checkpoint")
	}
	return errors.Wrapf(sw.Close(), "Failed to flush checkpoint")
}

// Read decodes a checkpoint from r. Malformed or incompatible data is reported as
// isodenoise.ErrCheckpoint.
func Read(r io.Reader) (*Checkpoint, error) {
	c := new(Checkpoint)
	if err := c.DecodeMsg(msgp.NewReader(snappy.NewReader(r))); err != nil {
		return nil, errors.Wrapf(isodenoise.ErrCheckpoint, "decoding: %v", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}
