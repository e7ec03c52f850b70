package optimizers

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/tinylib/msgp/msgp"

	"github.com/sharnoff/isodenoise"
)

// State is the serializable state of an Optimizer.
type State struct {
	Kind string
	// Steps is the number of steps taken, for optimizers that need it.
	Steps int64
	// Slots maps a buffer name to the buffer of each parameter, by parameter name.
	Slots map[string]map[string][]float32
}

func (s *State) check(kind isodenoise.OptimKind) error {
	if s == nil {
		return isodenoise.NewNilArgError("State")
	} else if s.Kind != string(kind) {
		return errors.Wrapf(isodenoise.ErrCheckpoint, "optimizer state is for %q, not %q", s.Kind, kind)
	}
	return nil
}

func copySlots(s map[string][]float32) slots {
	c := make(slots, len(s))
	for k, v := range s {
		c[k] = append([]float32(nil), v...)
	}
	return c
}

func sortedKeys(m map[string][]float32) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EncodeMsg implements msgp.Encodable. Slots are written in sorted order, so that equal
// states encode to equal bytes.
func (s *State) EncodeMsg(en *msgp.Writer) error {
	if err := en.WriteMapHeader(3); err != nil {
		return err
	}

	if err := en.WriteString("kind"); err != nil {
		return err
	} else if err := en.WriteString(s.Kind); err != nil {
		return err
	}

	if err := en.WriteString("steps"); err != nil {
		return err
	} else if err := en.WriteInt64(s.Steps); err != nil {
		return err
	}

	if err := en.WriteString("slots"); err != nil {
		return err
	} else if err := en.WriteMapHeader(uint32(len(s.Slots))); err != nil {
		return err
	}

	names := make([]string, 0, len(s.Slots))
	for n := range s.Slots {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		bufs := s.Slots[n]
		if err := en.WriteString(n); err != nil {
			return err
		} else if err := en.WriteMapHeader(uint32(len(bufs))); err != nil {
			return err
		}

		for _, p := range sortedKeys(bufs) {
			if err := en.WriteString(p); err != nil {
				return err
			} else if err := en.WriteArrayHeader(uint32(len(bufs[p]))); err != nil {
				return err
			}
			for _, v := range bufs[p] {
				if err := en.WriteFloat32(v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// DecodeMsg implements msgp.Decodable
func (s *State) DecodeMsg(dc *msgp.Reader) error {
	sz, err := dc.ReadMapHeader()
	if err != nil {
		return err
	}

	*s = State{Slots: make(map[string]map[string][]float32)}
	for sz > 0 {
		sz--
		key, err := dc.ReadString()
		if err != nil {
			return err
		}

		switch key {
		case "kind":
			if s.Kind, err = dc.ReadString(); err != nil {
				return err
			}
		case "steps":
			if s.Steps, err = dc.ReadInt64(); err != nil {
				return err
			}
		case "slots":
			if err := s.decodeSlots(dc); err != nil {
				return err
			}
		default:
			if err := dc.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *State) decodeSlots(dc *msgp.Reader) error {
	n, err := dc.ReadMapHeader()
	if err != nil {
		return err
	}

	for ; n > 0; n-- {
		name, err := dc.ReadString()
		if err != nil {
			return err
		}

		m, err := dc.ReadMapHeader()
		if err != nil {
			return err
		}

		bufs := make(map[string][]float32, m)
		for ; m > 0; m-- {
			p, err := dc.ReadString()
			if err != nil {
				return err
			}

			l, err := dc.ReadArrayHeader()
			if err != nil {
				return err
			}
			buf := make([]float32, l)
			for i := range buf {
				if buf[i], err = dc.ReadFloat32(); err != nil {
					return err
				}
			}
			bufs[p] = buf
		}
		s.Slots[name] = bufs
	}
	return nil
}
