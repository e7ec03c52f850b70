// Package nn holds the trainable parameters of a network and builds them into gorgonia
// expression graphs.
//
// Parameters live outside of any graph, as plain float32 slices. A graph is compiled
// once per input shape into a Machine, which copies the current parameter values in
// before every run and hands the gradients back out afterwards. This lets the
// optimizers, checkpoints and the several graphs built for one network (training,
// evaluation, different batch sizes) share a single copy of the weights.
package nn

import (
	"math/rand"

	"github.com/pkg/errors"
	"github.com/tinylib/msgp/msgp"

	"github.com/sharnoff/isodenoise"
	"github.com/sharnoff/isodenoise/initializers"
)

// Param is a named trainable tensor.
type Param struct {
	Name  string
	Shape []int
	Data  []float32
}

// Size returns the number of values in the parameter.
func (p *Param) Size() int {
	return shapeSize(p.Shape)
}

func shapeSize(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// EncodeMsg implements msgp.Encodable
func (p *Param) EncodeMsg(en *msgp.Writer) error {
	if err := en.WriteMapHeader(3); err != nil {
		return err
	}

	if err := en.WriteString("name"); err != nil {
		return err
	} else if err := en.WriteString(p.Name); err != nil {
		return err
	}

	if err := en.WriteString("shape"); err != nil {
		return err
	} else if err := en.WriteArrayHeader(uint32(len(p.Shape))); err != nil {
		return err
	}
	for _, d := range p.Shape {
		if err := en.WriteInt(d); err != nil {
			return err
		}
	}

	if err := en.WriteString("data"); err != nil {
		return err
	} else if err := en.WriteArrayHeader(uint32(len(p.Data))); err != nil {
		return err
	}
	for _, v := range p.Data {
		if err := en.WriteFloat32(v); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMsg implements msgp.Decodable
func (p *Param) DecodeMsg(dc *msgp.Reader) error {
	sz, err := dc.ReadMapHeader()
	if err != nil {
		return err
	}

	for sz > 0 {
		sz--
		key, err := dc.ReadString()
		if err != nil {
			return err
		}

		switch key {
		case "name":
			if p.Name, err = dc.ReadString(); err != nil {
				return err
			}
		case "shape":
			n, err := dc.ReadArrayHeader()
			if err != nil {
				return err
			}
			p.Shape = make([]int, n)
			for i := range p.Shape {
				if p.Shape[i], err = dc.ReadInt(); err != nil {
					return err
				}
			}
		case "data":
			n, err := dc.ReadArrayHeader()
			if err != nil {
				return err
			}
			p.Data = make([]float32, n)
			for i := range p.Data {
				if p.Data[i], err = dc.ReadFloat32(); err != nil {
					return err
				}
			}
		default:
			if err := dc.Skip(); err != nil {
				return err
			}
		}
	}

	if len(p.Data) != p.Size() {
		return errors.Wrapf(isodenoise.ErrCheckpoint, "parameter %q has %d values for shape %v", p.Name, len(p.Data), p.Shape)
	}
	return nil
}

// Params is an ordered set of uniquely named parameters.
type Params struct {
	list   []*Param
	byName map[string]*Param
}

// NewParams returns an empty set.
func NewParams() *Params {
	return &Params{byName: make(map[string]*Param)}
}

// Add creates a parameter of the given shape, filled by init. fanIn and fanOut are passed
// through to the Initializer. Add panics if the name is already taken; parameter names
// are fixed by the code that builds a network, so a clash is a programming error.
func (ps *Params) Add(name string, shape []int, init initializers.Initializer, fanIn, fanOut int, rng *rand.Rand) *Param {
	if _, ok := ps.byName[name]; ok {
		panic(errors.Errorf("duplicate parameter name %q", name))
	}

	p := &Param{
		Name:  name,
		Shape: append([]int(nil), shape...),
		Data:  make([]float32, shapeSize(shape)),
	}
	init.Set(fanIn, fanOut, p.Data, rng)

	ps.list = append(ps.list, p)
	ps.byName[name] = p
	return p
}

// List returns the parameters in the order they were added.
func (ps *Params) List() []*Param {
	return ps.list
}

// Len returns the number of parameters.
func (ps *Params) Len() int {
	return len(ps.list)
}

// Get returns the parameter with the given name, or nil.
func (ps *Params) Get(name string) *Param {
	return ps.byName[name]
}

// Count returns the total number of trainable values.
func (ps *Params) Count() int {
	var n int
	for _, p := range ps.list {
		n += p.Size()
	}
	return n
}

// Snapshot returns a deep copy of every parameter.
func (ps *Params) Snapshot() []*Param {
	out := make([]*Param, len(ps.list))
	for i, p := range ps.list {
		out[i] = &Param{
			Name:  p.Name,
			Shape: append([]int(nil), p.Shape...),
			Data:  append([]float32(nil), p.Data...),
		}
	}
	return out
}

// Load copies saved values into the set. Every parameter must be present in saved, with
// the same shape, and saved may not hold any parameter the set doesn't have. Failures
// wrap isodenoise.ErrCheckpoint, and leave the set unchanged.
func (ps *Params) Load(saved []*Param) error {
	if len(saved) != len(ps.list) {
		return errors.Wrapf(isodenoise.ErrCheckpoint, "got %d parameters, expected %d", len(saved), len(ps.list))
	}

	for _, s := range saved {
		p := ps.byName[s.Name]
		if p == nil {
			return errors.Wrapf(isodenoise.ErrCheckpoint, "unexpected parameter %q", s.Name)
		} else if !sameShape(p.Shape, s.Shape) || len(s.Data) != len(p.Data) {
			return errors.Wrapf(isodenoise.ErrCheckpoint, "parameter %q has shape %v, expected %v", s.Name, s.Shape, p.Shape)
		}
	}

	for _, s := range saved {
		copy(ps.byName[s.Name].Data, s.Data)
	}
	return nil
}

// Clip clamps every value of every parameter to [-c, c].
func (ps *Params) Clip(c float32) {
	for _, p := range ps.list {
		for i, v := range p.Data {
			if v > c {
				p.Data[i] = c
			} else if v < -c {
				p.Data[i] = -c
			}
		}
	}
}

// Scope adds parameters to a set under a common name prefix.
type Scope struct {
	ps     *Params
	rng    *rand.Rand
	prefix string
	// nil is Kaiming uniform
	conv initializers.Initializer
}

// NewScope returns the root Scope of ps. Parameters added through it are initialized from
// rng, in the order they are added.
func NewScope(ps *Params, rng *rand.Rand) Scope {
	return Scope{ps: ps, rng: rng}
}

// Sub returns a Scope whose parameter names are prefixed with name.
func (s Scope) Sub(name string) Scope {
	s.prefix = s.prefix + name + "."
	return s
}

// WithConvInit returns a Scope whose convolutions draw their filters from init, before
// scaling by InitScale.
func (s Scope) WithConvInit(init initializers.Initializer) Scope {
	s.conv = init
	return s
}

// Add adds a parameter named by the scope's prefix and name.
func (s Scope) Add(name string, shape []int, init initializers.Initializer, fanIn, fanOut int) *Param {
	return s.ps.Add(s.prefix+name, shape, init, fanIn, fanOut, s.rng)
}
