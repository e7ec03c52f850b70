package nn

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Machine is a graph compiled for one set of input shapes.
type Machine struct {
	vm G.VM

	inputs map[string]*G.Node
	// outputs are read while the tape runs, before later instructions reuse their
	// memory
	outputs map[string]*G.Value

	params []*Param
	nodes  []*G.Node

	wrt      []*Param
	wrtNodes []*G.Node
}

// Result holds the values read back from one run of a Machine. They are copies, and
// remain valid after later runs.
type Result struct {
	Outputs map[string][]float32
	// Grads[i] is the gradient of the loss with respect to the i-th parameter the
	// Machine was compiled for.
	Grads [][]float32
}

// Scalar returns the first value of the named output. It's meant for losses.
func (r *Result) Scalar(name string) float32 {
	vs := r.Outputs[name]
	if len(vs) == 0 {
		return 0
	}
	return vs[0]
}

// Compile finishes the graph. The named outputs are copied out on every run, as soon as
// they are computed. When wrt is not empty, loss must be a scalar node and its gradients
// with respect to wrt are computed on every run; parameters used by the graph but not in
// wrt are left constant.
func (b *Builder) Compile(outputs map[string]*G.Node, loss *G.Node, wrt []*Param) (*Machine, error) {
	if b.err != nil {
		return nil, b.err
	}

	m := &Machine{
		inputs:  b.inputs,
		outputs: make(map[string]*G.Value, len(outputs)),
		params:  b.used,
		wrt:     wrt,
	}

	for _, p := range b.used {
		m.nodes = append(m.nodes, b.params[p])
	}

	for name, n := range outputs {
		if n == nil {
			return nil, errors.Errorf("output %q is nil", name)
		}
		m.outputs[name] = new(G.Value)
		G.Read(n, m.outputs[name])
	}

	if len(wrt) == 0 {
		m.vm = G.NewTapeMachine(b.g)
		return m, nil
	}

	if loss == nil {
		return nil, errors.Errorf("can't compute gradients without a loss")
	}

	for _, p := range wrt {
		n, ok := b.params[p]
		if !ok {
			return nil, errors.Errorf("parameter %q is not used by the graph", p.Name)
		}
		m.wrtNodes = append(m.wrtNodes, n)
	}

	if _, err := G.Grad(loss, m.wrtNodes...); err != nil {
		return nil, errors.Wrapf(err, "Failed to differentiate loss")
	}

	m.vm = G.NewTapeMachine(b.g, G.BindDualValues(m.wrtNodes...))
	return m, nil
}

// Params returns the parameters the Machine computes gradients for.
func (m *Machine) Params() []*Param {
	return m.wrt
}

// Run sets the inputs, runs the graph with the current parameter values and reads back
// the outputs and gradients. Every input must be fed, with exactly as many values as its
// shape holds.
func (m *Machine) Run(feed map[string][]float32) (*Result, error) {
	for name, n := range m.inputs {
		data, ok := feed[name]
		if !ok {
			return nil, errors.Errorf("input %q was not fed", name)
		} else if len(data) != n.Shape().TotalSize() {
			return nil, errors.Errorf("input %q got %d values for shape %v", name, len(data), n.Shape())
		}

		t := tensor.New(tensor.WithShape(n.Shape()...), tensor.WithBacking(data))
		if err := G.Let(n, t); err != nil {
			return nil, errors.Wrapf(err, "Failed to set input %q", name)
		}
	}

	for i, p := range m.params {
		copy(m.nodes[i].Value().Data().([]float32), p.Data)
	}

	defer m.vm.Reset()
	if err := m.vm.RunAll(); err != nil {
		return nil, errors.Wrapf(err, "Failed to run graph")
	}

	r := &Result{Outputs: make(map[string][]float32, len(m.outputs))}
	for name, v := range m.outputs {
		if *v == nil {
			return nil, errors.Errorf("output %q was not read", name)
		}

		switch d := (*v).Data().(type) {
		case float32:
			r.Outputs[name] = []float32{d}
		case []float32:
			r.Outputs[name] = append([]float32(nil), d...)
		default:
			return nil, errors.Errorf("output %q has unexpected type %T", name, d)
		}
	}

	for i, n := range m.wrtNodes {
		gv, err := n.Grad()
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to get gradient of %q", m.wrt[i].Name)
		}

		gd := gv.Data().([]float32)
		r.Grads = append(r.Grads, append([]float32(nil), gd...))
		for j := range gd {
			gd[j] = 0
		}
	}

	return r, nil
}

// Close releases the resources held by the Machine.
func (m *Machine) Close() error {
	return m.vm.Close()
}

// Key identifies the Machine compiled for one input shape and purpose.
type Key struct {
	N, C, H, W int
	Tag        string
}

// Cache compiles a Machine the first time each Key is asked for, and reuses it after
// that.
type Cache struct {
	build    func(Key) (*Machine, error)
	machines map[Key]*Machine
}

// NewCache returns a Cache that compiles Machines with build.
func NewCache(build func(Key) (*Machine, error)) *Cache {
	return &Cache{build: build, machines: make(map[Key]*Machine)}
}

// Get returns the Machine for k, compiling it if needed.
func (c *Cache) Get(k Key) (*Machine, error) {
	if m, ok := c.machines[k]; ok {
		return m, nil
	}

	m, err := c.build(k)
	if err != nil {
		return nil, errors.WithMessagef(err, "building graph for %dx%dx%dx%d (%s)", k.N, k.C, k.H, k.W, k.Tag)
	}

	c.machines[k] = m
	return m, nil
}

// Close closes every Machine in the cache and empties it.
func (c *Cache) Close() error {
	var first error
	for k, m := range c.machines {
		if err := m.Close(); err != nil && first == nil {
			first = err
		}
		delete(c.machines, k)
	}
	return first
}
