package nn

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Builder adds operations to a single expression graph.
//
// The first error encountered is stored and every later operation becomes a no-op
// returning nil, so that a network can be described as a straight line of calls and
// checked once at the end, through Error.
type Builder struct {
	g      *G.ExprGraph
	inputs map[string]*G.Node
	params map[*Param]*G.Node
	// params in the order they were first used
	used []*Param
	err  error
}

// NewBuilder starts a new, empty graph.
func NewBuilder() *Builder {
	return &Builder{
		g:      G.NewGraph(),
		inputs: make(map[string]*G.Node),
		params: make(map[*Param]*G.Node),
	}
}

// setError stores the first error given to it
func (b *Builder) setError(e error) {
	if b.err == nil {
		b.err = e
	}
}

// Error returns the first error encountered while building the graph.
func (b *Builder) Error() error {
	return b.err
}

// Graph returns the underlying graph.
func (b *Builder) Graph() *G.ExprGraph {
	return b.g
}

// Input adds a named float32 input of the given shape. Its value is set on each run of
// the compiled Machine.
func (b *Builder) Input(name string, shape ...int) *G.Node {
	if b.err != nil {
		return nil
	} else if _, ok := b.inputs[name]; ok {
		b.setError(errors.Errorf("duplicate input %q", name))
		return nil
	}

	n := G.NewTensor(b.g, tensor.Float32, len(shape), G.WithShape(shape...), G.WithName(name))
	b.inputs[name] = n
	return n
}

// Param returns the node holding p in this graph, adding it on first use.
func (b *Builder) Param(p *Param) *G.Node {
	if b.err != nil {
		return nil
	}

	if n, ok := b.params[p]; ok {
		return n
	}

	val := tensor.New(tensor.WithShape(p.Shape...), tensor.WithBacking(append([]float32(nil), p.Data...)))
	n := G.NewTensor(b.g, tensor.Float32, len(p.Shape), G.WithShape(p.Shape...), G.WithName(p.Name), G.WithValue(val))
	b.params[p] = n
	b.used = append(b.used, p)
	return n
}

// Const returns a float32 scalar constant.
func (b *Builder) Const(v float32) *G.Node {
	return G.NewConstant(v)
}

// ConstTensor returns a tensor backed by data. It is never updated, and gradients are
// not computed for it unless it's asked for.
func (b *Builder) ConstTensor(name string, shape []int, data []float32) *G.Node {
	if b.err != nil {
		return nil
	}

	val := tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
	return G.NewTensor(b.g, tensor.Float32, len(shape), G.WithShape(shape...), G.WithName(name), G.WithValue(val))
}

func (b *Builder) apply(what string, f func() (*G.Node, error)) *G.Node {
	if b.err != nil {
		return nil
	}

	n, err := f()
	if err != nil {
		b.setError(errors.Wrapf(err, "%s", what))
		return nil
	}
	return n
}

// Conv2d convolves x (N, C, H, W) with filter (out, C, kh, kw), with "same"-style padding
// of kh/2 and kw/2.
func (b *Builder) Conv2d(x, filter *G.Node, stride int) *G.Node {
	return b.apply("conv2d", func() (*G.Node, error) {
		fs := filter.Shape()
		kh, kw := fs[2], fs[3]
		return G.Conv2d(x, filter, tensor.Shape{kh, kw}, []int{kh / 2, kw / 2}, []int{stride, stride}, []int{1, 1})
	})
}

// AddBias adds a per-channel bias of shape (1, C, 1, 1) to x (N, C, H, W).
func (b *Builder) AddBias(x, bias *G.Node) *G.Node {
	return b.apply("bias", func() (*G.Node, error) {
		return G.BroadcastAdd(x, bias, nil, []byte{0, 2, 3})
	})
}

// channelMap reshapes a per-sample, per-channel value c (N, C) to (N, C, 1, 1).
func (b *Builder) channelMap(c *G.Node) (*G.Node, error) {
	s := c.Shape()
	return G.Reshape(c, tensor.Shape{s[0], s[1], 1, 1})
}

// AddChannel adds c (N, C) to every spatial position of x (N, C, H, W).
func (b *Builder) AddChannel(x, c *G.Node) *G.Node {
	return b.apply("channel add", func() (*G.Node, error) {
		m, err := b.channelMap(c)
		if err != nil {
			return nil, err
		}
		return G.BroadcastAdd(x, m, nil, []byte{2, 3})
	})
}

// MulChannel multiplies every spatial position of x (N, C, H, W) by c (N, C).
func (b *Builder) MulChannel(x, c *G.Node) *G.Node {
	return b.apply("channel mul", func() (*G.Node, error) {
		m, err := b.channelMap(c)
		if err != nil {
			return nil, err
		}
		return G.BroadcastHadamardProd(x, m, nil, []byte{2, 3})
	})
}

// MatMul multiplies the matrices x (N, in) and w (in, out).
func (b *Builder) MatMul(x, w *G.Node) *G.Node {
	return b.apply("matmul", func() (*G.Node, error) { return G.Mul(x, w) })
}

// AddRow adds the row vector bias (1, out) to every row of x (N, out).
func (b *Builder) AddRow(x, bias *G.Node) *G.Node {
	return b.apply("row add", func() (*G.Node, error) {
		return G.BroadcastAdd(x, bias, nil, []byte{0})
	})
}

func (b *Builder) Add(x, y *G.Node) *G.Node {
	return b.apply("add", func() (*G.Node, error) { return G.Add(x, y) })
}

func (b *Builder) Sub(x, y *G.Node) *G.Node {
	return b.apply("sub", func() (*G.Node, error) { return G.Sub(x, y) })
}

// Hadamard is the elementwise product.
func (b *Builder) Hadamard(x, y *G.Node) *G.Node {
	return b.apply("hadamard", func() (*G.Node, error) { return G.HadamardProd(x, y) })
}

// Scale multiplies every value of x by s.
func (b *Builder) Scale(x *G.Node, s float32) *G.Node {
	return b.apply("scale", func() (*G.Node, error) { return G.Mul(x, b.Const(s)) })
}

// AddScalar adds s to every value of x.
func (b *Builder) AddScalar(x *G.Node, s float32) *G.Node {
	return b.apply("scalar add", func() (*G.Node, error) { return G.Add(x, b.Const(s)) })
}

func (b *Builder) LeakyReLU(x *G.Node, alpha float64) *G.Node {
	return b.apply("leaky relu", func() (*G.Node, error) { return G.LeakyRelu(x, alpha) })
}

func (b *Builder) ReLU(x *G.Node) *G.Node {
	return b.apply("relu", func() (*G.Node, error) { return G.Rectify(x) })
}

func (b *Builder) Sigmoid(x *G.Node) *G.Node {
	return b.apply("sigmoid", func() (*G.Node, error) { return G.Sigmoid(x) })
}

func (b *Builder) Square(x *G.Node) *G.Node {
	return b.apply("square", func() (*G.Node, error) { return G.Square(x) })
}

func (b *Builder) Sqrt(x *G.Node) *G.Node {
	return b.apply("sqrt", func() (*G.Node, error) { return G.Sqrt(x) })
}

func (b *Builder) Abs(x *G.Node) *G.Node {
	return b.apply("abs", func() (*G.Node, error) { return G.Abs(x) })
}

// Mean averages x along the given axes, or over every value when none are given.
func (b *Builder) Mean(x *G.Node, axes ...int) *G.Node {
	return b.apply("mean", func() (*G.Node, error) { return G.Mean(x, axes...) })
}

// GlobalAvgPool averages x (N, C, H, W) over its spatial axes, giving (N, C). The
// spatial axes are flattened first, since tensor reductions over several axes at once
// index out of range.
func (b *Builder) GlobalAvgPool(x *G.Node) *G.Node {
	return b.apply("global average pool", func() (*G.Node, error) {
		s := x.Shape()
		if len(s) != 4 {
			return nil, errors.Errorf("expected a 4D input, got shape %v", s)
		}

		flat, err := G.Reshape(x, tensor.Shape{s[0], s[1], s[2] * s[3]})
		if err != nil {
			return nil, err
		}
		return G.Mean(flat, 2)
	})
}

// Concat joins the nodes along the channel axis.
func (b *Builder) Concat(xs ...*G.Node) *G.Node {
	return b.apply("concat", func() (*G.Node, error) { return G.Concat(1, xs...) })
}

func (b *Builder) Reshape(x *G.Node, shape ...int) *G.Node {
	return b.apply("reshape", func() (*G.Node, error) { return G.Reshape(x, tensor.Shape(shape)) })
}
