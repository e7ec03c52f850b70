package dataset

import (
	"context"
	"io"
	"math/rand"
	"sync"

	"github.com/pkg/errors"

	"github.com/sharnoff/isodenoise"
)

// LoaderOptions configure a Loader.
type LoaderOptions struct {
	BatchSize int
	// Shuffle draws a new sample order at the start of every epoch.
	Shuffle bool
	// Seed seeds the shuffling.
	Seed int64
	// Workers is the number of goroutines decoding batches in the background. With zero
	// workers, batches are decoded on the goroutine calling Next.
	Workers int
	// Prefetch bounds the number of batches being decoded or waiting to be consumed.
	// It defaults to twice the number of workers.
	Prefetch int
}

// Loader turns a Dataset into batches, one pass over the dataset per epoch.
type Loader struct {
	ds   Dataset
	opts LoaderOptions
	rng  *rand.Rand
}

// NewLoader returns a Loader over ds.
func NewLoader(ds Dataset, opts LoaderOptions) (*Loader, error) {
	if ds == nil {
		return nil, isodenoise.NewNilArgError("Dataset")
	} else if opts.BatchSize < 1 {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "batch size must be >= 1 (%d)", opts.BatchSize)
	} else if opts.Workers < 0 {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "workers must be >= 0 (%d)", opts.Workers)
	}

	if opts.Prefetch < 1 {
		opts.Prefetch = 2 * opts.Workers
		if opts.Prefetch < 1 {
			opts.Prefetch = 1
		}
	}

	return &Loader{
		ds:   ds,
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)),
	}, nil
}

// Len returns the number of batches in one epoch. The last batch may be smaller than the
// batch size.
func (l *Loader) Len() int {
	return (l.ds.Len() + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// Samples returns the number of samples in one epoch.
func (l *Loader) Samples() int {
	return l.ds.Len()
}

// order returns the sample order of the next epoch, split into batches.
func (l *Loader) order() [][]int {
	n := l.ds.Len()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	if l.opts.Shuffle {
		l.rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}

	chunks := make([][]int, 0, l.Len())
	for start := 0; start < n; start += l.opts.BatchSize {
		end := start + l.opts.BatchSize
		if end > n {
			end = n
		}
		chunks = append(chunks, idx[start:end])
	}
	return chunks
}

func (l *Loader) assemble(indices []int) (*isodenoise.Batch, error) {
	samples := make([]isodenoise.Sample, len(indices))
	for i, idx := range indices {
		s, err := l.ds.Get(idx)
		if err != nil {
			return nil, err
		}
		samples[i] = s
	}
	return isodenoise.Collate(indices, samples)
}

type result struct {
	batch *isodenoise.Batch
	err   error
}

// Epoch is one pass over the dataset. Batches are returned by Next strictly in order,
// regardless of which worker finished decoding first.
type Epoch struct {
	l      *Loader
	ctx    context.Context
	chunks [][]int
	next   int

	// nil when decoding synchronously
	slots  []chan result
	window chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Epoch starts a new pass over the dataset, shuffling it if configured to. The Epoch
// must be closed once it is no longer needed.
func (l *Loader) Epoch(ctx context.Context) *Epoch {
	e := &Epoch{
		l:      l,
		ctx:    ctx,
		chunks: l.order(),
		done:   make(chan struct{}),
	}

	if l.opts.Workers > 0 && len(e.chunks) > 0 {
		e.start()
	}
	return e
}

func (e *Epoch) start() {
	n := len(e.chunks)
	e.slots = make([]chan result, n)
	for i := range e.slots {
		// buffered, so that workers never block on a batch nobody will read
		e.slots[i] = make(chan result, 1)
	}
	e.window = make(chan struct{}, e.l.opts.Prefetch)

	jobs := make(chan int)
	go func() {
		defer close(jobs)
		for b := 0; b < n; b++ {
			select {
			case e.window <- struct{}{}:
			case <-e.done:
				return
			}

			select {
			case jobs <- b:
			case <-e.done:
				return
			}
		}
	}()

	for w := 0; w < e.l.opts.Workers; w++ {
		go func() {
			for b := range jobs {
				batch, err := e.l.assemble(e.chunks[b])
				e.slots[b] <- result{batch, err}
			}
		}()
	}
}

// Len returns the number of batches in the epoch.
func (e *Epoch) Len() int {
	return len(e.chunks)
}

// Next returns the next batch, or io.EOF once every batch has been returned. Errors
// from decoding are returned at the position of the failing batch.
func (e *Epoch) Next() (*isodenoise.Batch, error) {
	if e.next >= len(e.chunks) {
		return nil, io.EOF
	}

	b := e.next
	e.next++

	var r result
	if e.slots == nil {
		if err := e.ctx.Err(); err != nil {
			return nil, err
		}
		r.batch, r.err = e.l.assemble(e.chunks[b])
	} else {
		select {
		case r = <-e.slots[b]:
			<-e.window
		case <-e.ctx.Done():
			return nil, e.ctx.Err()
		}
	}

	if r.err != nil {
		return nil, errors.WithMessagef(r.err, "batch %d", b)
	}
	return r.batch, nil
}

// Close stops any background decoding. It is safe to call more than once.
func (e *Epoch) Close() {
	e.once.Do(func() { close(e.done) })
}

// Each runs fn on every batch of a new epoch, in order. It stops at the first error.
func (l *Loader) Each(ctx context.Context, fn func(b int, batch *isodenoise.Batch) error) error {
	e := l.Epoch(ctx)
	defer e.Close()

	for b := 0; ; b++ {
		batch, err := e.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}

		if err := fn(b, batch); err != nil {
			return err
		}
	}
}
