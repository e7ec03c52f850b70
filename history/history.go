// Package history records per-epoch training statistics to a CSV table and renders the
// loss curves as a PNG plot.
package history

import (
	"math"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	// FileName is the history table written to the save directory.
	FileName = "history.csv"
	// PlotFileName is the loss plot written next to it.
	PlotFileName = "loss.png"
)

// Record is one row of the history table.
type Record struct {
	Epoch     int     `csv:"epoch"`
	TrainLoss float64 `csv:"train_loss"`
	ValLoss   float64 `csv:"val_loss"`
	BestLoss  float64 `csv:"best_loss"`
	LR        float64 `csv:"lr"`
	// TrainStd is the standard deviation of the batch losses of the epoch.
	TrainStd float64 `csv:"train_loss_std"`
	Seconds  float64 `csv:"seconds"`
}

// History is the table of epochs completed so far, kept in memory and rewritten in full
// after every epoch.
type History struct {
	fs      afero.Fs
	dir     string
	records []Record
}

// Open returns the history of the run saved in dir. An existing table is read back, so
// that a resumed run extends it; records from epoch start onwards are dropped since they
// will be trained again.
func Open(fs afero.Fs, dir string, start int) (*History, error) {
	h := &History{fs: fs, dir: dir}

	path := h.Path()
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to stat %q", path)
	} else if !exists {
		return h, nil
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open history")
	}
	defer f.Close()

	var records []Record
	if err := gocsv.Unmarshal(f, &records); err != nil {
		return nil, errors.Wrapf(err, "Failed to read history %q", path)
	}

	for _, r := range records {
		if r.Epoch < start {
			h.records = append(h.records, r)
		}
	}
	sort.SliceStable(h.records, func(i, j int) bool { return h.records[i].Epoch < h.records[j].Epoch })
	return h, nil
}

// Path returns the location of the history table.
func (h *History) Path() string {
	return filepath.Join(h.dir, FileName)
}

// PlotPath returns the location of the loss plot.
func (h *History) PlotPath() string {
	return filepath.Join(h.dir, PlotFileName)
}

// Records returns the recorded epochs in order.
func (h *History) Records() []Record {
	return h.records
}

// Add appends r and rewrites both the table and the plot.
func (h *History) Add(r Record) error {
	h.records = append(h.records, r)

	if err := h.fs.MkdirAll(h.dir, 0755); err != nil {
		return errors.Wrapf(err, "Failed to create directory %q", h.dir)
	}
	if err := h.writeTable(); err != nil {
		return err
	}
	return h.writePlot()
}

func (h *History) writeTable() error {
	f, err := h.fs.Create(h.Path())
	if err != nil {
		return errors.Wrapf(err, "Failed to create history")
	}

	if err := gocsv.Marshal(&h.records, f); err != nil {
		f.Close()
		return errors.Wrapf(err, "Failed to write history %q", h.Path())
	}
	return errors.Wrapf(f.Close(), "Failed to close history %q", h.Path())
}

// points returns the finite values of field, by epoch.
func (h *History) points(field func(Record) float64) plotter.XYs {
	var xys plotter.XYs
	for _, r := range h.records {
		v := field(r)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(r.Epoch), Y: v})
	}
	return xys
}

func (h *History) writePlot() error {
	p, err := plot.New()
	if err != nil {
		return errors.Wrapf(err, "Failed to create plot")
	}
	p.Title.Text = "loss"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"

	series := []struct {
		name  string
		field func(Record) float64
	}{
		{"train", func(r Record) float64 { return r.TrainLoss }},
		{"validation", func(r Record) float64 { return r.ValLoss }},
	}

	for i, s := range series {
		xys := h.points(s.field)
		if len(xys) == 0 {
			continue
		}

		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "Failed to plot %s loss", s.name)
		}
		if i > 0 {
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return errors.Wrapf(err, "Failed to render plot")
	}

	f, err := h.fs.Create(h.PlotPath())
	if err != nil {
		return errors.Wrapf(err, "Failed to create plot file")
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "Failed to write plot %q", h.PlotPath())
	}
	return errors.Wrapf(f.Close(), "Failed to close plot %q", h.PlotPath())
}
