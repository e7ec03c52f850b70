package checkpoint

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sharnoff/isodenoise"
)

const (
	// FilePattern names the checkpoint written at the end of each epoch.
	FilePattern = "checkpoint_%03d.pth.tar"
	// BestFileName is the copy of the checkpoint with the lowest validation loss.
	BestFileName = "model_best.pth.tar"
)

// Manager writes checkpoints into a save directory.
type Manager struct {
	fs  afero.Fs
	dir string
	log *zap.SugaredLogger
}

// NewManager returns a Manager writing into dir, which is created on the first Save.
func NewManager(fs afero.Fs, dir string, log *zap.SugaredLogger) *Manager {
	return &Manager{fs: fs, dir: dir, log: log}
}

// Dir returns the save directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns the path of the checkpoint for the given epoch.
func (m *Manager) Path(epoch int) string {
	return filepath.Join(m.dir, fmt.Sprintf(FilePattern, epoch))
}

// BestPath returns the path of the best checkpoint.
func (m *Manager) BestPath() string {
	return filepath.Join(m.dir, BestFileName)
}

// Save writes c as the checkpoint of its epoch. When isBest is set, the written file is
// then copied byte for byte to the best checkpoint. It returns the path written.
func (m *Manager) Save(c *Checkpoint, isBest bool) (string, error) {
	if err := m.fs.MkdirAll(m.dir, 0755); err != nil {
		return "", errors.Wrapf(err, "Failed to create save directory %q", m.dir)
	}

	path := m.Path(c.Epoch)
	tmp := path + ".tmp"

	f, err := m.fs.Create(tmp)
	if err != nil {
		return "", errors.Wrapf(err, "Failed to create checkpoint file")
	}

	if err := Write(f, c); err != nil {
		f.Close()
		return "", errors.WithMessagef(err, "writing %q", tmp)
	} else if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "Failed to close checkpoint %q", tmp)
	}

	if err := m.fs.Rename(tmp, path); err != nil {
		return "", errors.Wrapf(err, "Failed to move checkpoint into place")
	}

	if info, err := m.fs.Stat(path); err == nil {
		m.log.Infow("saved checkpoint", "path", path, "epoch", c.Epoch, "size", humanize.Bytes(uint64(info.Size())))
	}

	if isBest {
		if err := copyFile(m.fs, path, m.BestPath()); err != nil {
			return path, err
		}
		m.log.Infow("new best model", "path", m.BestPath(), "loss", c.BestLoss)
	}

	return path, nil
}

func copyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return errors.Wrapf(err, "Failed to open %q", src)
	}
	defer in.Close()

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %q", dst)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "Failed to copy %q to %q", src, dst)
	}
	return errors.Wrapf(out.Close(), "Failed to close %q", dst)
}

// Load reads the checkpoint file at path.
func Load(fs afero.Fs, path string) (*Checkpoint, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open checkpoint")
	}
	defer f.Close()

	c, err := Read(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "checkpoint %q", path)
	}
	return c, nil
}

// Resumed is a checkpoint loaded for resuming, along with the configuration of the run
// that wrote it.
type Resumed struct {
	Checkpoint *Checkpoint
	Config     *isodenoise.Config
	// Path and ConfigPath are the files that were read.
	Path       string
	ConfigPath string
}

// Resume loads a checkpoint and the run configuration saved next to it.
//
// If path is a file, it is the checkpoint, and the configuration is looked for in the
// parent of its directory first and then in its directory. If path is a directory, the
// checkpoint is <path>/model_best.pth.tar and the configuration is
// <path>/../denoising.config, falling back to <path>/denoising.config.
func Resume(fs afero.Fs, path string) (*Resumed, error) {
	isDir, err := afero.IsDir(fs, path)
	if err != nil {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "no checkpoint found at %q", path)
	}

	var ckptPath, dir string
	if isDir {
		dir = path
		ckptPath = filepath.Join(path, BestFileName)
	} else {
		dir = filepath.Dir(path)
		ckptPath = path
	}

	candidates := []string{
		filepath.Join(filepath.Dir(dir), isodenoise.ConfigFileName),
		filepath.Join(dir, isodenoise.ConfigFileName),
	}

	var cfgPath string
	for _, c := range candidates {
		if ok, _ := afero.Exists(fs, c); ok {
			cfgPath = c
			break
		}
	}
	if cfgPath == "" {
		return nil, errors.Wrapf(isodenoise.ErrConfig, "no %s found for checkpoint %q (tried %v)",
			isodenoise.ConfigFileName, ckptPath, candidates)
	}

	cfg, err := isodenoise.LoadConfig(fs, cfgPath)
	if err != nil {
		return nil, err
	}

	c, err := Load(fs, ckptPath)
	if err != nil {
		return nil, err
	}

	return &Resumed{Checkpoint: c, Config: cfg, Path: ckptPath, ConfigPath: cfgPath}, nil
}
