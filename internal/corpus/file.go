package corpus

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Lllllllleong/arfiletagger/internal/models"
)

// FileCorpus stores images as files in one directory.
type FileCorpus struct {
	dir    string
	ext    string
	logger *slog.Logger
}

var _ Corpus = (*FileCorpus)(nil)

// NewFileCorpus creates dir if needed.
func NewFileCorpus(dir, ext string, logger *slog.Logger) (*FileCorpus, error) {
	if dir == "" {
		return nil, fmt.Errorf("corpus directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create corpus directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileCorpus{dir: dir, ext: normalizeExt(ext), logger: logger.With("corpusDir", dir)}, nil
}

func (c *FileCorpus) path(name string) string {
	return filepath.Join(c.dir, name+"."+c.ext)
}

func (c *FileCorpus) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list corpus: %v", models.ErrTransientIO, err)
	}
	suffix := "." + c.ext
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), suffix))
	}
	sort.Strings(names)
	c.logger.Debug("Listed saved image files.", "count", len(names))
	return names, nil
}

func (c *FileCorpus) Load(ctx context.Context, name string) (image.Image, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("image %s: %w", name, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read image %s: %v", models.ErrTransientIO, name, err)
	}
	return decode(data, name)
}

// Save writes through a temporary file so a crash never leaves a partial image.
func (c *FileCorpus) Save(ctx context.Context, img image.Image, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	data, err := encode(img, c.ext)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, ".saving-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %v", models.ErrTransientIO, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to write image %s: %v", models.ErrTransientIO, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to write image %s: %v", models.ErrTransientIO, name, err)
	}
	if err := os.Rename(tmp.Name(), c.path(name)); err != nil {
		return fmt.Errorf("%w: failed to save image %s: %v", models.ErrTransientIO, name, err)
	}
	c.logger.Info("Image saved to corpus.", "name", name)
	return nil
}

func (c *FileCorpus) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	err := os.Remove(c.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("image %s: %w", name, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to delete image %s: %v", models.ErrTransientIO, name, err)
	}
	c.logger.Info("Image deleted from corpus.", "name", name)
	return nil
}
