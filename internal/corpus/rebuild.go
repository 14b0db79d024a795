package corpus

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/arfiletagger/internal/ar"
)

// loadConcurrency bounds parallel image loads during a rebuild.
const loadConcurrency = 8

// Skipped is a corpus entry left out of a rebuild.
type Skipped struct {
	Name string
	Err  error
}

// Report summarizes a rebuild. Partial success is normal.
type Report struct {
	Registered []string
	Skipped    []Skipped
}

// Rebuild loads every image in c and registers it with db. Entries that fail
// to load or register are logged and skipped; only a failure to list the
// corpus or a cancelled ctx aborts the rebuild.
func Rebuild(ctx context.Context, c Corpus, db ar.ImageDatabase, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var report Report

	names, err := c.List(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list corpus: %w", err)
	}
	if len(names) == 0 {
		logger.Info("No saved images found to build image database.")
		return report, nil
	}

	images := make([]image.Image, len(names))
	loadErrs := make([]error, len(names))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(loadConcurrency)
	for i, name := range names {
		eg.Go(func() error {
			images[i], loadErrs[i] = c.Load(gctx, name)
			return gctx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return report, fmt.Errorf("rebuild interrupted: %w", err)
	}

	for i, name := range names {
		if loadErrs[i] != nil {
			logger.Warn("Failed to load saved image. Skipping.", "name", name, "error", loadErrs[i])
			report.Skipped = append(report.Skipped, Skipped{Name: name, Err: loadErrs[i]})
			continue
		}
		if err := db.AddImage(name, images[i]); err != nil {
			logger.Warn("Failed to add image to database (may not be trackable). Skipping.", "name", name, "error", err)
			report.Skipped = append(report.Skipped, Skipped{Name: name, Err: err})
			continue
		}
		report.Registered = append(report.Registered, name)
	}
	logger.Info("Built image database.", "registered", len(report.Registered), "skipped", len(report.Skipped))
	return report, nil
}
