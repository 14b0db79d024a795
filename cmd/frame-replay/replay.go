package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/arfiletagger/internal/ar/sim"
	"github.com/Lllllllleong/arfiletagger/internal/corpus"
	"github.com/Lllllllleong/arfiletagger/internal/engine"
	"github.com/Lllllllleong/arfiletagger/internal/models"
	"github.com/Lllllllleong/arfiletagger/internal/services"
	"github.com/Lllllllleong/arfiletagger/internal/tagstore"
)

// replayer drives a Session on the simulated tracker and renderer.
type replayer struct {
	session  *services.Session
	tracker  *sim.Tracker
	interval time.Duration
	logger   *slog.Logger
	captured string
}

// replay seeds the corpus and store from script, runs every step and returns
// the engine state once the last step has settled.
func replay(ctx context.Context, script *Script, store tagstore.Store, c corpus.Corpus, interval, lookupTimeout time.Duration, logger *slog.Logger) (engine.Snapshot, error) {
	if interval <= 0 {
		return engine.Snapshot{}, fmt.Errorf("frame interval must be positive, got %s", interval)
	}

	for _, ref := range script.References {
		img, err := ref.Image()
		if err != nil {
			return engine.Snapshot{}, fmt.Errorf("reference %s: %w", ref.Name, err)
		}
		if err := c.Save(ctx, img, ref.Name); err != nil {
			return engine.Snapshot{}, fmt.Errorf("failed to save reference %s: %w", ref.Name, err)
		}
	}
	for _, spec := range script.Tags {
		if err := store.Set(ctx, spec.Tag()); err != nil {
			return engine.Snapshot{}, fmt.Errorf("failed to seed tag %s: %w", spec.ImageID, err)
		}
	}

	tracker := sim.NewTracker()
	session, err := services.NewSession(tracker, sim.NewRenderer(), c, store, loggingSignals(logger),
		services.SessionConfig{LookupTimeout: lookupTimeout}, logger)
	if err != nil {
		return engine.Snapshot{}, err
	}
	report, err := session.Start(ctx)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("failed to build reference set: %w", err)
	}
	logger.Info("Reference set ready.", "registered", len(report.Registered), "skipped", len(report.Skipped))

	runCtx, cancel := context.WithCancel(ctx)
	ticker := time.NewTicker(interval)
	done := make(chan error, 1)
	go func() { done <- session.Run(runCtx, ticker.C) }()
	defer func() {
		cancel()
		ticker.Stop()
		<-done
	}()

	r := &replayer{session: session, tracker: tracker, interval: interval, logger: logger}
	for i, step := range script.Steps {
		if err := r.apply(ctx, step); err != nil {
			return engine.Snapshot{}, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	if err := sleep(ctx, 2*interval); err != nil {
		return engine.Snapshot{}, err
	}

	snap, err := session.Engine().Snapshot(ctx)
	if err != nil {
		return engine.Snapshot{}, err
	}
	for _, ov := range snap.Overlays {
		logger.Info("Overlay", "imageId", ov.ImageID, "enabled", ov.Enabled, "lines", ov.Content.Lines())
	}
	for _, id := range snap.Awaiting {
		logger.Info("Awaiting", "imageId", id)
	}
	return snap, nil
}

func (r *replayer) resolve(name string) (string, error) {
	if name != lastCapture {
		return name, nil
	}
	if r.captured == "" {
		return "", fmt.Errorf("%s used before any capture step", lastCapture)
	}
	return r.captured, nil
}

func (r *replayer) apply(ctx context.Context, step Step) error {
	switch {
	case len(step.Frame) > 0:
		images := make([]models.TrackedImage, 0, len(step.Frame))
		for _, f := range step.Frame {
			id, err := r.resolve(f.Image)
			if err != nil {
				return err
			}
			img, err := f.Tracked(id)
			if err != nil {
				return err
			}
			images = append(images, img)
		}
		r.tracker.Update(images...)
		return sleep(ctx, r.interval)

	case step.Submit != nil:
		tag := step.Submit.Tag()
		id, err := r.resolve(tag.ImageID)
		if err != nil {
			return err
		}
		tag.ImageID = id
		return r.session.SubmitTag(ctx, tag)

	case step.Cancel != "":
		id, err := r.resolve(step.Cancel)
		if err != nil {
			return err
		}
		return r.session.Engine().CancelInput(ctx, id)

	case step.Delete != "":
		id, err := r.resolve(step.Delete)
		if err != nil {
			return err
		}
		return r.session.DeleteTag(ctx, id)

	case step.Capture != nil:
		img, err := step.Capture.Image()
		if err != nil {
			return err
		}
		id, err := r.session.CaptureImage(ctx, img)
		if err != nil {
			return err
		}
		r.captured = id
		r.logger.Info("Captured image", "imageId", id)
		return nil

	default:
		return sleep(ctx, step.Wait)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func loggingSignals(logger *slog.Logger) engine.Signals {
	return engine.SignalFuncs{
		NeedsTagInput: func(imageID string) {
			logger.Info("Signal: needs tag input", "imageId", imageID)
		},
		OverlayPlaced: func(imageID string) {
			logger.Info("Signal: overlay placed", "imageId", imageID)
		},
		LookupFailed: func(imageID string, err error) {
			logger.Warn("Signal: lookup failed", "imageId", imageID, "error", err)
		},
		OverlayFailed: func(imageID string, err error) {
			logger.Warn("Signal: overlay failed", "imageId", imageID, "error", err)
		},
	}
}
