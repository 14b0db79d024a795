package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/Lllllllleong/arfiletagger/internal/ar"
	"github.com/Lllllllleong/arfiletagger/internal/corpus"
	"github.com/Lllllllleong/arfiletagger/internal/engine"
	"github.com/Lllllllleong/arfiletagger/internal/models"
	"github.com/Lllllllleong/arfiletagger/internal/tagstore"
)

// SessionConfig holds tunables for an AR session.
type SessionConfig struct {
	LookupTimeout time.Duration
}

// Session wires one tracker, renderer, corpus and tag store around a
// reconciliation engine. It is what the interactive host talks to.
type Session struct {
	tracker ar.Tracker
	corpus  corpus.Corpus
	store   tagstore.Store
	engine  *engine.Engine
	logger  *slog.Logger

	// dbMu serializes changes to the tracker's image database.
	dbMu sync.Mutex
}

// NewSession builds the engine. Call Start before Run.
func NewSession(tracker ar.Tracker, renderer ar.Renderer, c corpus.Corpus, store tagstore.Store, signals engine.Signals, config SessionConfig, logger *slog.Logger) (*Session, error) {
	if c == nil {
		return nil, fmt.Errorf("NewSession: corpus is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	eng, err := engine.New(engine.Options{
		Tracker:       tracker,
		Renderer:      renderer,
		Store:         store,
		Signals:       signals,
		Logger:        logger,
		LookupTimeout: config.LookupTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return &Session{
		tracker: tracker,
		corpus:  c,
		store:   store,
		engine:  eng,
		logger:  logger.With("component", "session"),
	}, nil
}

// Engine exposes the session's engine.
func (s *Session) Engine() *engine.Engine {
	return s.engine
}

// Start configures the tracker with every image in the corpus.
func (s *Session) Start(ctx context.Context) (corpus.Report, error) {
	return s.rebuild(ctx, false)
}

// Run drives the engine until ctx is done or ticks closes.
func (s *Session) Run(ctx context.Context, ticks <-chan time.Time) error {
	return s.engine.Run(ctx, ticks)
}

// RebuildReferenceSet reloads the corpus into a fresh tracker database and
// clears every overlay, since their images may be gone. Run must be active.
func (s *Session) RebuildReferenceSet(ctx context.Context) (corpus.Report, error) {
	return s.rebuild(ctx, true)
}

func (s *Session) rebuild(ctx context.Context, reset bool) (corpus.Report, error) {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	db := s.tracker.NewDatabase()
	report, err := corpus.Rebuild(ctx, s.corpus, db, s.logger)
	if err != nil {
		return report, err
	}
	if err := s.tracker.Configure(db); err != nil {
		return report, fmt.Errorf("failed to configure tracker: %w", err)
	}
	s.logger.Info("Tracker configured with image database from saved files.", "images", db.Len())
	if reset {
		if err := s.engine.Reset(ctx); err != nil {
			return report, fmt.Errorf("failed to reset engine: %w", err)
		}
	}
	return report, nil
}

// CaptureImage makes img recognizable right away and keeps it for later
// sessions. It returns the new image's identifier.
func (s *Session) CaptureImage(ctx context.Context, img image.Image) (string, error) {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	imageID := corpus.NewImageID()
	logCtx := s.logger.With("imageId", imageID)

	db := s.tracker.Database()
	if db == nil {
		logCtx.Info("Image database was empty, creating a new one for capture.")
		db = s.tracker.NewDatabase()
	}
	if err := db.AddImage(imageID, img); err != nil {
		logCtx.Warn("Failed to add captured image to database. Is it unique and feature-rich?", "error", err)
		if !errors.Is(err, models.ErrRegistration) {
			err = fmt.Errorf("%w: %v", models.ErrRegistration, err)
		}
		return "", err
	}

	if err := s.corpus.Save(ctx, img, imageID); err != nil {
		// Still trackable for this session; it just won't survive a rebuild.
		logCtx.Warn("Could not save captured image for persistence.", "error", err)
	}

	if err := s.tracker.Configure(db); err != nil {
		return "", fmt.Errorf("failed to configure tracker: %w", err)
	}
	logCtx.Info("New image ready for scanning.")
	return imageID, nil
}

// SubmitTag saves a tag entered by the user and shows it if the image is in view.
func (s *Session) SubmitTag(ctx context.Context, tag models.Tag) error {
	return s.engine.SubmitTag(ctx, tag)
}

// ListTags returns every stored tag.
func (s *Session) ListTags(ctx context.Context) ([]models.Tag, error) {
	return s.store.ListAll(ctx)
}

// DeleteTag removes the tag and its reference image, detaches its overlay and
// rebuilds the tracker so the image is no longer recognized.
func (s *Session) DeleteTag(ctx context.Context, imageID string) error {
	logCtx := s.logger.With("imageId", imageID)
	if err := s.store.Delete(ctx, imageID); err != nil {
		logCtx.Error("Failed to delete tag", "error", err)
		return err
	}
	if err := s.corpus.Delete(ctx, imageID); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			logCtx.Warn("Failed to delete image file for tag.", "error", err)
		} else {
			logCtx.Info("No image file stored for tag.")
		}
	}
	if err := s.engine.Detach(ctx, imageID); err != nil {
		return fmt.Errorf("failed to detach overlay: %w", err)
	}
	if _, err := s.RebuildReferenceSet(ctx); err != nil {
		return err
	}
	logCtx.Info("Tag deleted.")
	return nil
}
