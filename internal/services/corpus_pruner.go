package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/arfiletagger/internal/corpus"
	"github.com/Lllllllleong/arfiletagger/internal/gcp"
	"github.com/Lllllllleong/arfiletagger/internal/tagstore"
)

// ObjectDeletedEventType is the CloudEvent type Cloud Storage emits when an object is removed.
const ObjectDeletedEventType = "google.cloud.storage.object.v1.deleted"

// GCSEvent is the payload of a Cloud Storage CloudEvent.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// CorpusPrunerConfig holds all configuration for the corpus pruner.
type CorpusPrunerConfig struct {
	ProjectID    string
	Collection   string
	CorpusBucket string
	CorpusPrefix string
	CorpusExt    string
}

// CorpusPrunerFunction deletes a tag once its reference image has been
// removed from the corpus bucket, so no tag outlives its image.
type CorpusPrunerFunction struct {
	store  tagstore.Store
	config CorpusPrunerConfig
}

func loadCorpusPrunerConfig() (*CorpusPrunerConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	corpusBucket := gcp.GetEnv("CORPUS_BUCKET", "")
	if corpusBucket == "" {
		return nil, fmt.Errorf("CORPUS_BUCKET environment variable must be set")
	}
	return &CorpusPrunerConfig{
		ProjectID:    projectID,
		Collection:   gcp.GetEnv("TAGS_COLLECTION", tagstore.DefaultCollection),
		CorpusBucket: corpusBucket,
		CorpusPrefix: gcp.GetEnv("CORPUS_PREFIX", ""),
		CorpusExt:    gcp.GetEnv("CORPUS_EXT", corpus.DefaultExt),
	}, nil
}

// NewCorpusPruner creates a CorpusPrunerFunction backed by Firestore.
func NewCorpusPruner(ctx context.Context) (*CorpusPrunerFunction, error) {
	config, err := loadCorpusPrunerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return NewCorpusPrunerWith(tagstore.NewFirestore(firestoreClient, config.Collection, slog.Default()), *config), nil
}

// NewCorpusPrunerWith assembles a CorpusPrunerFunction from an existing store.
func NewCorpusPrunerWith(store tagstore.Store, config CorpusPrunerConfig) *CorpusPrunerFunction {
	return &CorpusPrunerFunction{store: store, config: config}
}

// Process handles one object-deleted event. Objects outside the corpus are ignored.
func (f *CorpusPrunerFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("bucket", e.Bucket, "object", e.Name)

	if e.Bucket != f.config.CorpusBucket {
		logCtx.Info("Skipping object from another bucket.")
		return nil
	}
	imageID, ok := corpus.NameFromObject(e.Name, f.config.CorpusPrefix, f.config.CorpusExt)
	if !ok {
		logCtx.Info("Skipping object that is not a reference image.")
		return nil
	}

	logCtx = logCtx.With("imageId", imageID)
	if err := f.store.Delete(ctx, imageID); err != nil {
		logCtx.Error("Failed to delete tag for removed image", "error", err)
		return fmt.Errorf("failed to delete tag %s: %w", imageID, err)
	}
	logCtx.Info("Deleted tag for removed reference image.")
	return nil
}
