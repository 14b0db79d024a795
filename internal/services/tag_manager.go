package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/arfiletagger/internal/corpus"
	"github.com/Lllllllleong/arfiletagger/internal/gcp"
	"github.com/Lllllllleong/arfiletagger/internal/models"
	"github.com/Lllllllleong/arfiletagger/internal/tagstore"
)

// TagManagerConfig holds all configuration for the tag manager functions.
type TagManagerConfig struct {
	ProjectID      string
	VertexAIRegion string
	Collection     string
	CorpusBucket   string
	CorpusPrefix   string
	CorpusExt      string
}

// TagManagerFunction backs the tag list: listing, editing and deleting
// tags, plus model suggestions for new ones.
type TagManagerFunction struct {
	store     tagstore.Store
	corpus    corpus.Corpus
	suggester Suggester
}

func loadTagManagerConfig() (*TagManagerConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	corpusBucket := gcp.GetEnv("CORPUS_BUCKET", "")
	if corpusBucket == "" {
		return nil, fmt.Errorf("CORPUS_BUCKET environment variable must be set")
	}
	return &TagManagerConfig{
		ProjectID:      projectID,
		VertexAIRegion: gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		Collection:     gcp.GetEnv("TAGS_COLLECTION", tagstore.DefaultCollection),
		CorpusBucket:   corpusBucket,
		CorpusPrefix:   gcp.GetEnv("CORPUS_PREFIX", ""),
		CorpusExt:      gcp.GetEnv("CORPUS_EXT", corpus.DefaultExt),
	}, nil
}

// NewTagManager creates a TagManagerFunction backed by Firestore, Cloud
// Storage and Vertex AI.
func NewTagManager(ctx context.Context) (*TagManagerFunction, error) {
	config, err := loadTagManagerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := gcp.NewStorageClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	bucketCorpus, err := corpus.NewBucketCorpus(storageClient, config.CorpusBucket, config.CorpusPrefix, config.CorpusExt, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create corpus: %w", err)
	}

	return NewTagManagerWith(
		tagstore.NewFirestore(firestoreClient, config.Collection, slog.Default()),
		bucketCorpus,
		NewTagSuggester(vertexClient, bucketCorpus),
	), nil
}

// NewTagManagerWith assembles a TagManagerFunction from existing parts.
// suggester may be nil, in which case Suggest always fails.
func NewTagManagerWith(store tagstore.Store, c corpus.Corpus, suggester Suggester) *TagManagerFunction {
	return &TagManagerFunction{store: store, corpus: c, suggester: suggester}
}

// List returns every saved tag.
func (f *TagManagerFunction) List(ctx context.Context) (*models.ListTagsResponse, error) {
	tags, err := f.store.ListAll(ctx)
	if err != nil {
		slog.Error("Failed to list tags", "error", err)
		return nil, err
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	slog.Info("Listed tags.", "count", len(tags))
	return &models.ListTagsResponse{Status: "success", Tags: tags}, nil
}

// Save creates or fully replaces the tag for req.ImageID.
func (f *TagManagerFunction) Save(ctx context.Context, req *models.SaveTagRequest) (*models.SaveTagResponse, error) {
	logCtx := slog.With("imageId", req.ImageID)
	tag := req.Tag()
	if err := tag.Validate(); err != nil {
		logCtx.Warn("Rejected tag", "error", err)
		return nil, err
	}
	if err := f.store.Set(ctx, tag); err != nil {
		logCtx.Error("Failed to save tag", "error", err)
		return nil, err
	}
	logCtx.Info("Tag saved.")
	return &models.SaveTagResponse{Status: "success", Tag: tag}, nil
}

// Delete removes the tag and its reference image. A missing image is not an error.
func (f *TagManagerFunction) Delete(ctx context.Context, req *models.DeleteTagRequest) (*models.DeleteTagResponse, error) {
	logCtx := slog.With("imageId", req.ImageID)
	if err := f.store.Delete(ctx, req.ImageID); err != nil {
		logCtx.Error("Failed to delete tag", "error", err)
		return nil, err
	}

	imageRemoved := true
	if err := f.corpus.Delete(ctx, req.ImageID); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			logCtx.Error("Failed to delete reference image", "error", err)
			return nil, err
		}
		imageRemoved = false
		logCtx.Info("No reference image stored for tag.")
	}
	logCtx.Info("Tag deleted.", "imageRemoved", imageRemoved)
	return &models.DeleteTagResponse{Status: "success", ImageRemoved: imageRemoved}, nil
}

// Suggest proposes a tag for an image that has none yet.
func (f *TagManagerFunction) Suggest(ctx context.Context, req *models.SuggestTagRequest) (*models.SuggestTagResponse, error) {
	if f.suggester == nil {
		return nil, fmt.Errorf("tag suggestions are not configured")
	}
	tag, err := f.suggester.Suggest(ctx, req.ImageID)
	if err != nil {
		return nil, err
	}
	return &models.SuggestTagResponse{Status: "success", Suggestion: tag}, nil
}
