package tagstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/arfiletagger/internal/models"
)

// Firestore stores tags as documents in a single collection, document ID = imageId.
type Firestore struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

// NewFirestore wraps an existing client. An empty collection selects DefaultCollection.
func NewFirestore(client *firestore.Client, collection string, logger *slog.Logger) *Firestore {
	if collection == "" {
		collection = DefaultCollection
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Firestore{
		client:     client,
		collection: collection,
		logger:     logger.With("collection", collection),
	}
}

func (s *Firestore) doc(imageID string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(imageID)
}

// Get loads the tag for imageID. A missing document is models.ErrNotFound.
func (s *Firestore) Get(ctx context.Context, imageID string) (models.Tag, error) {
	if err := validateID(imageID); err != nil {
		return models.Tag{}, err
	}
	snap, err := s.doc(imageID).Get(ctx)
	if status.Code(err) == codes.NotFound || (err == nil && !snap.Exists()) {
		s.logger.Debug("No tag found.", "imageId", imageID)
		return models.Tag{}, models.ErrNotFound
	}
	if err != nil {
		return models.Tag{}, fmt.Errorf("%w: failed to load tag %s: %v", models.ErrTransientIO, imageID, err)
	}

	var tag models.Tag
	if err := snap.DataTo(&tag); err != nil {
		return models.Tag{}, fmt.Errorf("%w: failed to decode tag %s: %v", models.ErrTransientIO, imageID, err)
	}
	// Older documents may predate the imageId field.
	tag.ImageID = imageID
	return tag, nil
}

// Set writes the full tag, replacing any existing document.
func (s *Firestore) Set(ctx context.Context, tag models.Tag) error {
	if err := tag.Validate(); err != nil {
		return err
	}
	if _, err := s.doc(tag.ImageID).Set(ctx, tag); err != nil {
		s.logger.Error("Failed to write tag", "imageId", tag.ImageID, "error", err)
		return fmt.Errorf("%w: failed to write tag %s: %v", models.ErrTransientIO, tag.ImageID, err)
	}
	s.logger.Info("Tag written.", "imageId", tag.ImageID)
	return nil
}

// Delete removes the tag document. Deleting a missing document succeeds.
func (s *Firestore) Delete(ctx context.Context, imageID string) error {
	if err := validateID(imageID); err != nil {
		return err
	}
	if _, err := s.doc(imageID).Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		s.logger.Error("Failed to delete tag", "imageId", imageID, "error", err)
		return fmt.Errorf("%w: failed to delete tag %s: %v", models.ErrTransientIO, imageID, err)
	}
	s.logger.Info("Tag deleted.", "imageId", imageID)
	return nil
}

// ListAll returns every stored tag.
func (s *Firestore) ListAll(ctx context.Context) ([]models.Tag, error) {
	it := s.client.Collection(s.collection).Documents(ctx)
	defer it.Stop()

	var tags []models.Tag
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to list tags: %v", models.ErrTransientIO, err)
		}
		var tag models.Tag
		if err := snap.DataTo(&tag); err != nil {
			s.logger.Warn("Skipping undecodable tag document.", "docId", snap.Ref.ID, "error", err)
			continue
		}
		tag.ImageID = snap.Ref.ID
		tags = append(tags, tag)
	}
	s.logger.Info("Listed tags.", "count", len(tags))
	return tags, nil
}
