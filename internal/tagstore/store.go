// Package tagstore persists image tags keyed by image identifier.
//
// Every implementation validates keys locally: a blank imageId is rejected
// with models.ErrInvalidInput before any network round trip. Set is a full
// replace, never a merge. Get returns models.ErrNotFound for absent records.
package tagstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/Lllllllleong/arfiletagger/internal/models"
)

// DefaultCollection is the Firestore collection holding one document per image.
const DefaultCollection = "imageTags"

// Store is the Tag Store Client contract.
type Store interface {
	Get(ctx context.Context, imageID string) (models.Tag, error)
	Set(ctx context.Context, tag models.Tag) error
	Delete(ctx context.Context, imageID string) error
	ListAll(ctx context.Context) ([]models.Tag, error)
}

func validateID(imageID string) error {
	if strings.TrimSpace(imageID) == "" {
		return fmt.Errorf("%w: imageId must not be blank", models.ErrInvalidInput)
	}
	return nil
}
