// Package corpus keeps the reference images the tracker can recognize.
//
// Images are identified by name; each is stored as one object or file named
// <name>.<ext>. Names are opaque identifiers (see NewImageID) and carry no
// meaning of their own.
package corpus

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"github.com/Lllllllleong/arfiletagger/internal/models"
)

// DefaultExt is the file extension used when none is configured.
const DefaultExt = "png"

// Corpus is the local image corpus contract.
type Corpus interface {
	// List returns the names of all saved images, sorted.
	List(ctx context.Context) ([]string, error)
	// Load decodes the named image. Missing images are models.ErrNotFound.
	Load(ctx context.Context, name string) (image.Image, error)
	Save(ctx context.Context, img image.Image, name string) error
	// Delete removes the named image. Missing images are models.ErrNotFound.
	Delete(ctx context.Context, name string) error
}

// NewImageID returns a fresh identifier for a captured image.
func NewImageID() string {
	return "capture-" + uuid.NewString()
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: image name must not be blank", models.ErrInvalidInput)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: image name %q must not contain path separators", models.ErrInvalidInput, name)
	}
	return nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return DefaultExt
	}
	return ext
}

func contentType(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

// encode writes img in the format matching ext. WebP is read-only.
func encode(img image.Image, ext string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch ext {
	case "png":
		err = png.Encode(&buf, img)
	case "jpg", "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	default:
		return nil, fmt.Errorf("%w: cannot encode images as %q", models.ErrInvalidInput, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, name string) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image %s: %v", models.ErrTransientIO, name, err)
	}
	return img, nil
}
