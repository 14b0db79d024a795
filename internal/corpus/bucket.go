package corpus

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/arfiletagger/internal/gcp"
	"github.com/Lllllllleong/arfiletagger/internal/models"
)

// BucketCorpus stores images as objects in a Cloud Storage bucket, so the
// reference set survives reinstalls and is shared between devices.
type BucketCorpus struct {
	bucket     *storage.BucketHandle
	bucketName string
	prefix     string
	ext        string
	logger     *slog.Logger
}

var _ Corpus = (*BucketCorpus)(nil)

// NewBucketCorpus stores objects as <prefix><name>.<ext>.
func NewBucketCorpus(client *storage.Client, bucketName, prefix, ext string, logger *slog.Logger) (*BucketCorpus, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("corpus bucket must be provided")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BucketCorpus{
		bucket:     client.Bucket(bucketName),
		bucketName: bucketName,
		prefix:     prefix,
		ext:        normalizeExt(ext),
		logger:     logger.With("gcsBucket", bucketName),
	}, nil
}

// ObjectName is the object holding the named image.
func (c *BucketCorpus) ObjectName(name string) string {
	return c.prefix + name + "." + c.ext
}

// URI is the gs:// URI of the named image.
func (c *BucketCorpus) URI(name string) string {
	return fmt.Sprintf("gs://%s/%s", c.bucketName, c.ObjectName(name))
}

// ContentType is the MIME type of stored images.
func (c *BucketCorpus) ContentType() string {
	return contentType(c.ext)
}

// NameFromObject maps an object name back to an image name. ok is false for
// objects outside this corpus.
func (c *BucketCorpus) NameFromObject(object string) (string, bool) {
	return NameFromObject(object, c.prefix, c.ext)
}

// NameFromObject strips prefix and the .ext suffix from an object name.
func NameFromObject(object, prefix, ext string) (string, bool) {
	ext = normalizeExt(ext)
	if !strings.HasPrefix(object, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(object, prefix)
	if strings.Contains(rest, "/") || path.Ext(rest) != "."+ext {
		return "", false
	}
	name := strings.TrimSuffix(rest, "."+ext)
	if validateName(name) != nil {
		return "", false
	}
	return name, true
}

func (c *BucketCorpus) List(ctx context.Context) ([]string, error) {
	it := c.bucket.Objects(ctx, &storage.Query{Prefix: c.prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			c.logger.Error("Failed to list objects in corpus bucket", "error", err)
			return nil, fmt.Errorf("%w: failed to list corpus: %v", models.ErrTransientIO, err)
		}
		if name, ok := c.NameFromObject(attrs.Name); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (c *BucketCorpus) Load(ctx context.Context, name string) (image.Image, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	r, err := c.bucket.Object(c.ObjectName(name)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("image %s: %w", name, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get GCS object reader for %s: %v", models.ErrTransientIO, c.URI(name), err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", models.ErrTransientIO, c.URI(name), err)
	}
	return decode(data, name)
}

// Save never overwrites: image names are unique per capture, so an existing
// object already holds this image.
func (c *BucketCorpus) Save(ctx context.Context, img image.Image, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	data, err := encode(img, c.ext)
	if err != nil {
		return err
	}
	written, err := gcp.SaveToGCSAtomically(ctx, c.bucket, c.ObjectName(name), c.ContentType(), data)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransientIO, err)
	}
	c.logger.Info("Image saved to corpus bucket.", "name", name, "written", written)
	return nil
}

func (c *BucketCorpus) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	err := c.bucket.Object(c.ObjectName(name)).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("image %s: %w", name, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to delete %s: %v", models.ErrTransientIO, c.URI(name), err)
	}
	c.logger.Info("Image deleted from corpus bucket.", "name", name)
	return nil
}
