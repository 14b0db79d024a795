package tagstore

import (
	"context"
	"sort"
	"sync"

	"github.com/Lllllllleong/arfiletagger/internal/models"
)

// Memory is an in-process Store. It backs the replay tool and tests.
type Memory struct {
	mu       sync.Mutex
	tags     map[string]models.Tag
	failNext error
}

// NewMemory returns an empty store, optionally seeded.
func NewMemory(seed ...models.Tag) *Memory {
	m := &Memory{tags: make(map[string]models.Tag, len(seed))}
	for _, t := range seed {
		m.tags[t.ImageID] = t
	}
	return m
}

// FailNext makes the next operation return err.
func (m *Memory) FailNext(err error) {
	m.mu.Lock()
	m.failNext = err
	m.mu.Unlock()
}

func (m *Memory) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *Memory) Get(ctx context.Context, imageID string) (models.Tag, error) {
	if err := validateID(imageID); err != nil {
		return models.Tag{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Tag{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return models.Tag{}, err
	}
	tag, ok := m.tags[imageID]
	if !ok {
		return models.Tag{}, models.ErrNotFound
	}
	return tag, nil
}

func (m *Memory) Set(ctx context.Context, tag models.Tag) error {
	if err := tag.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.tags[tag.ImageID] = tag
	return nil
}

func (m *Memory) Delete(ctx context.Context, imageID string) error {
	if err := validateID(imageID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	delete(m.tags, imageID)
	return nil
}

// ListAll returns tags ordered by imageId.
func (m *Memory) ListAll(ctx context.Context) ([]models.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	tags := make([]models.Tag, 0, len(m.tags))
	for _, t := range m.tags {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].ImageID < tags[j].ImageID })
	return tags, nil
}
