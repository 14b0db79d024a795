package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Lllllllleong/arfiletagger/internal/models"
	"github.com/Lllllllleong/arfiletagger/internal/tagstore"
)

func TestCorpusPrunerProcess(t *testing.T) {
	config := CorpusPrunerConfig{CorpusBucket: "refs-bucket", CorpusPrefix: "refs/", CorpusExt: "png"}

	tests := []struct {
		name     string
		event    GCSEvent
		wantGone bool
	}{
		{"reference image", GCSEvent{Bucket: "refs-bucket", Name: "refs/capture-1.png"}, true},
		{"other bucket", GCSEvent{Bucket: "elsewhere", Name: "refs/capture-1.png"}, false},
		{"outside prefix", GCSEvent{Bucket: "refs-bucket", Name: "tmp/capture-1.png"}, false},
		{"wrong extension", GCSEvent{Bucket: "refs-bucket", Name: "refs/capture-1.jpg"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := tagstore.NewMemory(models.Tag{ImageID: "capture-1", Filename: "f", Filepath: "/f", Deadline: "EOD"})
			f := NewCorpusPrunerWith(store, config)
			if err := f.Process(context.Background(), tc.event); err != nil {
				t.Fatalf("Process: %v", err)
			}
			_, err := store.Get(context.Background(), "capture-1")
			gone := errors.Is(err, models.ErrNotFound)
			if gone != tc.wantGone {
				t.Fatalf("tag removed = %v, want %v", gone, tc.wantGone)
			}
		})
	}
}

func TestCorpusPrunerMissingTag(t *testing.T) {
	f := NewCorpusPrunerWith(tagstore.NewMemory(), CorpusPrunerConfig{CorpusBucket: "b", CorpusExt: "png"})
	if err := f.Process(context.Background(), GCSEvent{Bucket: "b", Name: "never-tagged.png"}); err != nil {
		t.Fatalf("Process: %v", err)
	}
}

func TestCorpusPrunerStoreFailure(t *testing.T) {
	store := tagstore.NewMemory()
	store.FailNext(models.ErrTransientIO)
	f := NewCorpusPrunerWith(store, CorpusPrunerConfig{CorpusBucket: "b", CorpusExt: "png"})
	err := f.Process(context.Background(), GCSEvent{Bucket: "b", Name: "a.png"})
	if !errors.Is(err, models.ErrTransientIO) {
		t.Fatalf("err = %v, want ErrTransientIO so the event is retried", err)
	}
}
