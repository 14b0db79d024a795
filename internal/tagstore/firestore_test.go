package tagstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Lllllllleong/arfiletagger/internal/gcp"
	"github.com/Lllllllleong/arfiletagger/internal/models"
)

// newEmulatorStore connects to the Firestore emulator, skipping when none is configured.
func newEmulatorStore(t *testing.T) *Firestore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := gcp.NewFirestoreClient(ctx, gcp.GetEnv("PROJECT_ID", "arfiletagger-test"))
	if err != nil {
		t.Fatalf("NewFirestoreClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewFirestore(client, fmt.Sprintf("imageTags-%d", time.Now().UnixNano()), nil)
}

func TestFirestoreRoundTrip(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "A"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Get before Set: err = %v, want ErrNotFound", err)
	}

	want := models.Tag{ImageID: "A", Filename: "f", Filepath: "/x", Deadline: "EOD"}
	if err := s.Set(ctx, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "A")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != want {
		t.Fatalf("Get = %+v, want %+v", got, want)
	}

	tags, err := s.ListAll(ctx)
	if err != nil || len(tags) != 1 {
		t.Fatalf("ListAll = %+v, %v", tags, err)
	}

	if err := s.Delete(ctx, "A"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "A"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Get after Delete: err = %v, want ErrNotFound", err)
	}
}

func TestFirestoreRejectsBlankKeyLocally(t *testing.T) {
	// A nil client proves no network call is attempted.
	s := NewFirestore(nil, "", nil)
	if err := s.Set(context.Background(), models.Tag{}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("Set: err = %v, want ErrInvalidInput", err)
	}
	if _, err := s.Get(context.Background(), ""); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("Get: err = %v, want ErrInvalidInput", err)
	}
	if err := s.Delete(context.Background(), "\t"); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("Delete: err = %v, want ErrInvalidInput", err)
	}
}
