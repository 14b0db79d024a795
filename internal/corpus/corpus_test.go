package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lllllllleong/arfiletagger/internal/ar/sim"
	"github.com/Lllllllleong/arfiletagger/internal/models"
)

func newTestCorpus(t *testing.T) *FileCorpus {
	t.Helper()
	c, err := NewFileCorpus(t.TempDir(), "", nil)
	if err != nil {
		t.Fatalf("NewFileCorpus: %v", err)
	}
	return c
}

func TestFileCorpusSaveListLoadDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus(t)

	for _, name := range []string{"b", "a"} {
		if err := c.Save(ctx, sim.Checkerboard(96, 8), name); err != nil {
			t.Fatalf("Save(%s): %v", name, err)
		}
	}
	// Files with other extensions are not part of the corpus.
	if err := os.WriteFile(filepath.Join(c.dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	names, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if strings.Join(names, ",") != "a,b" {
		t.Fatalf("List = %v, want [a b]", names)
	}

	img, err := c.Load(ctx, "a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 96 || b.Dy() != 96 {
		t.Fatalf("loaded bounds = %v", b)
	}

	if err := c.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Load(ctx, "a"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Load after Delete: err = %v, want ErrNotFound", err)
	}
	if err := c.Delete(ctx, "a"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("second Delete: err = %v, want ErrNotFound", err)
	}
}

func TestFileCorpusRejectsBadNames(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus(t)
	for _, name := range []string{"", "  ", "../escape", `a\b`, ".."} {
		if err := c.Save(ctx, sim.Checkerboard(64, 8), name); !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("Save(%q): err = %v, want ErrInvalidInput", name, err)
		}
	}
}

func TestFileCorpusJPEG(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCorpus(t.TempDir(), ".JPG", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Save(ctx, sim.Checkerboard(64, 8), "photo"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(c.dir, "photo.jpg")); err != nil {
		t.Fatalf("expected photo.jpg: %v", err)
	}
	if _, err := c.Load(ctx, "photo"); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestRebuildSkipsBadEntries(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus(t)

	if err := c.Save(ctx, sim.Checkerboard(128, 8), "good"); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(ctx, sim.Flat(128), "featureless"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(c.dir, "corrupt.png"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	db := sim.NewTracker().NewDatabase()
	report, err := Rebuild(ctx, c, db, nil)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if len(report.Registered) != 1 || report.Registered[0] != "good" {
		t.Fatalf("Registered = %v, want [good]", report.Registered)
	}
	if db.Len() != 1 {
		t.Fatalf("db.Len = %d, want 1", db.Len())
	}

	skipped := map[string]error{}
	for _, s := range report.Skipped {
		skipped[s.Name] = s.Err
	}
	if !errors.Is(skipped["featureless"], models.ErrRegistration) {
		t.Errorf("featureless: err = %v, want ErrRegistration", skipped["featureless"])
	}
	if !errors.Is(skipped["corrupt"], models.ErrTransientIO) {
		t.Errorf("corrupt: err = %v, want ErrTransientIO", skipped["corrupt"])
	}
}

func TestRebuildEmptyCorpus(t *testing.T) {
	db := sim.NewTracker().NewDatabase()
	report, err := Rebuild(context.Background(), newTestCorpus(t), db, nil)
	if err != nil || len(report.Registered) != 0 || len(report.Skipped) != 0 {
		t.Fatalf("Rebuild = %+v, %v", report, err)
	}
}

func TestRebuildCancelled(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus(t)
	if err := c.Save(ctx, sim.Checkerboard(128, 8), "good"); err != nil {
		t.Fatal(err)
	}
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := Rebuild(cctx, c, sim.NewTracker().NewDatabase(), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestNameFromObject(t *testing.T) {
	tests := []struct {
		object, prefix string
		want           string
		ok             bool
	}{
		{"refs/capture-1.png", "refs/", "capture-1", true},
		{"capture-1.png", "", "capture-1", true},
		{"refs/capture-1.jpg", "refs/", "", false},
		{"other/capture-1.png", "refs/", "", false},
		{"refs/nested/capture-1.png", "refs/", "", false},
		{"refs/.png", "refs/", "", false},
	}
	for _, tt := range tests {
		got, ok := NameFromObject(tt.object, tt.prefix, "png")
		if got != tt.want || ok != tt.ok {
			t.Errorf("NameFromObject(%q, %q) = %q, %v; want %q, %v", tt.object, tt.prefix, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNewImageIDIsUnique(t *testing.T) {
	a, b := NewImageID(), NewImageID()
	if a == b || !strings.HasPrefix(a, "capture-") {
		t.Fatalf("NewImageID returned %q and %q", a, b)
	}
	if err := validateName(a); err != nil {
		t.Fatalf("generated id is not a valid name: %v", err)
	}
}
