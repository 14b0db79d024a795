package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Lllllllleong/arfiletagger/internal/ar/sim"
	"github.com/Lllllllleong/arfiletagger/internal/corpus"
	"github.com/Lllllllleong/arfiletagger/internal/engine"
	"github.com/Lllllllleong/arfiletagger/internal/models"
	"github.com/Lllllllleong/arfiletagger/internal/tagstore"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type sessionHarness struct {
	t        *testing.T
	session  *Session
	tracker  *sim.Tracker
	renderer *sim.Renderer
	corpus   *corpus.FileCorpus
	store    *tagstore.Memory
	events   chan string
	ticks    chan time.Time
}

func newSessionHarness(t *testing.T, seed ...models.Tag) *sessionHarness {
	t.Helper()
	fc, err := corpus.NewFileCorpus(t.TempDir(), "png", quietLogger)
	if err != nil {
		t.Fatalf("NewFileCorpus: %v", err)
	}
	h := &sessionHarness{
		t:        t,
		tracker:  sim.NewTracker(),
		renderer: sim.NewRenderer(),
		corpus:   fc,
		store:    tagstore.NewMemory(seed...),
		events:   make(chan string, 32),
		ticks:    make(chan time.Time),
	}
	signals := engine.SignalFuncs{
		NeedsTagInput: func(id string) { h.events <- "needs:" + id },
		OverlayPlaced: func(id string) { h.events <- "placed:" + id },
		LookupFailed:  func(id string, err error) { h.events <- "lookupFailed:" + id },
		OverlayFailed: func(id string, err error) { h.events <- "overlayFailed:" + id },
	}
	h.session, err = NewSession(h.tracker, h.renderer, fc, h.store, signals, SessionConfig{LookupTimeout: time.Second}, quietLogger)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return h
}

func (h *sessionHarness) saveImage(name string) {
	h.t.Helper()
	if err := h.corpus.Save(context.Background(), sim.Checkerboard(128, 16), name); err != nil {
		h.t.Fatalf("Save(%s): %v", name, err)
	}
}

// run starts the engine loop and stops it when the test ends.
func (h *sessionHarness) run() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.session.Run(ctx, h.ticks) }()
	h.t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (h *sessionHarness) track(id string) {
	h.t.Helper()
	h.tracker.Update(models.TrackedImage{ImageID: id, State: models.Tracking, Pose: models.IdentityPose})
	h.tick()
}

// tick hands the engine one frame.
func (h *sessionHarness) tick() {
	h.t.Helper()
	select {
	case h.ticks <- time.Now():
	case <-time.After(2 * time.Second):
		h.t.Fatal("engine did not take the frame")
	}
}

func (h *sessionHarness) expect(want string) {
	h.t.Helper()
	select {
	case got := <-h.events:
		if got != want {
			h.t.Fatalf("got signal %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		h.t.Fatalf("timed out waiting for %q", want)
	}
}

func TestSessionStartRegistersCorpus(t *testing.T) {
	h := newSessionHarness(t)
	h.saveImage("a")
	h.saveImage("b")
	if err := h.corpus.Save(context.Background(), sim.Flat(128), "blank"); err != nil {
		t.Fatal(err)
	}

	report, err := h.session.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(report.Registered) != 2 || len(report.Skipped) != 1 {
		t.Fatalf("report = %+v, want 2 registered and 1 skipped", report)
	}
	if got := h.tracker.Database().Len(); got != 2 {
		t.Fatalf("database has %d images, want 2", got)
	}
}

func TestSessionCaptureThenTag(t *testing.T) {
	h := newSessionHarness(t)
	if _, err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.run()

	ctx := context.Background()
	id, err := h.session.CaptureImage(ctx, sim.Checkerboard(128, 8))
	if err != nil {
		t.Fatalf("CaptureImage: %v", err)
	}
	if !strings.HasPrefix(id, "capture-") {
		t.Fatalf("image id = %q", id)
	}
	names, err := h.corpus.List(ctx)
	if err != nil || len(names) != 1 || names[0] != id {
		t.Fatalf("corpus = %v, %v; want [%s]", names, err, id)
	}

	h.track(id)
	h.expect("needs:" + id)

	tag := models.Tag{ImageID: id, Filename: "lease.pdf", Filepath: "/home/docs", Deadline: "2026-11-01"}
	if err := h.session.SubmitTag(ctx, tag); err != nil {
		t.Fatalf("SubmitTag: %v", err)
	}
	h.expect("placed:" + id)

	attached := h.renderer.Attached()
	if len(attached) != 1 || attached[0].Content == nil || *attached[0].Content != tag.Content() {
		t.Fatalf("attached = %+v", attached)
	}
	tags, err := h.session.ListTags(ctx)
	if err != nil || len(tags) != 1 || tags[0] != tag {
		t.Fatalf("ListTags = %v, %v", tags, err)
	}
}

func TestSessionCaptureRejectsFeaturelessImage(t *testing.T) {
	h := newSessionHarness(t)
	if _, err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err := h.session.CaptureImage(context.Background(), sim.Flat(128))
	if !errors.Is(err, models.ErrRegistration) {
		t.Fatalf("err = %v, want ErrRegistration", err)
	}
	names, _ := h.corpus.List(context.Background())
	if len(names) != 0 {
		t.Fatalf("rejected capture was saved: %v", names)
	}
}

func TestSessionDeleteTag(t *testing.T) {
	tag := models.Tag{ImageID: "a", Filename: "bill.pdf", Filepath: "/bills", Deadline: "2026-11-30"}
	h := newSessionHarness(t, tag)
	h.saveImage("a")
	h.saveImage("b")
	if _, err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.run()

	h.track("a")
	h.expect("placed:a")

	ctx := context.Background()
	if err := h.session.DeleteTag(ctx, "a"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	if _, err := h.store.Get(ctx, "a"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("store.Get after delete = %v", err)
	}
	if _, err := h.corpus.Load(ctx, "a"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("corpus.Load after delete = %v", err)
	}
	if got := h.renderer.Attached(); len(got) != 0 {
		t.Fatalf("overlays left after delete: %+v", got)
	}
	if got := h.tracker.Database().Len(); got != 1 {
		t.Fatalf("database has %d images after delete, want 1", got)
	}
	snap, err := h.session.Engine().Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Overlays) != 0 || len(snap.Awaiting) != 0 {
		t.Fatalf("engine state after delete = %+v", snap)
	}
}

func TestSessionDeleteTagKeepsOtherOverlays(t *testing.T) {
	tagA := models.Tag{ImageID: "a", Filename: "bill.pdf", Filepath: "/bills", Deadline: "2026-11-30"}
	tagB := models.Tag{ImageID: "b", Filename: "lease.pdf", Filepath: "/home", Deadline: "2027-01-31"}
	h := newSessionHarness(t, tagA, tagB)
	h.saveImage("a")
	h.saveImage("b")
	if _, err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.run()

	h.track("a")
	h.expect("placed:a")
	h.track("b")
	h.expect("placed:b")

	ctx := context.Background()
	if err := h.session.DeleteTag(ctx, "a"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}

	// b never stopped tracking, so the next frame restores its overlay.
	h.tick()
	h.expect("placed:b")

	attached := h.renderer.Attached()
	if len(attached) != 1 || attached[0].Content == nil || *attached[0].Content != tagB.Content() {
		t.Fatalf("attached = %+v, want only b's overlay", attached)
	}
	snap, err := h.session.Engine().Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Overlays) != 1 || snap.Overlays[0].ImageID != "b" || !snap.Overlays[0].Enabled {
		t.Fatalf("engine state after delete = %+v", snap)
	}
}

func TestSessionDeleteTagWithoutImage(t *testing.T) {
	h := newSessionHarness(t, models.Tag{ImageID: "orphan", Filename: "x", Filepath: "/x", Deadline: "EOD"})
	if _, err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.run()

	if err := h.session.DeleteTag(context.Background(), "orphan"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
}

func TestSessionDeleteTagStoreFailure(t *testing.T) {
	h := newSessionHarness(t, models.Tag{ImageID: "a", Filename: "a", Filepath: "/a", Deadline: "EOD"})
	h.saveImage("a")
	if _, err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.run()

	h.store.FailNext(models.ErrTransientIO)
	if err := h.session.DeleteTag(context.Background(), "a"); !errors.Is(err, models.ErrTransientIO) {
		t.Fatalf("err = %v, want ErrTransientIO", err)
	}
	if _, err := h.corpus.Load(context.Background(), "a"); err != nil {
		t.Fatalf("image removed despite store failure: %v", err)
	}
}
