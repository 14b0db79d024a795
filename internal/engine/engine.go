// Package engine reconciles the tracker's per-frame view of recognized images
// against placed overlay nodes and the remote tag store.
//
// All engine state lives on a single goroutine started by Run. Frame ticks,
// tag store completions, tag submissions and host commands are marshalled
// onto that goroutine through an inbox, so nothing here takes a lock.
//
// Per image the engine moves through:
//
//	Unknown -> AwaitingInput -> Tagged(overlay) <-> Tagged(hidden)
//
// STOPPED from any state returns the image to Unknown.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Lllllllleong/arfiletagger/internal/ar"
	"github.com/Lllllllleong/arfiletagger/internal/models"
)

// DefaultLookupTimeout bounds a single tag lookup.
const DefaultLookupTimeout = 10 * time.Second

const defaultInboxSize = 64

var (
	// ErrStopped is returned when a request reaches an engine whose Run has returned.
	ErrStopped = errors.New("engine stopped")

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("engine already running")
)

// TagStore is the part of the tag store the engine uses.
type TagStore interface {
	Get(ctx context.Context, imageID string) (models.Tag, error)
	Set(ctx context.Context, tag models.Tag) error
}

// Options configures an Engine.
type Options struct {
	Tracker  ar.Tracker
	Renderer ar.Renderer
	Store    TagStore
	Signals  Signals
	Logger   *slog.Logger

	// LookupTimeout bounds each tag lookup; expiry counts as a lookup failure.
	LookupTimeout time.Duration
	// InboxSize is the capacity of the request queue feeding the engine goroutine.
	InboxSize int
}

// awaitEntry marks an image with a lookup in flight or a pending prompt.
type awaitEntry struct {
	seq       uint64
	prompting bool
}

// Engine is the reconciliation engine.
type Engine struct {
	tracker       ar.Tracker
	renderer      ar.Renderer
	store         TagStore
	signals       Signals
	logger        *slog.Logger
	lookupTimeout time.Duration

	inbox   chan func()
	done    chan struct{}
	running atomic.Bool
	lookups sync.WaitGroup

	// Owned by the Run goroutine.
	runCtx   context.Context
	overlays map[string]*placedOverlay
	awaiting map[string]awaitEntry
	seq      uint64
}

// New validates opts and returns an engine ready to Run.
func New(opts Options) (*Engine, error) {
	if opts.Tracker == nil || opts.Renderer == nil || opts.Store == nil {
		return nil, fmt.Errorf("engine.New: tracker, renderer and store are required")
	}
	if opts.Signals == nil {
		opts.Signals = SignalFuncs{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = DefaultLookupTimeout
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}
	return &Engine{
		tracker:       opts.Tracker,
		renderer:      opts.Renderer,
		store:         opts.Store,
		signals:       opts.Signals,
		logger:        opts.Logger.With("component", "engine"),
		lookupTimeout: opts.LookupTimeout,
		inbox:         make(chan func(), opts.InboxSize),
		done:          make(chan struct{}),
		overlays:      make(map[string]*placedOverlay),
		awaiting:      make(map[string]awaitEntry),
	}, nil
}

// Run owns the engine state until ctx is cancelled or ticks is closed. Each
// value received from ticks is one rendering frame: the engine reads the
// tracker's updated images and reconciles them. On return every overlay has
// been detached and no lookup goroutine is left running.
func (e *Engine) Run(ctx context.Context, ticks <-chan time.Time) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.runCtx = runCtx

	e.logger.Info("Reconciliation loop started.", "lookupTimeout", e.lookupTimeout.String())
	defer func() {
		e.detachAll()
		close(e.done)
		cancel()
		e.lookups.Wait()
		e.logger.Info("Reconciliation loop stopped.")
	}()

	for {
		select {
		case <-runCtx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			e.reconcile(e.tracker.UpdatedTrackables())
		case fn := <-e.inbox:
			fn()
		}
	}
}

// post queues fn for the engine goroutine.
func (e *Engine) post(ctx context.Context, fn func()) error {
	select {
	case e.inbox <- fn:
		return nil
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the engine goroutine and waits for it to finish.
func (e *Engine) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := e.post(ctx, func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reconcile processes an explicit list of updated images, for hosts that
// receive frame callbacks themselves instead of handing Run a tick channel.
// The images are processed on the engine goroutine, in order with every
// other request.
func (e *Engine) Reconcile(ctx context.Context, images []models.TrackedImage) error {
	batch := append([]models.TrackedImage(nil), images...)
	return e.post(ctx, func() { e.reconcile(batch) })
}

func (e *Engine) reconcile(images []models.TrackedImage) {
	for _, img := range images {
		id := img.ImageID
		if id == "" {
			continue
		}
		switch img.State {
		case models.Tracking:
			if ov, ok := e.overlays[id]; ok {
				e.setEnabled(ov, true)
				continue
			}
			if _, ok := e.awaiting[id]; ok {
				continue
			}
			e.startLookup(id)
		case models.Stopped:
			if e.forget(id) {
				e.logger.Info("Image stopped tracking. Removed overlay.", "imageId", id)
			}
		default:
			if ov, ok := e.overlays[id]; ok {
				e.setEnabled(ov, false)
			}
		}
	}
}

func (e *Engine) startLookup(imageID string) {
	e.seq++
	seq := e.seq
	e.awaiting[imageID] = awaitEntry{seq: seq}
	e.logger.Info("New image detected. Checking tag store for existing tag.", "imageId", imageID, "lookup", seq)

	e.lookups.Add(1)
	go func() {
		defer e.lookups.Done()
		ctx, cancel := context.WithTimeout(e.runCtx, e.lookupTimeout)
		tag, err := e.store.Get(ctx, imageID)
		cancel()
		_ = e.post(context.Background(), func() { e.resolveLookup(imageID, seq, tag, err) })
	}()
}

func (e *Engine) resolveLookup(imageID string, seq uint64, tag models.Tag, err error) {
	logCtx := e.logger.With("imageId", imageID, "lookup", seq)
	entry, ok := e.awaiting[imageID]
	if !ok || entry.seq != seq {
		logCtx.Info("Discarding stale lookup result.")
		return
	}

	switch {
	case err == nil:
		delete(e.awaiting, imageID)
		img, tracking := e.tracking(imageID)
		if !tracking {
			logCtx.Info("Tag found but image is no longer tracking. Not placing overlay.")
			return
		}
		logCtx.Info("Tag found. Displaying it.")
		e.place(img, tag)
	case errors.Is(err, models.ErrNotFound):
		entry.prompting = true
		e.awaiting[imageID] = entry
		logCtx.Info("No tag found. Prompting for input.")
		e.signals.OnNeedsTagInput(imageID)
	default:
		delete(e.awaiting, imageID)
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: tag lookup timed out after %s", models.ErrTransientIO, e.lookupTimeout)
		}
		logCtx.Warn("Tag lookup failed. Will retry on next tracking frame.", "error", err)
		e.signals.OnLookupFailed(imageID, err)
	}
}

// tracking reads the live tracker state for imageID.
func (e *Engine) tracking(imageID string) (models.TrackedImage, bool) {
	img, ok := e.tracker.Current(imageID)
	if !ok || img.State != models.Tracking {
		return models.TrackedImage{}, false
	}
	return img, true
}

// place replaces any overlay for img with a new one showing tag.
func (e *Engine) place(img models.TrackedImage, tag models.Tag) {
	id := img.ImageID
	e.removeOverlay(id)

	anchor, err := e.renderer.Attach(img.Pose)
	if err != nil {
		e.logger.Error("Failed to attach anchor", "imageId", id, "error", err)
		e.signals.OnOverlayFailed(id, err)
		return
	}
	content := tag.Content()
	node, err := e.renderer.CreateOverlayNode(anchor, content, overlayNodeOptions)
	if err != nil {
		e.renderer.Detach(anchor)
		e.logger.Error("Failed to create overlay node", "imageId", id, "error", err)
		e.signals.OnOverlayFailed(id, err)
		return
	}
	e.overlays[id] = &placedOverlay{anchor: anchor, node: node, enabled: true, content: content}
	e.logger.Info("Overlay placed.", "imageId", id)
	e.signals.OnOverlayPlaced(id)
}

func (e *Engine) setEnabled(ov *placedOverlay, enabled bool) {
	if ov.enabled == enabled {
		return
	}
	e.renderer.SetEnabled(ov.anchor, enabled)
	ov.enabled = enabled
}

// removeOverlay detaches the overlay for imageID, reporting whether one existed.
func (e *Engine) removeOverlay(imageID string) bool {
	ov, ok := e.overlays[imageID]
	if !ok {
		return false
	}
	e.renderer.Detach(ov.anchor)
	delete(e.overlays, imageID)
	return true
}

// forget returns imageID to Unknown.
func (e *Engine) forget(imageID string) bool {
	_, waiting := e.awaiting[imageID]
	delete(e.awaiting, imageID)
	return e.removeOverlay(imageID) || waiting
}

func (e *Engine) detachAll() {
	for id := range e.overlays {
		e.removeOverlay(id)
	}
	clear(e.awaiting)
}

// SubmitTag upserts tag through the store and, once written, shows it on the
// image if that image is tracking right now. The image leaves the
// awaiting-input set whether or not the write succeeded. The returned error is
// the store's.
func (e *Engine) SubmitTag(ctx context.Context, tag models.Tag) error {
	if err := tag.Validate(); err != nil {
		return err
	}
	writeErr := e.store.Set(ctx, tag)
	if err := e.post(ctx, func() { e.applySubmission(tag, writeErr) }); err != nil && writeErr == nil {
		return err
	}
	return writeErr
}

func (e *Engine) applySubmission(tag models.Tag, writeErr error) {
	id := tag.ImageID
	delete(e.awaiting, id)
	if writeErr != nil {
		e.logger.Error("Failed to save tag", "imageId", id, "error", writeErr)
		return
	}
	img, tracking := e.tracking(id)
	if !tracking {
		if e.removeOverlay(id) {
			e.logger.Info("Removed outdated overlay for image that is not tracking.", "imageId", id)
		}
		e.logger.Warn("Image not tracking after input. Tag saved; scan the image again to see it.", "imageId", id)
		return
	}
	e.logger.Info("Image is still tracking. Creating/updating overlay.", "imageId", id)
	e.place(img, tag)
}

// CancelInput drops a pending prompt for imageID. If the image is still
// tracking, the next frame looks it up again.
func (e *Engine) CancelInput(ctx context.Context, imageID string) error {
	return e.post(ctx, func() {
		if entry, ok := e.awaiting[imageID]; ok && entry.prompting {
			delete(e.awaiting, imageID)
			e.logger.Info("Tag input cancelled.", "imageId", imageID)
		}
	})
}

// Detach removes any overlay for imageID and returns it to Unknown. Hosts
// call it after a tag is deleted.
func (e *Engine) Detach(ctx context.Context, imageID string) error {
	return e.call(ctx, func() {
		if e.forget(imageID) {
			e.logger.Info("Overlay detached on request.", "imageId", imageID)
		}
	})
}

// Reset detaches every overlay and forgets every pending lookup or prompt.
// Hosts call it after reconfiguring the tracker's reference images.
func (e *Engine) Reset(ctx context.Context) error {
	return e.call(ctx, func() {
		n := len(e.overlays)
		e.detachAll()
		e.logger.Info("Cleared all placed overlays from the scene.", "count", n)
	})
}

// OverlayInfo describes one placed overlay.
type OverlayInfo struct {
	ImageID string
	Enabled bool
	Content models.OverlayContent
}

// Snapshot is a point-in-time copy of the engine's bookkeeping.
type Snapshot struct {
	Overlays []OverlayInfo
	Awaiting []string
}

// Snapshot returns a copy of the engine state, sorted by imageId.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := e.call(ctx, func() {
		for id, ov := range e.overlays {
			s.Overlays = append(s.Overlays, OverlayInfo{ImageID: id, Enabled: ov.enabled, Content: ov.content})
		}
		for id := range e.awaiting {
			s.Awaiting = append(s.Awaiting, id)
		}
	})
	if err != nil {
		// fn may still be running on the engine goroutine.
		return Snapshot{}, err
	}
	sort.Slice(s.Overlays, func(i, j int) bool { return s.Overlays[i].ImageID < s.Overlays[j].ImageID })
	sort.Strings(s.Awaiting)
	return s, nil
}
