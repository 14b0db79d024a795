// Package sim is an in-process stand-in for the vendor tracker and renderer.
// Tests and the frame replay tool drive it directly.
package sim

import (
	"fmt"
	"image"
	"math"
	"sort"
	"sync"

	"golang.org/x/image/draw"

	"github.com/Lllllllleong/arfiletagger/internal/ar"
	"github.com/Lllllllleong/arfiletagger/internal/models"
)

const (
	// MinSide is the smallest width or height accepted for a reference image.
	MinSide = 64
	// MinContrast is the minimum luminance standard deviation across the image.
	MinContrast = 8.0
)

// Database is the sim ImageDatabase.
type Database struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func newDatabase() *Database {
	return &Database{names: make(map[string]struct{})}
}

// AddImage rejects images that are too small or too flat to track.
func (d *Database) AddImage(name string, img image.Image) error {
	if name == "" {
		return fmt.Errorf("%w: empty image name", models.ErrInvalidInput)
	}
	if img == nil {
		return fmt.Errorf("%w: %s: nil image", models.ErrRegistration, name)
	}
	b := img.Bounds()
	if b.Dx() < MinSide || b.Dy() < MinSide {
		return fmt.Errorf("%w: %s: %dx%d is below %dpx", models.ErrRegistration, name, b.Dx(), b.Dy(), MinSide)
	}
	if c := Contrast(img); c < MinContrast {
		return fmt.Errorf("%w: %s: not enough visual features (contrast %.1f)", models.ErrRegistration, name, c)
	}
	d.mu.Lock()
	d.names[name] = struct{}{}
	d.mu.Unlock()
	return nil
}

func (d *Database) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.names)
}

// Names returns the registered names in sorted order.
func (d *Database) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.names))
	for n := range d.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (d *Database) has(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.names[name]
	return ok
}

// Contrast converts img to grayscale at its own resolution and returns the
// standard deviation of its luminance. Fine detail counts in full.
func Contrast(img image.Image) float64 {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)

	var sum, sumSq float64
	for _, p := range gray.Pix {
		v := float64(p)
		sum += v
		sumSq += v * v
	}
	n := float64(len(gray.Pix))
	mean := sum / n
	return math.Sqrt(math.Max(sumSq/n-mean*mean, 0))
}

// Tracker is the sim ar.Tracker. Frames are produced by calling Update.
type Tracker struct {
	mu    sync.Mutex
	db    *Database
	live  map[string]models.TrackedImage
	frame map[string]models.TrackedImage
	order []string
}

var _ ar.Tracker = (*Tracker)(nil)

func NewTracker() *Tracker {
	return &Tracker{
		live:  make(map[string]models.TrackedImage),
		frame: make(map[string]models.TrackedImage),
	}
}

func (t *Tracker) NewDatabase() ar.ImageDatabase {
	return newDatabase()
}

func (t *Tracker) Database() ar.ImageDatabase {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return nil
	}
	return t.db
}

// Configure swaps in db. Images no longer in the database stop being tracked;
// the rest keep their live state and are reported again on the next frame.
func (t *Tracker) Configure(db ar.ImageDatabase) error {
	sdb, ok := db.(*Database)
	if !ok {
		return fmt.Errorf("sim tracker cannot use database of type %T", db)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.db = sdb
	for id := range t.live {
		if !sdb.has(id) {
			delete(t.live, id)
		}
	}
	clear(t.frame)
	t.order = t.order[:0]
	return nil
}

// Update records new states for the next frame. Images that are not
// registered in the configured database are ignored, as the real tracker
// cannot recognize them.
func (t *Tracker) Update(images ...models.TrackedImage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, img := range images {
		if t.db == nil || !t.db.has(img.ImageID) {
			continue
		}
		if img.State == models.Stopped {
			delete(t.live, img.ImageID)
		} else {
			t.live[img.ImageID] = img
		}
		if _, ok := t.frame[img.ImageID]; !ok {
			t.order = append(t.order, img.ImageID)
		}
		t.frame[img.ImageID] = img
	}
}

// UpdatedTrackables returns what changed this frame: the latest state of each
// image updated since the previous call, in first-update order, followed by
// every other image still TRACKING, in name order. Like the real tracker, a
// tracked image gets a fresh pose every frame until it is paused or stopped.
func (t *Tracker) UpdatedTrackables() []models.TrackedImage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.TrackedImage, 0, len(t.order)+len(t.live))
	for _, id := range t.order {
		out = append(out, t.frame[id])
	}
	var still []string
	for id, img := range t.live {
		if _, updated := t.frame[id]; !updated && img.State == models.Tracking {
			still = append(still, id)
		}
	}
	sort.Strings(still)
	for _, id := range still {
		out = append(out, t.live[id])
	}
	clear(t.frame)
	t.order = t.order[:0]
	if len(out) == 0 {
		return nil
	}
	return out
}

func (t *Tracker) Current(imageID string) (models.TrackedImage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	img, ok := t.live[imageID]
	return img, ok
}
