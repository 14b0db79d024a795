package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Lllllllleong/arfiletagger/internal/ar"
	"github.com/Lllllllleong/arfiletagger/internal/models"
)

// ErrRenderFailed is returned by CreateOverlayNode after FailNodes(true).
var ErrRenderFailed = errors.New("could not load view renderable")

// Anchor is the sim anchor handle.
type Anchor struct {
	ID      uint64
	Pose    models.Pose
	Enabled bool
	Node    *Node
}

// Node is the sim overlay node handle.
type Node struct {
	Content models.OverlayContent
	Options ar.NodeOptions
}

// Renderer is the sim ar.Renderer; it keeps attached anchors in a map.
type Renderer struct {
	mu        sync.Mutex
	nextID    uint64
	anchors   map[uint64]*Anchor
	failNodes bool
	detached  int
}

var _ ar.Renderer = (*Renderer)(nil)

func NewRenderer() *Renderer {
	return &Renderer{anchors: make(map[uint64]*Anchor)}
}

// FailNodes makes subsequent CreateOverlayNode calls fail.
func (r *Renderer) FailNodes(fail bool) {
	r.mu.Lock()
	r.failNodes = fail
	r.mu.Unlock()
}

func (r *Renderer) Attach(pose models.Pose) (ar.Anchor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a := &Anchor{ID: r.nextID, Pose: pose, Enabled: true}
	r.anchors[a.ID] = a
	return a, nil
}

func (r *Renderer) CreateOverlayNode(anchor ar.Anchor, content models.OverlayContent, opts ar.NodeOptions) (ar.Node, error) {
	a, err := r.lookup(anchor)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNodes {
		return nil, ErrRenderFailed
	}
	if _, ok := r.anchors[a.ID]; !ok {
		return nil, fmt.Errorf("anchor %d is not attached", a.ID)
	}
	a.Node = &Node{Content: content, Options: opts}
	return a.Node, nil
}

func (r *Renderer) SetEnabled(anchor ar.Anchor, enabled bool) {
	a, err := r.lookup(anchor)
	if err != nil {
		return
	}
	r.mu.Lock()
	a.Enabled = enabled
	r.mu.Unlock()
}

func (r *Renderer) Detach(anchor ar.Anchor) {
	a, err := r.lookup(anchor)
	if err != nil {
		return
	}
	r.mu.Lock()
	if _, ok := r.anchors[a.ID]; ok {
		delete(r.anchors, a.ID)
		r.detached++
	}
	r.mu.Unlock()
}

func (r *Renderer) lookup(anchor ar.Anchor) (*Anchor, error) {
	a, ok := anchor.(*Anchor)
	if !ok || a == nil {
		return nil, fmt.Errorf("sim renderer cannot use anchor of type %T", anchor)
	}
	return a, nil
}

// Snapshot is a copy of an attached anchor.
type Snapshot struct {
	Pose    models.Pose
	Enabled bool
	Content *models.OverlayContent
}

// Attached returns copies of every attached anchor.
func (r *Renderer) Attached() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, 0, len(r.anchors))
	for _, a := range r.anchors {
		s := Snapshot{Pose: a.Pose, Enabled: a.Enabled}
		if a.Node != nil {
			c := a.Node.Content
			s.Content = &c
		}
		out = append(out, s)
	}
	return out
}

// Detached counts anchors removed from the scene so far.
func (r *Renderer) Detached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detached
}
