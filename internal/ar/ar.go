// Package ar declares the capabilities the app needs from the vendor AR
// tracking engine and 3D scene renderer. Nothing here is implemented by the
// app itself; sim provides an in-process stand-in.
package ar

import (
	"image"

	"github.com/Lllllllleong/arfiletagger/internal/models"
)

// ImageDatabase collects reference images before they are handed to a Tracker.
type ImageDatabase interface {
	// AddImage registers img under name. It returns an error wrapping
	// models.ErrRegistration when the image cannot be tracked.
	AddImage(name string, img image.Image) error
	// Len is the number of registered images.
	Len() int
}

// Tracker reports, once per rendering frame, the state of every recognized image.
type Tracker interface {
	NewDatabase() ImageDatabase
	// Database returns the database currently in use, or nil before Configure.
	Database() ImageDatabase
	Configure(db ImageDatabase) error
	// UpdatedTrackables returns images whose state changed since the previous call.
	UpdatedTrackables() []models.TrackedImage
	// Current returns the live state of one image.
	Current(imageID string) (models.TrackedImage, bool)
}

// Anchor and Node are opaque renderer handles.
type (
	Anchor any
	Node   any
)

// NodeOptions positions an overlay node relative to its anchor.
type NodeOptions struct {
	LocalPosition models.Vector3
	LocalRotation models.Quaternion
}

// Renderer places overlay nodes in the scene graph.
type Renderer interface {
	Attach(pose models.Pose) (Anchor, error)
	CreateOverlayNode(anchor Anchor, content models.OverlayContent, opts NodeOptions) (Node, error)
	SetEnabled(anchor Anchor, enabled bool)
	Detach(anchor Anchor)
}
