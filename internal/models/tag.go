package models

import (
	"fmt"
	"strings"
)

// Tag is the metadata a user attaches to a recognized reference image.
// It is stored in Firestore as one document per image, keyed by ImageID.
type Tag struct {
	ImageID  string `firestore:"imageId" json:"imageId"`
	Filename string `firestore:"filename" json:"filename"`
	Filepath string `firestore:"filepath" json:"filepath"`
	Deadline string `firestore:"deadline" json:"deadline"`
}

// Validate rejects tags that must never be sent to the store. Every field is
// required; the deadline is a free-form label but may not be blank.
func (t Tag) Validate() error {
	if strings.TrimSpace(t.ImageID) == "" {
		return fmt.Errorf("%w: imageId must not be blank", ErrInvalidInput)
	}
	for _, f := range []struct{ name, value string }{
		{"filename", t.Filename},
		{"filepath", t.Filepath},
		{"deadline", t.Deadline},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s must not be blank for %s", ErrInvalidInput, f.name, t.ImageID)
		}
	}
	return nil
}

// OverlayContent is what an overlay node displays for a tag.
type OverlayContent struct {
	Filename string
	Filepath string
	Deadline string
}

// Content returns the overlay fields for the tag.
func (t Tag) Content() OverlayContent {
	return OverlayContent{Filename: t.Filename, Filepath: t.Filepath, Deadline: t.Deadline}
}

// Lines renders the content the way the overlay card shows it.
func (c OverlayContent) Lines() []string {
	return []string{
		"Filename: " + c.Filename,
		"Path: " + c.Filepath,
		"Deadline: " + c.Deadline,
	}
}
