package main

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Lllllllleong/arfiletagger/internal/ar/sim"
	"github.com/Lllllllleong/arfiletagger/internal/models"
)

// lastCapture in a frame or step refers to the image id produced by the most
// recent capture step.
const lastCapture = "$captured"

// Script is a recorded AR session: reference images, seed tags and a
// sequence of steps replayed one after another.
type Script struct {
	References []Reference `yaml:"references"`
	Tags       []TagSpec   `yaml:"tags"`
	Steps      []Step      `yaml:"steps"`
}

// Reference describes a reference image, either a file on disk or a
// generated pattern.
type Reference struct {
	Name    string `yaml:"name"`
	File    string `yaml:"file"`
	Pattern string `yaml:"pattern"`
	Size    int    `yaml:"size"`
	Square  int    `yaml:"square"`
}

// TagSpec is a tag as written in a script.
type TagSpec struct {
	ImageID  string `yaml:"imageId"`
	Filename string `yaml:"filename"`
	Filepath string `yaml:"filepath"`
	Deadline string `yaml:"deadline"`
}

func (t TagSpec) Tag() models.Tag {
	return models.Tag{ImageID: t.ImageID, Filename: t.Filename, Filepath: t.Filepath, Deadline: t.Deadline}
}

// Step does exactly one thing.
type Step struct {
	Frame   []FrameImage  `yaml:"frame"`
	Submit  *TagSpec      `yaml:"submit"`
	Cancel  string        `yaml:"cancel"`
	Delete  string        `yaml:"delete"`
	Capture *Reference    `yaml:"capture"`
	Wait    time.Duration `yaml:"wait"`
}

// FrameImage is one image's state in a frame.
type FrameImage struct {
	Image    string    `yaml:"image"`
	State    string    `yaml:"state"`
	Position []float32 `yaml:"position"`
}

// Tracked converts the frame entry into a tracker update for imageID.
func (f FrameImage) Tracked(imageID string) (models.TrackedImage, error) {
	state, ok := models.ParseTrackingState(strings.ToUpper(strings.TrimSpace(f.State)))
	if !ok {
		return models.TrackedImage{}, fmt.Errorf("unknown tracking state %q for %s", f.State, f.Image)
	}
	pose := models.IdentityPose
	switch len(f.Position) {
	case 0:
	case 3:
		pose.Position = models.Vector3{X: f.Position[0], Y: f.Position[1], Z: f.Position[2]}
	default:
		return models.TrackedImage{}, fmt.Errorf("position of %s must have 3 components, got %d", f.Image, len(f.Position))
	}
	return models.TrackedImage{ImageID: imageID, State: state, Pose: pose}, nil
}

// LoadScript reads and validates a script file.
func LoadScript(path string) (*Script, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("script path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseScript(data)
}

func parseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	for i, ref := range s.References {
		if strings.TrimSpace(ref.Name) == "" {
			return nil, fmt.Errorf("reference %d has no name", i)
		}
	}
	for i, tag := range s.Tags {
		if err := tag.Tag().Validate(); err != nil {
			return nil, fmt.Errorf("tag %d: %w", i, err)
		}
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &s, nil
}

func (s Step) validate() error {
	actions := 0
	if len(s.Frame) > 0 {
		actions++
		for _, f := range s.Frame {
			if strings.TrimSpace(f.Image) == "" {
				return fmt.Errorf("frame entry has no image")
			}
			if _, err := f.Tracked(f.Image); err != nil {
				return err
			}
		}
	}
	if s.Submit != nil {
		actions++
	}
	if s.Cancel != "" {
		actions++
	}
	if s.Delete != "" {
		actions++
	}
	if s.Capture != nil {
		actions++
	}
	if s.Wait > 0 {
		actions++
	}
	if actions != 1 {
		return fmt.Errorf("each step needs exactly one of frame, submit, cancel, delete, capture, wait; found %d", actions)
	}
	return nil
}

// Image produces the reference's pixels.
func (r Reference) Image() (image.Image, error) {
	if r.File != "" {
		f, err := os.Open(r.File)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", r.File, err)
		}
		return img, nil
	}

	size := r.Size
	if size <= 0 {
		size = 256
	}
	switch r.Pattern {
	case "", "checkerboard":
		square := r.Square
		if square <= 0 {
			square = size / 8
		}
		return sim.Checkerboard(size, square), nil
	case "flat":
		return sim.Flat(size), nil
	default:
		return nil, fmt.Errorf("unknown pattern %q", r.Pattern)
	}
}
