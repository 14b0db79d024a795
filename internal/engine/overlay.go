package engine

import (
	"math"

	"github.com/Lllllllleong/arfiletagger/internal/ar"
	"github.com/Lllllllleong/arfiletagger/internal/models"
)

// placedOverlay is a live anchor+node pair for one image.
type placedOverlay struct {
	anchor  ar.Anchor
	node    ar.Node
	enabled bool
	content models.OverlayContent
}

// overlayNodeOptions lays the card flat on the image, 5mm above its plane,
// with text running along the image's long edge.
var overlayNodeOptions = ar.NodeOptions{
	LocalPosition: models.Vector3{Y: 0.005},
	LocalRotation: multiply(
		axisAngle(models.Vector3{X: 1}, -90),
		axisAngle(models.Vector3{Z: 1}, 90),
	),
}

// axisAngle builds a rotation of degrees around a unit axis.
func axisAngle(axis models.Vector3, degrees float64) models.Quaternion {
	half := degrees * math.Pi / 360
	s := float32(math.Sin(half))
	return models.Quaternion{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: float32(math.Cos(half)),
	}
}

// multiply returns a*b (apply b, then a).
func multiply(a, b models.Quaternion) models.Quaternion {
	return models.Quaternion{
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y,
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X,
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W,
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z,
	}
}
