package models

// TrackingState is the lifecycle state the tracker reports for an image instance.
type TrackingState int

const (
	Tracking TrackingState = iota + 1
	Paused
	Stopped
)

func (s TrackingState) String() string {
	switch s {
	case Tracking:
		return "TRACKING"
	case Paused:
		return "PAUSED"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ParseTrackingState is the inverse of String.
func ParseTrackingState(s string) (TrackingState, bool) {
	switch s {
	case "TRACKING":
		return Tracking, true
	case "PAUSED":
		return Paused, true
	case "STOPPED":
		return Stopped, true
	}
	return 0, false
}

// Vector3 is a position or axis in world space, in meters.
type Vector3 struct {
	X, Y, Z float32
}

// Quaternion is a rotation.
type Quaternion struct {
	X, Y, Z, W float32
}

// Pose is a position plus orientation.
type Pose struct {
	Position    Vector3
	Orientation Quaternion
}

// IdentityPose sits at the origin with no rotation.
var IdentityPose = Pose{Orientation: Quaternion{W: 1}}

// TrackedImage is the tracker's view of one recognized image in the current frame.
// Values are only valid for the frame they were read in.
type TrackedImage struct {
	ImageID string
	State   TrackingState
	Pose    Pose
}
