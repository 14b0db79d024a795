package engine

// Signals receives the engine's upward notifications. Methods are called on
// the engine goroutine and must not block or call back into the engine
// synchronously.
type Signals interface {
	OnNeedsTagInput(imageID string)
	OnOverlayPlaced(imageID string)
	OnLookupFailed(imageID string, err error)
	OnOverlayFailed(imageID string, err error)
}

// SignalFuncs adapts plain functions to Signals. Nil fields are ignored.
type SignalFuncs struct {
	NeedsTagInput func(imageID string)
	OverlayPlaced func(imageID string)
	LookupFailed  func(imageID string, err error)
	OverlayFailed func(imageID string, err error)
}

func (f SignalFuncs) OnNeedsTagInput(imageID string) {
	if f.NeedsTagInput != nil {
		f.NeedsTagInput(imageID)
	}
}

func (f SignalFuncs) OnOverlayPlaced(imageID string) {
	if f.OverlayPlaced != nil {
		f.OverlayPlaced(imageID)
	}
}

func (f SignalFuncs) OnLookupFailed(imageID string, err error) {
	if f.LookupFailed != nil {
		f.LookupFailed(imageID, err)
	}
}

func (f SignalFuncs) OnOverlayFailed(imageID string, err error) {
	if f.OverlayFailed != nil {
		f.OverlayFailed(imageID, err)
	}
}
