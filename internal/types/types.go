package types

// PointerSample is an absolute pointer position in surface-local pixels.
// A sample is a self-contained value: the sampler owns it until it is
// published, then whoever takes it owns it.
type PointerSample struct {
	X float64
	Y float64
}

// SurfaceDimensions is a compositor-reported surface size in pixels.
type SurfaceDimensions struct {
	Width  uint32
	Height uint32
}

// Degenerate reports whether either axis is zero. Compositors report (0,0)
// to mean "you pick".
func (d SurfaceDimensions) Degenerate() bool {
	return d.Width == 0 || d.Height == 0
}

// PointerSourceKind selects how pointer positions are sampled.
type PointerSourceKind string

const (
	// PointerSourceAuto probes evdev first and falls back to polling.
	PointerSourceAuto PointerSourceKind = "auto"
	// PointerSourceEvdev accumulates relative deltas from /dev/input.
	PointerSourceEvdev PointerSourceKind = "evdev"
	// PointerSourcePoll polls an absolute position at a fixed interval.
	PointerSourcePoll PointerSourceKind = "poll"
)
