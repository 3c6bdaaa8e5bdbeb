package surface

import (
	"errors"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/matjam/shaderpaper/internal/types"
)

// PresentMode selects how submitted frames replace each other.
type PresentMode int

const (
	// PresentModeMailbox: the most recently submitted frame wins and
	// presenting never blocks the producer. The only mode a background
	// surface asks for; Wayland commits behave this way natively.
	PresentModeMailbox PresentMode = iota
	// PresentModeFifo queues frames in submission order.
	PresentModeFifo
)

// Config is one swapchain (re)configuration.
type Config struct {
	Dimensions types.SurfaceDimensions
	Format     gputypes.TextureFormat
	Mode       PresentMode
}

// Frame is one acquired drawable target.
type Frame interface {
	View() hal.TextureView
}

// ErrSurfaceLost reports that the drawable went stale, usually a size race
// with the compositor, and must be reconfigured before the next acquire.
var ErrSurfaceLost = errors.New("surface: lost, reconfigure required")

// Swapchain is the GPU-facing drawable surface. Two implementations exist:
// the wl_shm-backed session swapchain and the offscreen readback swapchain
// used by preview and tests.
type Swapchain interface {
	// Formats lists the supported texture formats, preferred first.
	Formats() []gputypes.TextureFormat
	Configure(cfg Config) error
	// Acquire returns the next drawable, or ErrSurfaceLost when the
	// swapchain must be reconfigured first.
	Acquire() (Frame, error)
	// Present submits an acquired frame for display.
	Present(f Frame) error
	Destroy()
}
