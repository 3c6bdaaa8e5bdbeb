package wayland

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/matjam/shaderpaper/internal/gpu"
	"github.com/matjam/shaderpaper/internal/surface"
	"github.com/matjam/shaderpaper/internal/types"
)

// Swapchain presents HAL-rendered frames on the session's surface. Frames
// are rendered offscreen, read back and committed as shm buffers. Acquire
// reports the surface lost when the compositor resized it after the last
// Configure, so the caller never draws into a stale size.
type Swapchain struct {
	session    *Session
	off        *gpu.Offscreen
	dims       types.SurfaceDimensions
	configured bool
}

func NewSwapchain(device hal.Device, queue hal.Queue, session *Session) *Swapchain {
	sw := &Swapchain{session: session}
	sw.off = gpu.NewOffscreen(device, queue, session.presentPixels)
	return sw
}

func (sw *Swapchain) Formats() []gputypes.TextureFormat {
	return sw.off.Formats()
}

func (sw *Swapchain) Configure(cfg surface.Config) error {
	if err := sw.session.ensurePool(cfg.Dimensions); err != nil {
		return err
	}
	if err := sw.off.Configure(cfg); err != nil {
		return err
	}
	sw.dims = cfg.Dimensions
	sw.configured = true
	return nil
}

func (sw *Swapchain) Acquire() (surface.Frame, error) {
	if sw.configured {
		// A degenerate size from the compositor means the client picks,
		// so whatever we are configured at is still valid.
		if cur, ok := sw.session.CurrentDimensions(); ok && !cur.Degenerate() && cur != sw.dims {
			return nil, surface.ErrSurfaceLost
		}
	}
	return sw.off.Acquire()
}

func (sw *Swapchain) Present(f surface.Frame) error {
	return sw.off.Present(f)
}

// Destroy releases the GPU side. The shm pool belongs to the session and
// goes away with it.
func (sw *Swapchain) Destroy() {
	sw.off.Destroy()
}
