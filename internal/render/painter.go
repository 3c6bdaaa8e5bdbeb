package render

import (
	"github.com/gogpu/gputypes"

	"github.com/matjam/shaderpaper/internal/gpu"
	"github.com/matjam/shaderpaper/internal/surface"
)

// Painter is the drawing half of the render loop. gpu.Painter is the real
// implementation; the engine tests substitute a recording fake.
type Painter interface {
	// Prepare builds the pipeline against the swapchain's texture format.
	Prepare(format gputypes.TextureFormat) error
	// WriteUniform uploads the pointer uniform. It runs before the frame
	// is acquired so the upload is ordered ahead of the draw.
	WriteUniform(u gpu.Uniform) error
	// Paint records and submits the pass into the acquired frame.
	Paint(frame surface.Frame) error
	// SetSource swaps the shader, keeping the current one on failure.
	SetSource(wgsl string) error
	Destroy()
}
