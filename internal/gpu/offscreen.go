package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/matjam/shaderpaper/internal/surface"
	"github.com/matjam/shaderpaper/internal/types"
)

// PresentFunc receives a finished frame as tightly packed 32-bit pixels,
// rows top to bottom, in the swapchain's texture format.
type PresentFunc func(dims types.SurfaceDimensions, pixels []byte) error

// Offscreen implements surface.Swapchain over a HAL render target with
// CPU readback. The wayland session copies the pixels into wl_shm
// buffers; the preview command writes them to a PNG. Present mode is left
// to the consumer, which drops frames when it has nowhere to put them.
type Offscreen struct {
	device  hal.Device
	queue   hal.Queue
	present PresentFunc

	dims     types.SurfaceDimensions
	format   gputypes.TextureFormat
	texture  hal.Texture
	view     hal.TextureView
	staging  hal.Buffer
	readback []byte
	pixels   []byte

	rowBytes   uint32
	alignedRow uint32
}

type offscreenFrame struct {
	view hal.TextureView
}

func (f offscreenFrame) View() hal.TextureView { return f.view }

func NewOffscreen(device hal.Device, queue hal.Queue, present PresentFunc) *Offscreen {
	return &Offscreen{
		device:  device,
		queue:   queue,
		present: present,
	}
}

func (o *Offscreen) Formats() []gputypes.TextureFormat {
	return []gputypes.TextureFormat{gputypes.TextureFormatBGRA8Unorm}
}

// Configure allocates the render target and the staging buffer for the
// requested size, releasing whatever the previous configuration held.
func (o *Offscreen) Configure(cfg surface.Config) error {
	o.release()

	texture, err := o.device.CreateTexture(&hal.TextureDescriptor{
		Label: "wallpaper_target",
		Size: hal.Extent3D{
			Width:              cfg.Dimensions.Width,
			Height:             cfg.Dimensions.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        cfg.Format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("gpu: create render target: %w", err)
	}

	view, err := o.device.CreateTextureView(texture, &hal.TextureViewDescriptor{
		Label: "wallpaper_target_view",
	})
	if err != nil {
		o.device.DestroyTexture(texture)
		return fmt.Errorf("gpu: create target view: %w", err)
	}

	// Buffer copies need rows padded to 256 bytes.
	rowBytes := cfg.Dimensions.Width * 4
	alignedRow := (rowBytes + 255) &^ 255

	staging, err := o.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "wallpaper_staging",
		Size:  uint64(alignedRow) * uint64(cfg.Dimensions.Height),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		o.device.DestroyTextureView(view)
		o.device.DestroyTexture(texture)
		return fmt.Errorf("gpu: create staging buffer: %w", err)
	}

	o.texture = texture
	o.view = view
	o.staging = staging
	o.dims = cfg.Dimensions
	o.format = cfg.Format
	o.rowBytes = rowBytes
	o.alignedRow = alignedRow
	o.readback = make([]byte, int(alignedRow)*int(cfg.Dimensions.Height))
	o.pixels = make([]byte, int(rowBytes)*int(cfg.Dimensions.Height))
	return nil
}

// Acquire hands out the render target. An offscreen target cannot be
// lost, so this only fails before the first Configure.
func (o *Offscreen) Acquire() (surface.Frame, error) {
	if o.texture == nil {
		return nil, errors.New("gpu: acquire on unconfigured swapchain")
	}
	return offscreenFrame{view: o.view}, nil
}

// Present copies the render target into the staging buffer, reads it back
// and hands the tightly packed pixels to the present callback.
func (o *Offscreen) Present(surface.Frame) error {
	if o.texture == nil {
		return errors.New("gpu: present on unconfigured swapchain")
	}

	encoder, err := o.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "readback_encoder",
	})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback"); err != nil {
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: o.texture,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(o.texture, o.staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  o.alignedRow,
			RowsPerImage: o.dims.Height,
		},
		TextureBase: hal.ImageCopyTexture{
			Texture:  o.texture,
			MipLevel: 0,
		},
		Size: hal.Extent3D{
			Width:              o.dims.Width,
			Height:             o.dims.Height,
			DepthOrArrayLayers: 1,
		},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: o.texture,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer o.device.FreeCommandBuffer(cmdBuf)

	fence, err := o.device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpu: create fence: %w", err)
	}
	defer o.device.DestroyFence(fence)

	if err := o.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("gpu: submit readback: %w", err)
	}
	signaled, err := o.device.Wait(fence, 1, submitTimeout)
	if err != nil {
		return fmt.Errorf("gpu: wait for readback: %w", err)
	}
	if !signaled {
		return fmt.Errorf("gpu: readback did not complete within %s", submitTimeout)
	}

	if err := o.queue.ReadBuffer(o.staging, 0, o.readback); err != nil {
		return fmt.Errorf("gpu: read staging buffer: %w", err)
	}

	return o.present(o.dims, tightenRows(o.pixels, o.readback, o.rowBytes, o.alignedRow, o.dims.Height))
}

func (o *Offscreen) Destroy() {
	o.release()
}

func (o *Offscreen) release() {
	if o.view != nil {
		o.device.DestroyTextureView(o.view)
		o.view = nil
	}
	if o.texture != nil {
		o.device.DestroyTexture(o.texture)
		o.texture = nil
	}
	if o.staging != nil {
		o.device.DestroyBuffer(o.staging)
		o.staging = nil
	}
	o.readback = nil
	o.pixels = nil
}

// tightenRows strips the 256-byte row padding a buffer copy requires,
// leaving rowBytes per row. When no padding was added the source is
// returned as is.
func tightenRows(dst, src []byte, rowBytes, alignedRow, rows uint32) []byte {
	if rowBytes == alignedRow {
		return src
	}
	for y := uint32(0); y < rows; y++ {
		copy(dst[y*rowBytes:(y+1)*rowBytes], src[y*alignedRow:y*alignedRow+rowBytes])
	}
	return dst
}
