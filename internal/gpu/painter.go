package gpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/matjam/shaderpaper/internal/surface"
)

// submitTimeout bounds how long we wait on the GPU for a single frame.
const submitTimeout = 5 * time.Second

// Painter owns the fullscreen pipeline and the uniform buffer and records
// one clear plus draw pass per frame. The pipeline can be rebuilt at
// runtime to swap shaders; a failed build leaves the running pipeline in
// place.
type Painter struct {
	device hal.Device
	queue  hal.Queue

	source string
	format gputypes.TextureFormat

	module     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	uniformBuf hal.Buffer
	bindGroup  hal.BindGroup

	prepared bool
}

// NewPainter returns a painter that renders the builtin shader until
// SetSource replaces it.
func NewPainter(device hal.Device, queue hal.Queue) *Painter {
	return &Painter{
		device: device,
		queue:  queue,
		source: builtinShader,
	}
}

// Prepare builds the pipeline against the swapchain's texture format.
// Calling it again with the same format is a no-op; a new format forces a
// rebuild.
func (p *Painter) Prepare(format gputypes.TextureFormat) error {
	if p.prepared && p.format == format {
		return nil
	}
	return p.rebuild(p.source, format)
}

// SetSource replaces the shader. Before Prepare it only validates and
// stores the source; afterwards the new pipeline is built and swapped in.
// A compile or build failure leaves the current shader running.
func (p *Painter) SetSource(wgsl string) error {
	if !p.prepared {
		if _, err := CompileWGSL(wgsl); err != nil {
			return err
		}
		p.source = wgsl
		return nil
	}
	return p.rebuild(wgsl, p.format)
}

// WriteUniform uploads the pointer uniform. The upload is ordered before
// any subsequent submit on the same queue.
func (p *Painter) WriteUniform(u Uniform) error {
	if !p.prepared {
		return fmt.Errorf("gpu: write uniform before prepare")
	}
	data := u.Pack()
	p.queue.WriteBuffer(p.uniformBuf, 0, data[:])
	return nil
}

// Paint records the pass into the frame's view, submits it and waits for
// the GPU to finish so the caller may read or present the texture.
func (p *Painter) Paint(frame surface.Frame) error {
	if !p.prepared {
		return fmt.Errorf("gpu: paint before prepare")
	}

	encoder, err := p.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "wallpaper_encoder",
	})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("wallpaper_frame"); err != nil {
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "wallpaper_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       frame.View(),
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0.02, G: 0.02, B: 0.03, A: 1},
		}},
	})
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, p.bindGroup, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer p.device.FreeCommandBuffer(cmdBuf)

	fence, err := p.device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpu: create fence: %w", err)
	}
	defer p.device.DestroyFence(fence)

	if err := p.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("gpu: submit frame: %w", err)
	}
	signaled, err := p.device.Wait(fence, 1, submitTimeout)
	if err != nil {
		return fmt.Errorf("gpu: wait for frame: %w", err)
	}
	if !signaled {
		return fmt.Errorf("gpu: frame did not complete within %s", submitTimeout)
	}
	return nil
}

// Destroy releases every GPU resource the painter owns.
func (p *Painter) Destroy() {
	p.releasePipeline()
	if p.uniformBuf != nil {
		p.device.DestroyBuffer(p.uniformBuf)
		p.uniformBuf = nil
	}
	p.prepared = false
}

// rebuild compiles source and builds the full pipeline for format. Only
// after every object is created does it swap out the old ones, so any
// failure leaves the painter rendering with what it had. The uniform
// buffer survives rebuilds and keeps its contents.
func (p *Painter) rebuild(source string, format gputypes.TextureFormat) error {
	words, err := CompileWGSL(source)
	if err != nil {
		return err
	}

	module, err := newShaderModule(p.device, "wallpaper_shader", words)
	if err != nil {
		return err
	}

	// Visible to both stages so loaded shaders may read the pointer in
	// either one.
	bindLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "wallpaper_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer: &gputypes.BufferBindingLayout{
				Type: gputypes.BufferBindingTypeUniform,
			},
		}},
	})
	if err != nil {
		p.device.DestroyShaderModule(module)
		return fmt.Errorf("gpu: create bind group layout: %w", err)
	}

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "wallpaper_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		p.device.DestroyBindGroupLayout(bindLayout)
		p.device.DestroyShaderModule(module)
		return fmt.Errorf("gpu: create pipeline layout: %w", err)
	}

	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "wallpaper_pipeline",
		Layout: pipeLayout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    format,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.device.DestroyPipelineLayout(pipeLayout)
		p.device.DestroyBindGroupLayout(bindLayout)
		p.device.DestroyShaderModule(module)
		return fmt.Errorf("gpu: create render pipeline: %w", err)
	}

	if p.uniformBuf == nil {
		buf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "wallpaper_params",
			Size:  UniformSize,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			p.device.DestroyRenderPipeline(pipeline)
			p.device.DestroyPipelineLayout(pipeLayout)
			p.device.DestroyBindGroupLayout(bindLayout)
			p.device.DestroyShaderModule(module)
			return fmt.Errorf("gpu: create uniform buffer: %w", err)
		}
		p.uniformBuf = buf
	}

	bindGroup, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "wallpaper_bind_group",
		Layout: bindLayout,
		Entries: []gputypes.BindGroupEntry{{
			Binding: 0,
			Resource: gputypes.BufferBinding{
				Buffer: p.uniformBuf.NativeHandle(),
				Offset: 0,
				Size:   UniformSize,
			},
		}},
	})
	if err != nil {
		p.device.DestroyRenderPipeline(pipeline)
		p.device.DestroyPipelineLayout(pipeLayout)
		p.device.DestroyBindGroupLayout(bindLayout)
		p.device.DestroyShaderModule(module)
		return fmt.Errorf("gpu: create bind group: %w", err)
	}

	p.releasePipeline()
	p.module = module
	p.bindLayout = bindLayout
	p.pipeLayout = pipeLayout
	p.pipeline = pipeline
	p.bindGroup = bindGroup
	p.source = source
	p.format = format
	p.prepared = true
	return nil
}

func (p *Painter) releasePipeline() {
	if p.bindGroup != nil {
		p.device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.module != nil {
		p.device.DestroyShaderModule(p.module)
		p.module = nil
	}
}
