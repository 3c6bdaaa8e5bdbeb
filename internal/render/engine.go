package render

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matjam/shaderpaper/internal/gpu"
	"github.com/matjam/shaderpaper/internal/pointer"
	"github.com/matjam/shaderpaper/internal/surface"
)

// Phase tracks where the render loop is in the surface lifecycle.
type Phase int

const (
	PhaseAwaitingConfigure Phase = iota
	PhaseIdle
	PhaseRendering
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingConfigure:
		return "awaiting_configure"
	case PhaseIdle:
		return "idle"
	case PhaseRendering:
		return "rendering"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Engine drives one frame per surface event. The compositor's frame
// callbacks are the only render cadence: each callback produces at most
// one frame and re-arms the next one, so the loop never outruns the
// compositor and goes quiet when the surface is occluded.
type Engine struct {
	session surface.Session
	mgr     *surface.Manager
	painter Painter
	slot    *pointer.Slot

	phase   Phase
	uniform gpu.Uniform
	frames  uint64

	minInterval time.Duration
	lastFrame   time.Time
}

func NewEngine(session surface.Session, mgr *surface.Manager, painter Painter, slot *pointer.Slot) *Engine {
	return &Engine{
		session: session,
		mgr:     mgr,
		painter: painter,
		slot:    slot,
		uniform: gpu.Neutral(),
	}
}

// Phase returns the current lifecycle phase.
func (e *Engine) Phase() Phase { return e.phase }

// Frames returns how many frames have been presented.
func (e *Engine) Frames() uint64 { return e.frames }

// Uniform returns the most recent pointer uniform, for status output.
func (e *Engine) Uniform() gpu.Uniform { return e.uniform }

// SetFramerateLimit caps presentation at fps frames per second. Zero
// leaves the compositor's frame callbacks as the only pacing.
func (e *Engine) SetFramerateLimit(fps int) {
	if fps <= 0 {
		e.minInterval = 0
		return
	}
	e.minInterval = time.Second / time.Duration(fps)
}

// HandleEvent is the single entry point for surface events. A configure
// sizes (or resizes) the swapchain, a frame callback renders the next
// frame, and closed shuts the loop down for good.
func (e *Engine) HandleEvent(ev surface.Event) error {
	if e.phase == PhaseClosed {
		return nil
	}
	switch ev := ev.(type) {
	case surface.ConfigureEvent:
		return e.handleConfigure(ev)
	case surface.FrameEvent:
		return e.renderFrame()
	case surface.ClosedEvent:
		log.Debug("render: surface closed")
		e.phase = PhaseClosed
		return nil
	default:
		return nil
	}
}

func (e *Engine) handleConfigure(ev surface.ConfigureEvent) error {
	if err := e.mgr.Configure(ev.Dimensions); err != nil {
		return err
	}
	if e.phase != PhaseAwaitingConfigure {
		// A resize. The swapchain is rebuilt; the next frame callback
		// picks up the new size.
		return nil
	}
	if err := e.painter.Prepare(e.mgr.Format()); err != nil {
		return err
	}
	e.phase = PhaseIdle
	// The first frame renders eagerly; every frame after that is paced by
	// the callback it re-arms.
	return e.renderFrame()
}

// renderFrame runs the per-frame sequence: poll the latest pointer
// sample, upload the uniform, acquire, paint, damage, re-arm the frame
// callback, present.
func (e *Engine) renderFrame() error {
	if e.phase != PhaseIdle {
		return nil
	}
	e.phase = PhaseRendering
	defer func() {
		if e.phase == PhaseRendering {
			e.phase = PhaseIdle
		}
	}()

	// Under a framerate cap, early callbacks re-arm without rendering
	// until the interval has passed.
	if e.minInterval > 0 && !e.lastFrame.IsZero() && time.Since(e.lastFrame) < e.minInterval {
		e.session.RequestFrame()
		e.session.Commit()
		return nil
	}

	// Only the freshest sample matters; stale intermediate positions were
	// already collapsed by the slot. With no new sample the previous
	// uniform is retained, including across resizes.
	if sample, ok := e.slot.TryLatest(); ok {
		e.uniform = gpu.Normalize(sample, e.mgr.Dimensions())
	}
	if err := e.painter.WriteUniform(e.uniform); err != nil {
		return err
	}

	frame, err := e.mgr.Acquire()
	if err != nil {
		if errors.Is(err, surface.ErrFrameSkipped) {
			// The frame is dropped but the cadence must survive: the
			// re-armed callback needs a commit to reach the compositor.
			log.Debugf("render: %v", err)
			e.session.RequestFrame()
			e.session.Commit()
			return nil
		}
		return err
	}

	if err := e.painter.Paint(frame); err != nil {
		// The frame is lost but the cadence must not be: re-arm before
		// surfacing the error.
		e.session.RequestFrame()
		e.session.Commit()
		return err
	}

	e.session.Damage()
	e.session.RequestFrame()

	if err := e.mgr.Present(frame); err != nil {
		// Damage and the callback are already pending; committing pushes
		// them to the compositor even though the pixels never arrived.
		e.session.Commit()
		return err
	}
	e.frames++
	e.lastFrame = time.Now()
	return nil
}
