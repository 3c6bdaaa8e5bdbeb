package surface

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gogpu/gputypes"
	"github.com/matjam/shaderpaper/internal/types"
)

const (
	// FallbackWidth and FallbackHeight replace a (0,0) configure. The
	// compositor is saying "you pick", not asking for a degenerate
	// surface.
	FallbackWidth  = 256
	FallbackHeight = 256
)

var (
	// ErrNotConfigured is returned by Acquire before the first configure
	// has completed.
	ErrNotConfigured = errors.New("surface: acquire before first configure")
	// ErrFrameSkipped means acquire failed twice in a row. The caller
	// drops the frame and waits for the next callback; it must not crash.
	ErrFrameSkipped = errors.New("surface: frame skipped after repeated acquire failure")
)

// Manager owns swapchain configuration policy: the degenerate-size
// fallback, the first-supported-format pick, mailbox presentation, and
// bounded surface-lost recovery on acquire.
type Manager struct {
	sw     Swapchain
	state  State
	dims   types.SurfaceDimensions
	format gputypes.TextureFormat
}

func NewManager(sw Swapchain) *Manager {
	return &Manager{sw: sw, state: Unconfigured}
}

// Configure (re)configures the swapchain at dims. The format is pinned on
// the first call: the first one the swapchain supports.
func (m *Manager) Configure(dims types.SurfaceDimensions) error {
	if m.state == Destroyed {
		return errors.New("surface: configure after destroy")
	}
	if dims.Degenerate() {
		log.Debugf("surface: degenerate configure %dx%d, using fallback %dx%d",
			dims.Width, dims.Height, FallbackWidth, FallbackHeight)
		dims = types.SurfaceDimensions{Width: FallbackWidth, Height: FallbackHeight}
	}
	if m.state == Unconfigured {
		formats := m.sw.Formats()
		if len(formats) == 0 {
			return errors.New("surface: swapchain reports no supported formats")
		}
		m.format = formats[0]
	}
	cfg := Config{Dimensions: dims, Format: m.format, Mode: PresentModeMailbox}
	if err := m.sw.Configure(cfg); err != nil {
		return fmt.Errorf("surface: configure %dx%d: %w", dims.Width, dims.Height, err)
	}
	m.dims = dims
	m.state = Configured
	return nil
}

// Acquire returns the next drawable. On ErrSurfaceLost it reconfigures at
// the current dimensions and retries exactly once; failing again skips the
// frame instead of crashing the process.
func (m *Manager) Acquire() (Frame, error) {
	switch m.state {
	case Unconfigured:
		return nil, ErrNotConfigured
	case Destroyed:
		return nil, errors.New("surface: acquire after destroy")
	}
	f, err := m.sw.Acquire()
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, ErrSurfaceLost) {
		return nil, fmt.Errorf("%w: %v", ErrFrameSkipped, err)
	}
	log.Debugf("surface: lost on acquire, reconfiguring at %dx%d", m.dims.Width, m.dims.Height)
	if err := m.Configure(m.dims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameSkipped, err)
	}
	f, err = m.sw.Acquire()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameSkipped, err)
	}
	return f, nil
}

// Present submits an acquired frame.
func (m *Manager) Present(f Frame) error {
	return m.sw.Present(f)
}

// State reports the lifecycle state.
func (m *Manager) State() State { return m.state }

// Dimensions reports the size from the most recent configure, after any
// fallback substitution.
func (m *Manager) Dimensions() types.SurfaceDimensions { return m.dims }

// Format reports the pinned texture format.
func (m *Manager) Format() gputypes.TextureFormat { return m.format }

// Destroy tears the swapchain down. Terminal.
func (m *Manager) Destroy() {
	if m.state == Destroyed {
		return
	}
	m.state = Destroyed
	m.sw.Destroy()
}
