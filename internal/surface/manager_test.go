package surface

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/matjam/shaderpaper/internal/types"
)

type fakeFrame struct{}

func (fakeFrame) View() hal.TextureView { return nil }

// fakeSwapchain records configuration calls and serves scripted acquire
// results.
type fakeSwapchain struct {
	formats     []gputypes.TextureFormat
	configs     []Config
	acquireErrs []error
	acquires    int
	presents    int
	destroyed   bool
}

func newFakeSwapchain() *fakeSwapchain {
	return &fakeSwapchain{
		formats: []gputypes.TextureFormat{
			gputypes.TextureFormatBGRA8Unorm,
			gputypes.TextureFormatRGBA8Unorm,
		},
	}
}

func (f *fakeSwapchain) Formats() []gputypes.TextureFormat { return f.formats }

func (f *fakeSwapchain) Configure(cfg Config) error {
	f.configs = append(f.configs, cfg)
	return nil
}

func (f *fakeSwapchain) Acquire() (Frame, error) {
	i := f.acquires
	f.acquires++
	if i < len(f.acquireErrs) && f.acquireErrs[i] != nil {
		return nil, f.acquireErrs[i]
	}
	return fakeFrame{}, nil
}

func (f *fakeSwapchain) Present(Frame) error {
	f.presents++
	return nil
}

func (f *fakeSwapchain) Destroy() { f.destroyed = true }

func TestConfigureDegenerateUsesFallback(t *testing.T) {
	sw := newFakeSwapchain()
	m := NewManager(sw)

	if err := m.Configure(types.SurfaceDimensions{}); err != nil {
		t.Fatalf("Configure returned %v", err)
	}
	want := types.SurfaceDimensions{Width: FallbackWidth, Height: FallbackHeight}
	if m.Dimensions() != want {
		t.Fatalf("dimensions = %v, want %v", m.Dimensions(), want)
	}
	if got := sw.configs[0].Dimensions; got != want {
		t.Fatalf("swapchain configured at %v, want %v", got, want)
	}
}

func TestConfigurePicksFirstFormatAndMailbox(t *testing.T) {
	sw := newFakeSwapchain()
	m := NewManager(sw)

	if err := m.Configure(types.SurfaceDimensions{Width: 800, Height: 600}); err != nil {
		t.Fatalf("Configure returned %v", err)
	}
	cfg := sw.configs[0]
	if cfg.Format != gputypes.TextureFormatBGRA8Unorm {
		t.Fatalf("format = %v, want the first supported format", cfg.Format)
	}
	if cfg.Mode != PresentModeMailbox {
		t.Fatalf("mode = %v, want mailbox", cfg.Mode)
	}
}

func TestAcquireBeforeConfigure(t *testing.T) {
	m := NewManager(newFakeSwapchain())
	if _, err := m.Acquire(); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Acquire returned %v, want ErrNotConfigured", err)
	}
}

func TestAcquireRecoversFromSingleLoss(t *testing.T) {
	sw := newFakeSwapchain()
	sw.acquireErrs = []error{ErrSurfaceLost, nil}
	m := NewManager(sw)

	if err := m.Configure(types.SurfaceDimensions{Width: 800, Height: 600}); err != nil {
		t.Fatalf("Configure returned %v", err)
	}
	f, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire returned %v after recoverable loss", err)
	}
	if f == nil {
		t.Fatal("Acquire returned a nil frame")
	}
	// Initial configure plus the recovery reconfigure.
	if len(sw.configs) != 2 {
		t.Fatalf("swapchain configured %d times, want 2", len(sw.configs))
	}
	if sw.configs[1].Dimensions != m.Dimensions() {
		t.Fatalf("recovery reconfigured at %v, want current dimensions %v",
			sw.configs[1].Dimensions, m.Dimensions())
	}
}

func TestAcquireSkipsFrameAfterSecondLoss(t *testing.T) {
	sw := newFakeSwapchain()
	sw.acquireErrs = []error{ErrSurfaceLost, ErrSurfaceLost}
	m := NewManager(sw)

	if err := m.Configure(types.SurfaceDimensions{Width: 800, Height: 600}); err != nil {
		t.Fatalf("Configure returned %v", err)
	}
	if _, err := m.Acquire(); !errors.Is(err, ErrFrameSkipped) {
		t.Fatalf("Acquire returned %v, want ErrFrameSkipped", err)
	}
	// Only one retry is allowed.
	if sw.acquires != 2 {
		t.Fatalf("swapchain acquired %d times, want 2", sw.acquires)
	}
}

func TestResizeReconfigures(t *testing.T) {
	sw := newFakeSwapchain()
	m := NewManager(sw)

	if err := m.Configure(types.SurfaceDimensions{Width: 100, Height: 100}); err != nil {
		t.Fatalf("Configure returned %v", err)
	}
	if err := m.Configure(types.SurfaceDimensions{Width: 200, Height: 150}); err != nil {
		t.Fatalf("reconfigure returned %v", err)
	}
	if got := (types.SurfaceDimensions{Width: 200, Height: 150}); m.Dimensions() != got {
		t.Fatalf("dimensions = %v, want %v", m.Dimensions(), got)
	}
	// The format must stay pinned across resizes.
	if sw.configs[0].Format != sw.configs[1].Format {
		t.Fatalf("format changed across reconfigure: %v then %v",
			sw.configs[0].Format, sw.configs[1].Format)
	}
}

func TestDestroyIsTerminal(t *testing.T) {
	sw := newFakeSwapchain()
	m := NewManager(sw)

	if err := m.Configure(types.SurfaceDimensions{Width: 100, Height: 100}); err != nil {
		t.Fatalf("Configure returned %v", err)
	}
	m.Destroy()
	if !sw.destroyed {
		t.Fatal("swapchain was not destroyed")
	}
	if _, err := m.Acquire(); err == nil {
		t.Fatal("Acquire succeeded after Destroy")
	}
	if err := m.Configure(types.SurfaceDimensions{Width: 100, Height: 100}); err == nil {
		t.Fatal("Configure succeeded after Destroy")
	}
	m.Destroy() // second destroy is a no-op
}
