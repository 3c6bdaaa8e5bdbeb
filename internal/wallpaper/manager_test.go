package wallpaper

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/matjam/shaderpaper/internal/gpu"
	"github.com/matjam/shaderpaper/internal/ipc"
	"github.com/matjam/shaderpaper/internal/pointer"
	"github.com/matjam/shaderpaper/internal/render"
	"github.com/matjam/shaderpaper/internal/surface"
	"github.com/matjam/shaderpaper/internal/types"
)

type stubFrame struct{}

func (stubFrame) View() hal.TextureView { return nil }

type stubSwapchain struct {
	configs   []surface.Config
	presents  int
	destroyed bool
}

func (s *stubSwapchain) Formats() []gputypes.TextureFormat {
	return []gputypes.TextureFormat{gputypes.TextureFormatBGRA8Unorm}
}

func (s *stubSwapchain) Configure(cfg surface.Config) error {
	s.configs = append(s.configs, cfg)
	return nil
}

func (s *stubSwapchain) Acquire() (surface.Frame, error) { return stubFrame{}, nil }

func (s *stubSwapchain) Present(surface.Frame) error {
	s.presents++
	return nil
}

func (s *stubSwapchain) Destroy() { s.destroyed = true }

type scriptedSession struct {
	events []surface.Event
	closed bool
}

func (s *scriptedSession) WaitEvent(time.Duration) (surface.Event, bool) {
	if len(s.events) == 0 {
		return nil, false
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, true
}

func (s *scriptedSession) Damage()       {}
func (s *scriptedSession) RequestFrame() {}
func (s *scriptedSession) Commit()       {}
func (s *scriptedSession) Close()        { s.closed = true }

type recordingPainter struct {
	paints    int
	sources   []string
	sourceErr error
	destroyed bool
}

func (p *recordingPainter) Prepare(gputypes.TextureFormat) error { return nil }
func (p *recordingPainter) WriteUniform(gpu.Uniform) error       { return nil }
func (p *recordingPainter) Paint(surface.Frame) error {
	p.paints++
	return nil
}

func (p *recordingPainter) SetSource(wgsl string) error {
	if p.sourceErr != nil {
		return p.sourceErr
	}
	p.sources = append(p.sources, wgsl)
	return nil
}

func (p *recordingPainter) Destroy() { p.destroyed = true }

type stubSource struct {
	run func(stop <-chan struct{}, emit func(types.PointerSample)) error
}

func (s *stubSource) Name() string { return "test" }

func (s *stubSource) Run(stop <-chan struct{}, emit func(types.PointerSample)) error {
	if s.run != nil {
		return s.run(stop, emit)
	}
	<-stop
	return nil
}

func newTestManager(events []surface.Event, src pointer.Source) (*Manager, *scriptedSession, *recordingPainter, *stubSwapchain, *pointer.Slot) {
	sess := &scriptedSession{events: events}
	sw := &stubSwapchain{}
	surf := surface.NewManager(sw)
	p := &recordingPainter{}
	slot := pointer.NewSlot()
	if src == nil {
		src = &stubSource{}
	}
	sampler := pointer.NewSampler(src, slot)
	engine := render.NewEngine(sess, surf, p, slot)

	m := NewManager(sess, surf, engine, p, sampler, "")
	m.stopGrace = 100 * time.Millisecond
	return m, sess, p, sw, slot
}

func TestEnqueueRefusesSecondCommand(t *testing.T) {
	m, _, _, _, _ := newTestManager(nil, nil)

	if !m.EnqueueCommand(ipc.Command{Type: ipc.CommandStop}) {
		t.Fatal("first command refused")
	}
	if m.EnqueueCommand(ipc.Command{Type: ipc.CommandReload}) {
		t.Fatal("second command accepted while one is pending")
	}
}

func TestRunStopsOnCommand(t *testing.T) {
	m, sess, p, sw, _ := newTestManager(nil, nil)

	m.Stop()
	m.Run()

	if !sess.closed {
		t.Fatal("session not closed on shutdown")
	}
	if !p.destroyed {
		t.Fatal("painter not destroyed on shutdown")
	}
	if !sw.destroyed {
		t.Fatal("swapchain not destroyed on shutdown")
	}
}

func TestRunRendersOnConfigure(t *testing.T) {
	events := []surface.Event{
		surface.ConfigureEvent{Dimensions: types.SurfaceDimensions{Width: 100, Height: 100}},
		surface.ClosedEvent{},
	}
	m, _, p, sw, slot := newTestManager(events, nil)

	slot.Publish(types.PointerSample{X: 20, Y: 20})
	m.Run()

	if p.paints != 1 || sw.presents != 1 {
		t.Fatalf("paints %d presents %d, want 1 each", p.paints, sw.presents)
	}

	status := m.Status()
	if status.Frames != 1 {
		t.Fatalf("frames = %d, want 1", status.Frames)
	}
	if status.Pointer != [2]float32{-0.6, 0.6} {
		t.Fatalf("pointer = %v, want [-0.6 0.6]", status.Pointer)
	}
	if status.State != "closed" {
		t.Fatalf("state = %q, want closed", status.State)
	}
	if status.Shader != "builtin" {
		t.Fatalf("shader = %q, want builtin", status.Shader)
	}
}

func TestRunProcessesLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wave.wgsl")
	if err := os.WriteFile(path, []byte("shader source"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, _, p, _, _ := newTestManager([]surface.Event{surface.ClosedEvent{}}, nil)

	if !m.EnqueueCommand(ipc.Command{Type: ipc.CommandLoad, Args: []string{path}}) {
		t.Fatal("load refused")
	}
	m.Run()

	if len(p.sources) != 1 || p.sources[0] != "shader source" {
		t.Fatalf("sources = %q, want the file contents", p.sources)
	}
	if got := m.Status().Shader; got != path {
		t.Fatalf("shader = %q, want %q", got, path)
	}
}

func TestRunLoadRejectsUnreadableShader(t *testing.T) {
	m, _, p, _, _ := newTestManager([]surface.Event{surface.ClosedEvent{}}, nil)

	path := filepath.Join(t.TempDir(), "missing.wgsl")
	if !m.EnqueueCommand(ipc.Command{Type: ipc.CommandLoad, Args: []string{path}}) {
		t.Fatal("load refused")
	}
	m.Run()

	if len(p.sources) != 0 {
		t.Fatalf("sources = %q, want none for an unreadable shader", p.sources)
	}
	if got := m.Status().Shader; got != "builtin" {
		t.Fatalf("shader = %q, want builtin", got)
	}
}

func TestRunLoadKeepsShaderOnCompileFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wgsl")
	if err := os.WriteFile(path, []byte("not wgsl"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, _, p, _, _ := newTestManager([]surface.Event{surface.ClosedEvent{}}, nil)
	p.sourceErr = errors.New("compile failed")

	if !m.EnqueueCommand(ipc.Command{Type: ipc.CommandLoad, Args: []string{path}}) {
		t.Fatal("load refused")
	}
	m.Run()

	if got := m.Status().Shader; got != "builtin" {
		t.Fatalf("shader = %q, want builtin after a failed compile", got)
	}
}

func TestRunReloadResetsToBuiltin(t *testing.T) {
	m, _, p, _, _ := newTestManager([]surface.Event{surface.ClosedEvent{}}, nil)

	if !m.EnqueueCommand(ipc.Command{Type: ipc.CommandReload}) {
		t.Fatal("reload refused")
	}
	m.Run()

	if len(p.sources) != 1 || p.sources[0] != gpu.BuiltinShader() {
		t.Fatal("reload without a loaded shader must reset to the builtin")
	}
}

func TestShutdownBoundedWhenSamplerStuck(t *testing.T) {
	stuck := &stubSource{run: func(<-chan struct{}, func(types.PointerSample)) error {
		select {} // never honors stop
	}}
	m, sess, p, _, _ := newTestManager([]surface.Event{surface.ClosedEvent{}}, stuck)

	start := time.Now()
	m.Run()
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("shutdown took %s, the sampler join must be bounded", elapsed)
	}
	if !p.destroyed || !sess.closed {
		t.Fatal("teardown must continue past a stuck sampler")
	}
}
