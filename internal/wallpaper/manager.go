package wallpaper

import (
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matjam/shaderpaper/internal/gpu"
	"github.com/matjam/shaderpaper/internal/ipc"
	"github.com/matjam/shaderpaper/internal/pointer"
	"github.com/matjam/shaderpaper/internal/render"
	"github.com/matjam/shaderpaper/internal/surface"
)

// eventWait bounds how long Run blocks on the compositor before it checks
// the command queue again.
const eventWait = 500 * time.Millisecond

// samplerStopGrace is how long shutdown waits for the pointer sampler to
// join before giving up on it.
const samplerStopGrace = 2 * time.Second

// Manager owns the render loop. It is the only goroutine that touches
// the engine and the GPU; the socket goroutine communicates through the
// command queue and the status snapshot.
type Manager struct {
	sync.Mutex
	session surface.Session
	surf    *surface.Manager
	engine  *render.Engine
	painter render.Painter
	sampler *pointer.Sampler

	cmds chan ipc.Command

	stopGrace time.Duration

	shader  string
	state   string
	frames  uint64
	pointer [2]float32
}

// NewManager wires the render loop to the sampler and the control
// socket's command queue. shader is the path of the initially loaded
// shader file, empty when the builtin is running.
func NewManager(session surface.Session, surf *surface.Manager, engine *render.Engine,
	painter render.Painter, sampler *pointer.Sampler, shader string) *Manager {
	return &Manager{
		session:   session,
		surf:      surf,
		engine:    engine,
		painter:   painter,
		sampler:   sampler,
		cmds:      make(chan ipc.Command, 1),
		stopGrace: samplerStopGrace,
		shader:    shader,
		state:     render.PhaseAwaitingConfigure.String(),
	}
}

// EnqueueCommand queues a command for the render loop. Only one command
// may be pending at a time; a second one is refused rather than queued
// behind a possibly slow frame.
func (m *Manager) EnqueueCommand(cmd ipc.Command) bool {
	select {
	case m.cmds <- cmd:
		return true
	default:
		return false
	}
}

// Stop asks the render loop to shut down. Safe from any goroutine.
func (m *Manager) Stop() {
	m.EnqueueCommand(ipc.Command{Type: ipc.CommandStop})
}

// Status returns the most recent loop snapshot for the control socket.
func (m *Manager) Status() ipc.StatusResponse {
	m.Lock()
	defer m.Unlock()

	shader := m.shader
	if shader == "" {
		shader = "builtin"
	}
	return ipc.StatusResponse{
		Shader:  shader,
		State:   m.state,
		Frames:  m.frames,
		Pointer: m.pointer,
		Source:  m.sampler.SourceName(),
	}
}

// Run blocks until the compositor closes the surface or a stop command
// arrives. Commands are handled between surface events, one per gap.
func (m *Manager) Run() {
	log.Info("Starting shader wallpaper...")

	m.sampler.Start()

	running := true
	for running {
		if len(m.cmds) > 0 {
			cmd := <-m.cmds
			switch cmd.Type {
			case ipc.CommandStop:
				log.Info("Stopping wallpaper manager ...")
				running = false
				continue
			case ipc.CommandReload:
				log.Info("Received reload command")
				m.reloadShader()
			case ipc.CommandLoad:
				log.Info("Received load command")
				if len(cmd.Args) == 0 {
					log.Error("No shader specified for load command")
					continue
				}
				m.loadShader(cmd.Args[0])
			default:
				log.Error("Unknown command:", cmd.Type)
			}
		}

		if ev, ok := m.session.WaitEvent(eventWait); ok {
			if err := m.engine.HandleEvent(ev); err != nil {
				log.Errorf("render failed: %v", err)
			}
		}

		if m.engine.Phase() == render.PhaseClosed {
			log.Info("Surface closed by the compositor")
			running = false
		}

		m.snapshot()
	}

	m.shutdown()
}

// loadShader compiles the file and swaps it in. A shader that fails to
// compile leaves the current one running.
func (m *Manager) loadShader(path string) {
	src, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("Failed to read shader %s: %v", path, err)
		return
	}
	if err := m.painter.SetSource(string(src)); err != nil {
		log.Errorf("Failed to load shader %s: %v", path, err)
		return
	}

	m.Lock()
	m.shader = path
	m.Unlock()
	log.Infof("Loaded shader %s", path)
}

// reloadShader re-reads the current shader from disk, or resets to the
// builtin when none was loaded.
func (m *Manager) reloadShader() {
	m.Lock()
	path := m.shader
	m.Unlock()

	if path == "" {
		if err := m.painter.SetSource(gpu.BuiltinShader()); err != nil {
			log.Errorf("Failed to reset builtin shader: %v", err)
		}
		return
	}
	m.loadShader(path)
}

func (m *Manager) snapshot() {
	m.Lock()
	m.state = m.engine.Phase().String()
	m.frames = m.engine.Frames()
	m.pointer = m.engine.Uniform().Pointer
	m.Unlock()
}

// shutdown joins the sampler, then tears the GPU and surface state down
// in reverse construction order. A sampler that refuses to stop is
// logged and abandoned; it cannot hold up the rest of the teardown.
func (m *Manager) shutdown() {
	if err := m.sampler.Stop(m.stopGrace); err != nil {
		log.Warnf("Pointer sampler did not stop in %s: %v", m.stopGrace, err)
	}
	m.painter.Destroy()
	m.surf.Destroy()
	m.session.Close()
	log.Info("Wallpaper manager stopped.")
}
