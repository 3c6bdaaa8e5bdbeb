package cmd

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	daemon "github.com/sevlyar/go-daemon"
	"github.com/spf13/viper"

	"github.com/matjam/shaderpaper/internal/cli/cmd/utils"
	"github.com/matjam/shaderpaper/internal/gpu"
	"github.com/matjam/shaderpaper/internal/ipc"
	"github.com/matjam/shaderpaper/internal/pointer"
	"github.com/matjam/shaderpaper/internal/render"
	"github.com/matjam/shaderpaper/internal/surface"
	"github.com/matjam/shaderpaper/internal/types"
	"github.com/matjam/shaderpaper/internal/wallpaper"
	"github.com/matjam/shaderpaper/internal/wayland"
)

// StartDaemon forks into the background when asked to, then hands over to
// StartManager. The child is marked with BACKGROUND_PROCESS=1 so it picks
// up the rotating logger instead of the terminal.
func StartDaemon() {
	if viper.GetBool("background") && os.Getenv("BACKGROUND_PROCESS") != "1" {
		runDir := os.Getenv("XDG_RUNTIME_DIR")
		if runDir == "" {
			runDir = os.TempDir()
		}

		cntxt := &daemon.Context{
			PidFileName: filepath.Join(runDir, "shaderpaper.pid"),
			PidFilePerm: 0644,
			Umask:       027,
			Env:         append(os.Environ(), "BACKGROUND_PROCESS=1"),
		}

		child, err := cntxt.Reborn()
		if err != nil {
			log.Fatalf("Unable to daemonize: %v", err)
		}
		if child != nil {
			log.Infof("shaderpaper started in the background, PID %d", child.Pid)
			return
		}
		defer cntxt.Release()
	}

	StartManager()
}

// StartManager runs the daemon in the foreground: GPU, compositor
// session, pointer sampler and control socket, then the render loop
// until a stop command or the compositor closes the surface.
func StartManager() {
	log.Infof("StartManager() started in PID: %d", os.Getpid())

	if os.Getenv("BACKGROUND_PROCESS") == "1" {
		setupRotatingLogger()
	}

	if _, err := ipc.SendStatus(); err == nil {
		log.Infof("shaderpaper is already running, exiting")
		os.Exit(0)
	}

	device, err := gpu.OpenDevice()
	if err != nil {
		log.Fatalf("Failed to open a GPU device: %v", err)
	}
	defer device.Close()

	session, err := wayland.Connect(wayland.Options{
		Layer: viper.GetString("layer"),
	})
	if err != nil {
		log.Fatalf("Failed to connect to the compositor: %v", err)
	}

	swapchain := wayland.NewSwapchain(device.HAL(), device.Queue(), session)
	surf := surface.NewManager(swapchain)
	painter := gpu.NewPainter(device.HAL(), device.Queue())

	shaderPath := utils.CanonicalPath(viper.GetString("shader"))
	if shaderPath != "" {
		src, err := os.ReadFile(shaderPath)
		if err != nil {
			log.Fatalf("Failed to read shader %s: %v", shaderPath, err)
		}
		if err := painter.SetSource(string(src)); err != nil {
			log.Fatalf("Failed to compile shader %s: %v", shaderPath, err)
		}
		log.Infof("Using shader %s", shaderPath)
	}

	slot := pointer.NewSlot()
	sampler := pointer.NewSampler(selectPointerSource(session), slot)
	log.Infof("Tracking the pointer via %s", sampler.SourceName())

	engine := render.NewEngine(session, surf, painter, slot)
	engine.SetFramerateLimit(viper.GetInt("framerate_limit"))

	manager := wallpaper.NewManager(session, surf, engine, painter, sampler, shaderPath)

	go func() {
		log.Infof("Starting socket server")
		ipc.Start(manager)
	}()

	handleSignals(manager)

	manager.Run()

	os.Remove(ipc.SocketPath())
	log.Infof("shaderpaper exited")
}

// selectPointerSource picks the motion source. evdev accumulates
// relative deltas straight from the input devices; poll asks the
// compositor for the absolute position on a timer; auto tries evdev and
// falls back to polling when no device is readable.
func selectPointerSource(session *wayland.Session) pointer.Source {
	interval := time.Duration(viper.GetInt("poll_interval_ms")) * time.Millisecond

	kind := types.PointerSourceKind(viper.GetString("pointer_source"))
	switch kind {
	case types.PointerSourcePoll:
		return pointer.NewPollingSource(session.PointerPosition, interval)
	case types.PointerSourceEvdev:
		dev, err := pointer.OpenEvdev()
		if err != nil {
			// Input loss is not fatal, the wallpaper renders on without
			// tracking. The sampler logs this once when it starts.
			return pointer.Unavailable("evdev", err)
		}
		return pointer.NewRelativeSource(dev)
	case types.PointerSourceAuto, "":
	default:
		log.Warnf("Unknown pointer_source %q, using auto", kind)
	}

	dev, err := pointer.OpenEvdev()
	if err != nil {
		log.Warnf("Falling back to pointer polling: %v", err)
		return pointer.NewPollingSource(session.PointerPosition, interval)
	}
	return pointer.NewRelativeSource(dev)
}

// handleSignals turns SIGINT and SIGTERM into a stop command so the
// render loop can shut down in order.
func handleSignals(manager *wallpaper.Manager) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Infof("Received %v, shutting down", sig)
		manager.Stop()
	}()
}

func setupRotatingLogger() {
	home := os.Getenv("HOME")
	logDir := filepath.Join(home, ".local", "share", "shaderpaper")
	logPath := filepath.Join(logDir, "shaderpaper.log")

	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Fatalf("failed to create log directory: %v", err)
	}

	writer, err := rotatelogs.New(
		logPath+".%Y%m%d%H%M",
		rotatelogs.WithLinkName(logPath),
		rotatelogs.WithMaxAge(7*24*time.Hour),
		rotatelogs.WithRotationSize(10*1024*1024),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		log.Fatalf("failed to configure log rotation: %v", err)
	}

	log.SetOutput(writer)
	log.SetLevel(log.InfoLevel)
}
