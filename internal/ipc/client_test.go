package ipc

import (
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	if got := SocketPath(); got != "/run/user/1000/shaderpaper.sock" {
		t.Fatalf("SocketPath() = %q", got)
	}

	t.Setenv("XDG_RUNTIME_DIR", "")
	if got := SocketPath(); !strings.Contains(got, "shaderpaper-") {
		t.Fatalf("fallback SocketPath() = %q, want a per-user socket", got)
	}
}

// TestClientAgainstServer drives the resty client against a real echo
// server on a throwaway unix socket.
func TestClientAgainstServer(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	m := &fakeManager{status: StatusResponse{Shader: "builtin", State: "idle", Frames: 7}}

	listener, err := net.Listen("unix", SocketPath())
	if err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Listener = listener
	RegisterRoutes(e, m)

	go func() { _ = e.StartServer(new(http.Server)) }()
	defer e.Close()

	var status *StatusResponse
	for i := 0; i < 50; i++ {
		status, err = SendStatus()
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Shader != "builtin" || status.Frames != 7 {
		t.Fatalf("status = %+v", status)
	}

	resp, err := SendCommand(Command{Type: CommandStop})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("stop response = %+v", resp)
	}

	if _, err := SendCommand(Command{Type: CommandLoad, Args: []string{"/tmp/wave.wgsl"}}); err != nil {
		t.Fatalf("load: %v", err)
	}

	cmds := m.Commands()
	if len(cmds) != 2 || cmds[0].Type != CommandStop || cmds[1].Type != CommandLoad {
		t.Fatalf("commands = %+v", cmds)
	}
	if cmds[1].Args[0] != "/tmp/wave.wgsl" {
		t.Fatalf("load args = %v", cmds[1].Args)
	}
}

func TestSendCommandUnknownType(t *testing.T) {
	if _, err := SendCommand(Command{Type: "dance"}); err == nil {
		t.Fatal("expected an error for an unknown command type")
	}
}
