package ipc

type CommandType string

const (
	CommandStop   CommandType = "stop"
	CommandReload CommandType = "reload"
	CommandLoad   CommandType = "load"
)

type Command struct {
	Type CommandType `json:"type"`
	Args []string    `json:"args"`
}

// ManagerInterface is what the socket handlers need from the wallpaper
// manager. EnqueueCommand reports false when a command is already
// pending; the handlers turn that into a conflict instead of blocking
// the socket goroutine behind the render loop.
type ManagerInterface interface {
	Status() StatusResponse
	EnqueueCommand(Command) bool
}

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type StatusResponse struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	Version string     `json:"version"`
	PID     int        `json:"pid"`
	Socket  string     `json:"socket"`
	Config  string     `json:"config"`
	Shader  string     `json:"shader"`
	State   string     `json:"state"`
	Frames  uint64     `json:"frames"`
	Pointer [2]float32 `json:"pointer"`
	Source  string     `json:"pointer_source"`
}

type LoadRequest struct {
	Path string `json:"path"`
}
