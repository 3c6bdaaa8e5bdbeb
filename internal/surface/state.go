package surface

// State tracks the presentation surface lifecycle as the compositor
// reports it.
type State int

const (
	// Unconfigured surfaces have no committed size yet; nothing may be
	// acquired or presented.
	Unconfigured State = iota
	// Configured surfaces have a size and a format and can serve frames.
	Configured
	// Destroyed is terminal.
	Destroyed
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Configured:
		return "configured"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}
