package surface

import (
	"time"

	"github.com/matjam/shaderpaper/internal/types"
)

// Event is a compositor notification relevant to the render loop. The
// session translates protocol traffic into exactly these three variants
// and keeps everything else to itself.
type Event interface{ isEvent() }

// ConfigureEvent reports a surface size. A (0,0) size means the client
// picks. The first configure unblocks rendering.
type ConfigureEvent struct {
	Dimensions types.SurfaceDimensions
}

// FrameEvent grants one frame: the compositor is ready to display a new
// buffer. This is the only render pacing signal in the system.
type FrameEvent struct{}

// ClosedEvent ends the surface lifecycle. Terminal.
type ClosedEvent struct{}

func (ConfigureEvent) isEvent() {}
func (FrameEvent) isEvent()     {}
func (ClosedEvent) isEvent()    {}

// Session is the compositor connection as the render loop sees it: a
// queue of events plus the pending-state operations one frame needs.
// Implementations dispatch protocol traffic on the caller's goroutine;
// WaitEvent returning ok=false means the timeout passed quietly.
type Session interface {
	WaitEvent(timeout time.Duration) (Event, bool)
	// Damage marks the whole surface as needing redisplay on the pending
	// state; it takes effect on the next present.
	Damage()
	// RequestFrame arms the next frame callback. One FrameEvent will
	// arrive per request once the compositor wants a new buffer.
	RequestFrame()
	// Commit applies the pending state without presenting new content. A
	// skipped frame uses it so its re-armed callback still reaches the
	// compositor; a present carries its own commit.
	Commit()
	Close()
}
