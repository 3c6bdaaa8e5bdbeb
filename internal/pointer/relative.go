package pointer

import (
	"fmt"
	"time"

	"github.com/matjam/shaderpaper/internal/types"
)

// DeltaReader is the blocking input side of the relative strategy. Wait
// blocks until motion events are pending or the timeout passes; Drain sums
// the deltas of every pending event so a burst of motion collapses into
// one position update.
type DeltaReader interface {
	Wait(timeout time.Duration) (ready bool, err error)
	Drain() (dx, dy float64, err error)
	Close() error
}

// RelativeSource accumulates relative motion deltas into an absolute
// position starting at the origin. The wait timeout is bounded so the stop
// signal is honored even when the pointer never moves.
type RelativeSource struct {
	dev         DeltaReader
	waitTimeout time.Duration
}

func NewRelativeSource(dev DeltaReader) *RelativeSource {
	return &RelativeSource{dev: dev, waitTimeout: 500 * time.Millisecond}
}

func (r *RelativeSource) Name() string { return "evdev" }

func (r *RelativeSource) Run(stop <-chan struct{}, emit func(types.PointerSample)) error {
	defer r.dev.Close()

	var pos types.PointerSample
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		ready, err := r.dev.Wait(r.waitTimeout)
		if err != nil {
			return fmt.Errorf("pointer: wait for motion events: %w", err)
		}
		if !ready {
			continue
		}
		dx, dy, err := r.dev.Drain()
		if err != nil {
			return fmt.Errorf("pointer: drain motion events: %w", err)
		}
		if dx == 0 && dy == 0 {
			continue
		}
		pos.X += dx
		pos.Y += dy
		emit(pos)
	}
}
