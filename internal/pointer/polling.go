package pointer

import (
	"time"

	"github.com/matjam/shaderpaper/internal/types"
)

// DefaultPollInterval bounds how often the polling source publishes.
const DefaultPollInterval = 25 * time.Millisecond

// PositionFunc reports the current absolute pointer position. ok is false
// while no position is known yet, for example before the pointer first
// enters the surface.
type PositionFunc func() (x, y float64, ok bool)

// PollingSource samples an absolute position accessor at a fixed interval
// and emits only when the position changed since the last emit.
type PollingSource struct {
	query    PositionFunc
	interval time.Duration
}

func NewPollingSource(query PositionFunc, interval time.Duration) *PollingSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollingSource{query: query, interval: interval}
}

func (p *PollingSource) Name() string { return "poll" }

func (p *PollingSource) Run(stop <-chan struct{}, emit func(types.PointerSample)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last types.PointerSample
	var seen bool
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
		}
		x, y, ok := p.query()
		if !ok {
			continue
		}
		sample := types.PointerSample{X: x, Y: y}
		if seen && sample == last {
			continue
		}
		last, seen = sample, true
		emit(sample)
	}
}
