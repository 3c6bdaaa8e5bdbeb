package pointer

import "github.com/matjam/shaderpaper/internal/types"

// Slot is a single-slot latest-value channel carrying pointer samples from
// the sampler goroutine to the render loop. Publish never blocks: a stale
// unread sample is overwritten rather than queued. TryLatest never blocks:
// it reports whether a new sample was pending. Exactly one value of shared
// state crosses the sampler/render boundary, and this is it.
type Slot struct {
	ch chan types.PointerSample
}

func NewSlot() *Slot {
	return &Slot{ch: make(chan types.PointerSample, 1)}
}

// Publish replaces any pending sample with s. Last value wins.
func (s *Slot) Publish(sample types.PointerSample) {
	for {
		select {
		case s.ch <- sample:
			return
		default:
		}
		// Full: drop the stale sample and try again. The consumer may have
		// raced us to it, which is fine either way.
		select {
		case <-s.ch:
		default:
		}
	}
}

// TryLatest drains the pending sample, if any.
func (s *Slot) TryLatest() (types.PointerSample, bool) {
	select {
	case sample := <-s.ch:
		return sample, true
	default:
		return types.PointerSample{}, false
	}
}
