package pointer

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrStopTimeout reports that the sampler goroutine did not exit within
// the shutdown grace period. Callers log it and exit anyway.
var ErrStopTimeout = errors.New("pointer: sampler did not stop within the grace period")

// Sampler owns the source goroutine and the slot it publishes into. The
// render loop never talks to the source directly, only to the slot.
type Sampler struct {
	slot *Slot
	src  Source

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewSampler(src Source, slot *Slot) *Sampler {
	return &Sampler{
		slot: slot,
		src:  src,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (s *Sampler) SourceName() string { return s.src.Name() }

// Start launches the sampling goroutine. A source that fails is logged
// once and never restarted: the render loop keeps going with whatever
// uniform it last had.
func (s *Sampler) Start() {
	go func() {
		defer close(s.done)
		if err := s.src.Run(s.stop, s.slot.Publish); err != nil {
			log.Warnf("pointer: %s source unavailable, wallpaper will not track the pointer: %v", s.src.Name(), err)
		}
	}()
}

// Stop signals the source and joins the goroutine, waiting at most grace.
func (s *Sampler) Stop(grace time.Duration) error {
	s.stopOnce.Do(func() { close(s.stop) })
	select {
	case <-s.done:
		return nil
	case <-time.After(grace):
		return ErrStopTimeout
	}
}
