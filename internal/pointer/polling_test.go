package pointer

import (
	"sync"
	"testing"
	"time"

	"github.com/matjam/shaderpaper/internal/types"
)

// scriptedPosition replays a fixed sequence of positions, holding the last
// one once the script runs out.
type scriptedPosition struct {
	mu        sync.Mutex
	positions [][2]float64
	idx       int
	known     bool
}

func (s *scriptedPosition) query() (float64, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known {
		return 0, 0, false
	}
	p := s.positions[s.idx]
	if s.idx < len(s.positions)-1 {
		s.idx++
	}
	return p[0], p[1], true
}

func TestPollingEmitsOnlyOnChange(t *testing.T) {
	script := &scriptedPosition{
		positions: [][2]float64{{1, 1}, {1, 1}, {2, 2}, {2, 2}, {2, 2}, {3, 3}, {3, 3}},
		known:     true,
	}
	src := NewPollingSource(script.query, time.Millisecond)

	emitted := make(chan types.PointerSample, 16)
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- src.Run(stop, func(s types.PointerSample) { emitted <- s })
	}()

	want := []types.PointerSample{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	for i, w := range want {
		select {
		case got := <-emitted:
			if got != w {
				t.Fatalf("emit %d: got %v, want %v", i, got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for emit %d", i)
		}
	}

	// The script now holds (3,3) forever; no further emits may arrive.
	select {
	case got := <-emitted:
		t.Fatalf("unexpected emit %v for an unchanged position", got)
	case <-time.After(20 * time.Millisecond):
	}

	close(stop)
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestPollingIgnoresUnknownPosition(t *testing.T) {
	src := NewPollingSource(func() (float64, float64, bool) { return 0, 0, false }, time.Millisecond)

	emitted := make(chan types.PointerSample, 1)
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- src.Run(stop, func(s types.PointerSample) { emitted <- s })
	}()

	select {
	case got := <-emitted:
		t.Fatalf("emitted %v while the position was unknown", got)
	case <-time.After(20 * time.Millisecond):
	}

	close(stop)
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestPollingDefaultInterval(t *testing.T) {
	src := NewPollingSource(func() (float64, float64, bool) { return 0, 0, false }, 0)
	if src.interval != DefaultPollInterval {
		t.Fatalf("interval = %v, want %v", src.interval, DefaultPollInterval)
	}
}
