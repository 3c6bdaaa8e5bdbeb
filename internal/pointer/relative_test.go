package pointer

import (
	"errors"
	"testing"
	"time"

	"github.com/matjam/shaderpaper/internal/types"
)

// scriptedDeltas serves a fixed set of delta batches, then reports nothing
// ready until closed.
type scriptedDeltas struct {
	batches [][2]float64
	idx     int
	waitErr error
	closed  bool
}

func (d *scriptedDeltas) Wait(timeout time.Duration) (bool, error) {
	if d.waitErr != nil {
		return false, d.waitErr
	}
	if d.idx < len(d.batches) {
		return true, nil
	}
	time.Sleep(time.Millisecond)
	return false, nil
}

func (d *scriptedDeltas) Drain() (float64, float64, error) {
	b := d.batches[d.idx]
	d.idx++
	return b[0], b[1], nil
}

func (d *scriptedDeltas) Close() error {
	d.closed = true
	return nil
}

func TestRelativeAccumulatesDeltas(t *testing.T) {
	dev := &scriptedDeltas{batches: [][2]float64{{10, 10}, {10, 10}}}
	src := NewRelativeSource(dev)

	emitted := make(chan types.PointerSample, 4)
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- src.Run(stop, func(s types.PointerSample) { emitted <- s })
	}()

	want := []types.PointerSample{{X: 10, Y: 10}, {X: 20, Y: 20}}
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

	close(stop)
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if !dev.closed {
		t.Fatal("device was not closed on exit")
	}
}

func TestRelativeSkipsZeroDeltaBatches(t *testing.T) {
	dev := &scriptedDeltas{batches: [][2]float64{{0, 0}, {5, -3}}}
	src := NewRelativeSource(dev)

	emitted := make(chan types.PointerSample, 4)
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- src.Run(stop, func(s types.PointerSample) { emitted <- s })
	}()

	select {
	case got := <-emitted:
		if got != (types.PointerSample{X: 5, Y: -3}) {
			t.Fatalf("got %v, want (5,-3)", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for emit")
	}

	close(stop)
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestRelativeWaitErrorStopsSource(t *testing.T) {
	boom := errors.New("device went away")
	dev := &scriptedDeltas{waitErr: boom}
	src := NewRelativeSource(dev)

	err := src.Run(make(chan struct{}), func(types.PointerSample) {})
	if !errors.Is(err, boom) {
		t.Fatalf("Run returned %v, want wrapped device error", err)
	}
	if !dev.closed {
		t.Fatal("device was not closed after the error")
	}
}
