package pointer

import (
	"errors"
	"testing"
	"time"

	"github.com/matjam/shaderpaper/internal/types"
)

// funcSource adapts a closure into a Source.
type funcSource struct {
	name string
	run  func(stop <-chan struct{}, emit func(types.PointerSample)) error
}

func (f *funcSource) Name() string { return f.name }
func (f *funcSource) Run(stop <-chan struct{}, emit func(types.PointerSample)) error {
	return f.run(stop, emit)
}

func TestSamplerPublishesToSlot(t *testing.T) {
	src := &funcSource{name: "test", run: func(stop <-chan struct{}, emit func(types.PointerSample)) error {
		emit(types.PointerSample{X: 10, Y: 10})
		emit(types.PointerSample{X: 20, Y: 20})
		<-stop
		return nil
	}}
	slot := NewSlot()
	sampler := NewSampler(src, slot)
	sampler.Start()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if got, ok := slot.TryLatest(); ok {
			if got != (types.PointerSample{X: 20, Y: 20}) {
				t.Fatalf("latest sample %v, want (20,20)", got)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no sample arrived")
		}
		time.Sleep(time.Millisecond)
	}

	if err := sampler.Stop(time.Second); err != nil {
		t.Fatalf("Stop returned %v", err)
	}
}

func TestSamplerStopIsBounded(t *testing.T) {
	release := make(chan struct{})
	src := &funcSource{name: "stuck", run: func(stop <-chan struct{}, emit func(types.PointerSample)) error {
		// Ignores stop entirely, like a reader blocked in a syscall.
		<-release
		return nil
	}}
	sampler := NewSampler(src, NewSlot())
	sampler.Start()

	start := time.Now()
	err := sampler.Stop(50 * time.Millisecond)
	if !errors.Is(err, ErrStopTimeout) {
		t.Fatalf("Stop returned %v, want ErrStopTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Stop took %v, the join must be bounded", elapsed)
	}
	close(release)
}

func TestSamplerToleratesSourceFailure(t *testing.T) {
	src := &funcSource{name: "broken", run: func(stop <-chan struct{}, emit func(types.PointerSample)) error {
		return errors.New("no device")
	}}
	sampler := NewSampler(src, NewSlot())
	sampler.Start()

	if err := sampler.Stop(time.Second); err != nil {
		t.Fatalf("Stop returned %v after a source failure", err)
	}
}

func TestSamplerStopTwice(t *testing.T) {
	src := &funcSource{name: "test", run: func(stop <-chan struct{}, emit func(types.PointerSample)) error {
		<-stop
		return nil
	}}
	sampler := NewSampler(src, NewSlot())
	sampler.Start()

	if err := sampler.Stop(time.Second); err != nil {
		t.Fatalf("first Stop returned %v", err)
	}
	if err := sampler.Stop(time.Second); err != nil {
		t.Fatalf("second Stop returned %v", err)
	}
}
