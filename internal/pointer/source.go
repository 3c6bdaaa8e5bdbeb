package pointer

import "github.com/matjam/shaderpaper/internal/types"

// Source produces absolute pointer positions. Run blocks until stop is
// closed or the source fails, calling emit for each new position. The two
// implementations, relative delta accumulation over evdev and absolute
// polling against a compositor-provided accessor, are selected per
// platform at startup and never mixed.
type Source interface {
	Name() string
	Run(stop <-chan struct{}, emit func(types.PointerSample)) error
}

// Unavailable is a Source that fails on the first Run with err. It stands
// in when the requested source cannot be opened, so the daemon still
// starts and renders with the neutral uniform instead of refusing to run.
func Unavailable(name string, err error) Source {
	return unavailableSource{name: name, err: err}
}

type unavailableSource struct {
	name string
	err  error
}

func (u unavailableSource) Name() string { return u.name }

func (u unavailableSource) Run(<-chan struct{}, func(types.PointerSample)) error {
	return u.err
}
