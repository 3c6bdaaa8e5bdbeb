//go:build linux

package pointer

import (
	"errors"
	"path/filepath"
	"time"
	"unsafe"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

const (
	evRel = 0x02
	relX  = 0x00
	relY  = 0x01
)

// inputEvent mirrors the kernel's struct input_event.
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

const inputEventSize = int(unsafe.Sizeof(inputEvent{}))

// EvdevReader reads relative motion from every accessible mouse-like
// device under /dev/input, the kernel-level equivalent of a libinput
// pointer seat.
type EvdevReader struct {
	fds   []int
	paths []string
	pfds  []unix.PollFd
	buf   []byte
}

// OpenEvdev scans /dev/input for devices reporting relative X/Y motion and
// opens them non-blocking. Failure here means input-unavailable, which the
// caller degrades from, not a fatal error.
func OpenEvdev() (*EvdevReader, error) {
	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, err
	}
	r := &EvdevReader{buf: make([]byte, inputEventSize*64)}
	for _, path := range paths {
		fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err != nil {
			continue
		}
		if !reportsRelativeMotion(fd) {
			unix.Close(fd)
			continue
		}
		r.fds = append(r.fds, fd)
		r.paths = append(r.paths, path)
		r.pfds = append(r.pfds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	}
	if len(r.fds) == 0 {
		return nil, errors.New("pointer: no readable relative-motion device under /dev/input")
	}
	log.Debugf("evdev: tracking %d pointer device(s): %v", len(r.fds), r.paths)
	return r, nil
}

// reportsRelativeMotion checks the EV_REL capability bits for REL_X and
// REL_Y, filtering keyboards and touch devices out of the scan.
func reportsRelativeMotion(fd int) bool {
	var bits [1]byte
	if err := ioctlEviocgbit(fd, evRel, bits[:]); err != nil {
		return false
	}
	return bits[0]&(1<<relX) != 0 && bits[0]&(1<<relY) != 0
}

// ioctlEviocgbit issues EVIOCGBIT(ev, len(buf)): _IOC(_IOC_READ, 'E',
// 0x20 + ev, len).
func ioctlEviocgbit(fd, ev int, buf []byte) error {
	const iocRead = 2
	req := uintptr(iocRead)<<30 | uintptr(len(buf))<<16 | uintptr('E')<<8 | uintptr(0x20+ev)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return errno
	}
	return nil
}

func (r *EvdevReader) Wait(timeout time.Duration) (bool, error) {
	for i := range r.pfds {
		r.pfds[i].Revents = 0
	}
	n, err := unix.Poll(r.pfds, int(timeout.Milliseconds()))
	if err == unix.EINTR {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *EvdevReader) Drain() (dx, dy float64, err error) {
	for _, fd := range r.fds {
		for {
			n, rerr := unix.Read(fd, r.buf)
			if n <= 0 {
				if rerr == unix.EINTR {
					continue
				}
				if rerr != nil && rerr != unix.EAGAIN {
					return dx, dy, rerr
				}
				break
			}
			for off := 0; off+inputEventSize <= n; off += inputEventSize {
				ev := (*inputEvent)(unsafe.Pointer(&r.buf[off]))
				if ev.Type != evRel {
					continue
				}
				switch ev.Code {
				case relX:
					dx += float64(ev.Value)
				case relY:
					dy += float64(ev.Value)
				}
			}
		}
	}
	return dx, dy, nil
}

func (r *EvdevReader) Close() error {
	var first error
	for _, fd := range r.fds {
		if err := unix.Close(fd); err != nil && first == nil {
			first = err
		}
	}
	r.fds = nil
	r.pfds = nil
	return first
}
