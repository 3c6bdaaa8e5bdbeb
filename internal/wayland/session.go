// Package wayland holds the compositor session: a wlr-layer-shell surface
// anchored to every edge of an output, triple-buffered wl_shm presentation
// and the pointer focus state. The session owns all protocol traffic and
// dispatches it on the goroutine that calls WaitEvent.
package wayland

/*
#cgo LDFLAGS: -lwayland-client
#include <stdlib.h>
#include "protocol.h"
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime/cgo"
	"sync"
	"time"
	"unsafe"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"github.com/matjam/shaderpaper/internal/surface"
	"github.com/matjam/shaderpaper/internal/types"
)

// shmSlots is how many buffers back the surface. Three lets one be
// scanned out, one be queued and one be drawn into.
const shmSlots = 3

// Options selects where the compositor stacks the surface.
type Options struct {
	// Layer is one of background, bottom, top or overlay. Anything else
	// falls back to background.
	Layer string
}

type Session struct {
	display    *C.struct_wl_display
	registry   *C.struct_wl_registry
	compositor *C.struct_wl_compositor
	shm        *C.struct_wl_shm
	seat       *C.struct_wl_seat
	pointer    *C.struct_wl_pointer
	layerShell *C.struct_zwlr_layer_shell_v1
	layerSurf  *C.struct_zwlr_layer_surface_v1
	surface    *C.struct_wl_surface

	// protocol version negotiated when binding wl_compositor
	compositorVersion int

	fd     int
	handle cgo.Handle

	events     []surface.Event
	dims       types.SurfaceDimensions
	configured bool
	pool       *shmPool
	closed     bool

	ptrMu   sync.Mutex
	ptrX    float64
	ptrY    float64
	ptrSeen bool
}

// Connect establishes the compositor session and commits an unsized layer
// surface. It returns before the first configure arrives; the caller gets
// that as a ConfigureEvent from WaitEvent.
func Connect(opts Options) (*Session, error) {
	s := &Session{}

	s.display = C.wl_display_connect(nil)
	if s.display == nil {
		return nil, errors.New("wayland: cannot connect, is WAYLAND_DISPLAY set?")
	}
	s.fd = int(C.wl_display_get_fd(s.display))
	s.handle = cgo.NewHandle(s)

	s.registry = C.wl_display_get_registry(s.display)
	if s.registry == nil {
		s.Close()
		return nil, errors.New("wayland: failed to get registry")
	}
	C.wl_registry_add_listener(s.registry, C.sp_registry_listener(),
		unsafe.Pointer(uintptr(s.handle)))

	// First roundtrip delivers the globals, the second the responses to
	// the binds made while handling them, seat capabilities included.
	C.wl_display_roundtrip(s.display)
	C.wl_display_roundtrip(s.display)

	if s.compositor == nil {
		s.Close()
		return nil, errors.New("wayland: compositor does not advertise wl_compositor")
	}
	if s.shm == nil {
		s.Close()
		return nil, errors.New("wayland: compositor does not advertise wl_shm")
	}
	if s.layerShell == nil {
		s.Close()
		return nil, errors.New("wayland: compositor does not support zwlr_layer_shell_v1")
	}

	s.surface = C.wl_compositor_create_surface(s.compositor)
	if s.surface == nil {
		s.Close()
		return nil, errors.New("wayland: failed to create wl_surface")
	}

	namespace := C.CString("shaderpaper")
	defer C.free(unsafe.Pointer(namespace))

	// A nil output lets the compositor pick one.
	s.layerSurf = C.sp_layer_shell_get_layer_surface(
		s.layerShell, s.surface, nil, C.uint32_t(parseLayer(opts.Layer)), namespace)
	if s.layerSurf == nil {
		s.Close()
		return nil, errors.New("wayland: failed to create layer surface")
	}
	C.sp_layer_surface_add_listener(s.layerSurf, unsafe.Pointer(uintptr(s.handle)))

	C.sp_layer_surface_set_anchor(s.layerSurf,
		C.ZWLR_LAYER_SURFACE_V1_ANCHOR_TOP|
			C.ZWLR_LAYER_SURFACE_V1_ANCHOR_BOTTOM|
			C.ZWLR_LAYER_SURFACE_V1_ANCHOR_LEFT|
			C.ZWLR_LAYER_SURFACE_V1_ANCHOR_RIGHT)
	C.sp_layer_surface_set_exclusive_zone(s.layerSurf, -1)
	C.sp_layer_surface_set_size(s.layerSurf, 0, 0)
	C.sp_layer_surface_set_keyboard_interactivity(s.layerSurf, 0)
	C.sp_layer_surface_set_margin(s.layerSurf, 0, 0, 0, 0)

	C.wl_surface_commit(s.surface)
	C.wl_display_flush(s.display)

	log.Debugf("wayland: session established on the %s layer", opts.Layer)
	return s, nil
}

func parseLayer(name string) uint32 {
	switch name {
	case "", "background":
		return C.ZWLR_LAYER_SHELL_V1_LAYER_BACKGROUND
	case "bottom":
		return C.ZWLR_LAYER_SHELL_V1_LAYER_BOTTOM
	case "top":
		return C.ZWLR_LAYER_SHELL_V1_LAYER_TOP
	case "overlay":
		return C.ZWLR_LAYER_SHELL_V1_LAYER_OVERLAY
	default:
		log.Warnf("Unknown layer %q, using background", name)
		return C.ZWLR_LAYER_SHELL_V1_LAYER_BACKGROUND
	}
}

func sessionFromHandle(handle C.uintptr_t) *Session {
	h := cgo.Handle(uintptr(handle))
	s, ok := h.Value().(*Session)
	if !ok {
		log.Error("wayland: listener fired with a stale handle")
		return nil
	}
	return s
}

//export goRegistryGlobal
func goRegistryGlobal(handle C.uintptr_t, registry *C.struct_wl_registry, name C.uint32_t, iface *C.char, version C.uint32_t) {
	s := sessionFromHandle(handle)
	if s == nil {
		return
	}

	switch C.GoString(iface) {
	case "wl_compositor":
		// Need wl_surface.damage_buffer, available since compositor v4
		want := C.uint32_t(4)
		if version < want {
			want = version
		}
		s.compositor = (*C.struct_wl_compositor)(C.wl_registry_bind(registry, name, &C.wl_compositor_interface, want))
		s.compositorVersion = int(want)
		log.Debug("bound wl_compositor")
	case "wl_shm":
		s.shm = (*C.struct_wl_shm)(C.wl_registry_bind(registry, name, &C.wl_shm_interface, 1))
		log.Debug("bound wl_shm")
	case "wl_seat":
		if s.seat != nil {
			return
		}
		s.seat = (*C.struct_wl_seat)(C.wl_registry_bind(registry, name, &C.wl_seat_interface, 1))
		C.wl_seat_add_listener(s.seat, C.sp_seat_listener(), unsafe.Pointer(uintptr(s.handle)))
		log.Debug("bound wl_seat")
	case "zwlr_layer_shell_v1":
		// layer-shell v1 is sufficient for our needs
		s.layerShell = (*C.struct_zwlr_layer_shell_v1)(C.wl_registry_bind(registry, name, &C.zwlr_layer_shell_v1_interface, 1))
		log.Debug("bound zwlr_layer_shell_v1")
	}
}

//export goRegistryGlobalRemove
func goRegistryGlobalRemove(handle C.uintptr_t, registry *C.struct_wl_registry, name C.uint32_t) {
	log.Debugf("Global removed: name=%d", name)
}

//export goSeatCapabilities
func goSeatCapabilities(handle C.uintptr_t, seat *C.struct_wl_seat, capabilities C.uint32_t) {
	s := sessionFromHandle(handle)
	if s == nil {
		return
	}

	hasPointer := capabilities&C.WL_SEAT_CAPABILITY_POINTER != 0
	if hasPointer && s.pointer == nil {
		s.pointer = C.wl_seat_get_pointer(seat)
		C.wl_pointer_add_listener(s.pointer, C.sp_pointer_listener(), unsafe.Pointer(uintptr(s.handle)))
		log.Debug("seat grew a pointer")
	} else if !hasPointer && s.pointer != nil {
		C.wl_pointer_destroy(s.pointer)
		s.pointer = nil
		log.Debug("seat lost its pointer")
	}
}

//export goSeatName
func goSeatName(handle C.uintptr_t, seat *C.struct_wl_seat, name *C.char) {
	log.Debugf("seat name: %s", C.GoString(name))
}

//export goLayerSurfaceConfigure
func goLayerSurfaceConfigure(handle C.uintptr_t, surf *C.struct_zwlr_layer_surface_v1, serial, width, height C.uint32_t) {
	s := sessionFromHandle(handle)
	if s == nil {
		return
	}

	// Acknowledge the configure
	C.sp_layer_surface_ack_configure(surf, serial)

	dims := types.SurfaceDimensions{Width: uint32(width), Height: uint32(height)}
	s.dims = dims
	s.configured = true
	s.events = append(s.events, surface.ConfigureEvent{Dimensions: dims})
	log.Debugf("Layer surface configured: width=%d, height=%d", width, height)
}

//export goLayerSurfaceClosed
func goLayerSurfaceClosed(handle C.uintptr_t, surf *C.struct_zwlr_layer_surface_v1) {
	s := sessionFromHandle(handle)
	if s == nil {
		return
	}

	log.Debug("Layer surface closed")
	s.events = append(s.events, surface.ClosedEvent{})
}

//export goFrameDone
func goFrameDone(handle C.uintptr_t, callback *C.struct_wl_callback, callbackData C.uint32_t) {
	C.wl_callback_destroy(callback)

	s := sessionFromHandle(handle)
	if s == nil {
		return
	}
	s.events = append(s.events, surface.FrameEvent{})
}

//export goBufferRelease
func goBufferRelease(handle C.uintptr_t, buffer *C.struct_wl_buffer) {
	s := sessionFromHandle(handle)
	if s == nil || s.pool == nil {
		return
	}
	s.pool.release(buffer)
}

//export goPointerEnter
func goPointerEnter(handle C.uintptr_t, pointer *C.struct_wl_pointer, serial C.uint32_t, surf *C.struct_wl_surface, sx, sy C.wl_fixed_t) {
	s := sessionFromHandle(handle)
	if s == nil {
		return
	}
	s.setPointer(fixedToFloat(sx), fixedToFloat(sy))
}

//export goPointerLeave
func goPointerLeave(handle C.uintptr_t, pointer *C.struct_wl_pointer, serial C.uint32_t, surf *C.struct_wl_surface) {
	// The last known position stays valid; the wallpaper keeps reacting
	// to wherever the pointer was when a window took focus.
}

//export goPointerMotion
func goPointerMotion(handle C.uintptr_t, pointer *C.struct_wl_pointer, time C.uint32_t, sx, sy C.wl_fixed_t) {
	s := sessionFromHandle(handle)
	if s == nil {
		return
	}
	s.setPointer(fixedToFloat(sx), fixedToFloat(sy))
}

//export goPointerButton
func goPointerButton(handle C.uintptr_t, pointer *C.struct_wl_pointer, serial, time, button, state C.uint32_t) {
}

//export goPointerAxis
func goPointerAxis(handle C.uintptr_t, pointer *C.struct_wl_pointer, time C.uint32_t, axis C.uint32_t, value C.wl_fixed_t) {
}

func fixedToFloat(v C.wl_fixed_t) float64 {
	return float64(v) / 256.0
}

func (s *Session) setPointer(x, y float64) {
	s.ptrMu.Lock()
	s.ptrX, s.ptrY, s.ptrSeen = x, y, true
	s.ptrMu.Unlock()
}

// PointerPosition reports the most recent pointer position in surface
// pixels. ok is false until the pointer has entered the surface once.
// Safe to call from any goroutine.
func (s *Session) PointerPosition() (x, y float64, ok bool) {
	s.ptrMu.Lock()
	defer s.ptrMu.Unlock()
	return s.ptrX, s.ptrY, s.ptrSeen
}

// CurrentDimensions reports the size from the latest configure.
func (s *Session) CurrentDimensions() (types.SurfaceDimensions, bool) {
	return s.dims, s.configured
}

// WaitEvent blocks up to timeout for the next compositor event. ok is
// false when the timeout passed quietly. A broken connection surfaces as
// a ClosedEvent so the caller winds down instead of spinning.
func (s *Session) WaitEvent(timeout time.Duration) (surface.Event, bool) {
	if s.closed {
		return nil, false
	}
	deadline := time.Now().Add(timeout)

	for {
		if ev, ok := s.popEvent(); ok {
			return ev, true
		}
		if C.wl_display_dispatch_pending(s.display) == -1 {
			return s.connectionLost(), true
		}
		if ev, ok := s.popEvent(); ok {
			return ev, true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false
		}

		for C.wl_display_prepare_read(s.display) != 0 {
			if C.wl_display_dispatch_pending(s.display) == -1 {
				return s.connectionLost(), true
			}
		}
		// Dispatching while becoming the reader may have queued an event.
		if ev, ok := s.popEvent(); ok {
			C.wl_display_cancel_read(s.display)
			return ev, true
		}
		C.wl_display_flush(s.display)

		n, err := s.poll(remaining)
		if err != nil {
			C.wl_display_cancel_read(s.display)
			if err == unix.EINTR {
				continue
			}
			log.Errorf("wayland: poll: %v", err)
			return s.connectionLost(), true
		}
		if n == 0 {
			C.wl_display_cancel_read(s.display)
			return nil, false
		}
		if C.wl_display_read_events(s.display) == -1 {
			return s.connectionLost(), true
		}
	}
}

func (s *Session) poll(d time.Duration) (int, error) {
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	ms := int(d / time.Millisecond)
	if ms <= 0 {
		ms = 1
	}
	return unix.Poll(fds, ms)
}

func (s *Session) popEvent() (surface.Event, bool) {
	if len(s.events) == 0 {
		return nil, false
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, true
}

func (s *Session) connectionLost() surface.Event {
	log.Error("wayland: display connection lost")
	return surface.ClosedEvent{}
}

// Damage marks the whole surface for redisplay on the next commit.
func (s *Session) Damage() {
	if s.surface == nil {
		return
	}
	if s.compositorVersion >= 4 {
		C.wl_surface_damage_buffer(s.surface, 0, 0, C.INT32_MAX, C.INT32_MAX)
	} else {
		C.wl_surface_damage(s.surface, 0, 0, C.INT32_MAX, C.INT32_MAX)
	}
}

// RequestFrame arms the next frame callback on the pending state.
func (s *Session) RequestFrame() {
	if s.surface == nil {
		return
	}
	cb := C.wl_surface_frame(s.surface)
	if cb == nil {
		log.Error("wayland: failed to request a frame callback")
		return
	}
	C.wl_callback_add_listener(cb, C.sp_frame_listener(), unsafe.Pointer(uintptr(s.handle)))
}

// Commit applies the pending state without attaching a new buffer.
func (s *Session) Commit() {
	if s.surface == nil {
		return
	}
	C.wl_surface_commit(s.surface)
	C.wl_display_flush(s.display)
}

// presentPixels copies a finished frame into a free shm buffer and commits
// it. When the frame no longer matches the surface, or every buffer is
// still held by the compositor, the frame is dropped; the pending state is
// committed anyway so the damage and the re-armed frame callback still
// reach the compositor and the cadence survives.
func (s *Session) presentPixels(dims types.SurfaceDimensions, pixels []byte) error {
	if s.surface == nil || s.pool == nil {
		return errors.New("wayland: present without a surface")
	}

	buf := s.freeBufferFor(dims)
	if buf != nil {
		copy(buf.data, pixels)
		buf.busy = true
		C.wl_surface_attach(s.surface, buf.wl, 0, 0)
	}
	C.wl_surface_commit(s.surface)
	C.wl_display_flush(s.display)
	return nil
}

// freeBufferFor returns an idle shm buffer sized for dims, or nil when the
// frame should be dropped.
func (s *Session) freeBufferFor(dims types.SurfaceDimensions) *shmBuffer {
	if s.pool.width != dims.Width || s.pool.height != dims.Height {
		log.Debugf("wayland: dropping %dx%d frame, pool is %dx%d",
			dims.Width, dims.Height, s.pool.width, s.pool.height)
		return nil
	}
	if s.configured && !s.dims.Degenerate() && s.dims != dims {
		log.Debugf("wayland: dropping %dx%d frame, surface is now %dx%d",
			dims.Width, dims.Height, s.dims.Width, s.dims.Height)
		return nil
	}
	buf := s.pool.acquire()
	if buf == nil {
		log.Debug("wayland: all shm buffers busy, dropping frame")
	}
	return buf
}

// ensurePool makes the shm buffers match dims, rebuilding them on resize.
func (s *Session) ensurePool(dims types.SurfaceDimensions) error {
	if s.pool != nil && s.pool.width == dims.Width && s.pool.height == dims.Height {
		return nil
	}
	if s.pool != nil {
		s.pool.destroy()
		s.pool = nil
	}
	pool, err := s.newShmPool(dims)
	if err != nil {
		return err
	}
	s.pool = pool
	return nil
}

// Close tears the whole session down. Safe to call more than once.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	if s.pool != nil {
		s.pool.destroy()
		s.pool = nil
	}
	if s.pointer != nil {
		C.wl_pointer_destroy(s.pointer)
		s.pointer = nil
	}
	if s.layerSurf != nil {
		C.sp_layer_surface_destroy(s.layerSurf)
		s.layerSurf = nil
	}
	if s.surface != nil {
		C.wl_surface_destroy(s.surface)
		s.surface = nil
	}
	if s.display != nil {
		C.wl_display_disconnect(s.display)
		s.display = nil
	}
	s.handle.Delete()
	log.Debug("wayland: session closed")
}

type shmBuffer struct {
	wl   *C.struct_wl_buffer
	data []byte
	busy bool
}

// shmPool is one memfd mapped into both processes, sliced into shmSlots
// equal buffers. ARGB8888 matches the BGRA byte order the swapchain
// renders in.
type shmPool struct {
	pool    *C.struct_wl_shm_pool
	mem     []byte
	buffers []*shmBuffer
	width   uint32
	height  uint32
	stride  uint32
}

func (s *Session) newShmPool(dims types.SurfaceDimensions) (*shmPool, error) {
	stride := dims.Width * 4
	slot := int(stride) * int(dims.Height)
	size := slot * shmSlots

	fd, err := unix.MemfdCreate("shaderpaper-shm", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("wayland: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("wayland: ftruncate shm to %d: %w", size, err)
	}
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("wayland: mmap shm: %w", err)
	}

	cPool := C.wl_shm_create_pool(s.shm, C.int32_t(fd), C.int32_t(size))
	// The compositor holds its own reference to the fd now.
	unix.Close(fd)
	if cPool == nil {
		unix.Munmap(mem)
		return nil, errors.New("wayland: failed to create shm pool")
	}

	p := &shmPool{
		pool:   cPool,
		mem:    mem,
		width:  dims.Width,
		height: dims.Height,
		stride: stride,
	}
	for i := 0; i < shmSlots; i++ {
		wlBuf := C.wl_shm_pool_create_buffer(cPool,
			C.int32_t(i*slot), C.int32_t(dims.Width), C.int32_t(dims.Height),
			C.int32_t(stride), C.WL_SHM_FORMAT_ARGB8888)
		if wlBuf == nil {
			p.destroy()
			return nil, errors.New("wayland: failed to create shm buffer")
		}
		C.wl_buffer_add_listener(wlBuf, C.sp_buffer_listener(), unsafe.Pointer(uintptr(s.handle)))
		p.buffers = append(p.buffers, &shmBuffer{wl: wlBuf, data: mem[i*slot : (i+1)*slot]})
	}

	log.Debugf("wayland: shm pool ready, %d buffers of %dx%d", shmSlots, dims.Width, dims.Height)
	return p, nil
}

func (p *shmPool) acquire() *shmBuffer {
	for _, b := range p.buffers {
		if !b.busy {
			return b
		}
	}
	return nil
}

func (p *shmPool) release(wlBuf *C.struct_wl_buffer) {
	for _, b := range p.buffers {
		if b.wl == wlBuf {
			b.busy = false
			return
		}
	}
}

func (p *shmPool) destroy() {
	for _, b := range p.buffers {
		if b.wl != nil {
			C.wl_buffer_destroy(b.wl)
			b.wl = nil
		}
	}
	p.buffers = nil
	if p.pool != nil {
		C.wl_shm_pool_destroy(p.pool)
		p.pool = nil
	}
	if p.mem != nil {
		unix.Munmap(p.mem)
		p.mem = nil
	}
}
