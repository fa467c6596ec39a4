// Package layershell is the wayland adapter. It keeps one background
// layer surface per output and presents decoded frames through wl_shm
// buffers, so it works on every wlr compositor without a GPU context.
package layershell

/*
#cgo LDFLAGS: -lwayland-client
#include "layershell.h"
// Forward declare wl_output_interface so we can bind outputs without including extra headers here
extern const struct wl_interface wl_output_interface;
*/
import "C"

import (
	"fmt"
	"runtime/cgo"
	"sync"
	"time"
	"unsafe"

	"github.com/charmbracelet/log"

	"github.com/matjam/vidpaper/internal/compositor"
)

const configureTimeout = 5 * time.Second

// Client holds the wayland connection. Every wayland request and every
// callback runs with mu held, so protocol state is only ever touched by
// one goroutine at a time.
type Client struct {
	mu sync.Mutex

	display    *C.struct_wl_display
	registry   *C.struct_wl_registry
	compositor *C.struct_wl_compositor
	shm        *C.struct_wl_shm
	layerShell *C.struct_zwlr_layer_shell_v1

	handle cgo.Handle

	outputs  map[*C.struct_wl_output]*outputInfo
	surfaces map[*C.struct_zwlr_layer_surface_v1]*shmSurface
	events   chan compositor.Event

	initialized bool
	stop        chan struct{}
	stopOnce    sync.Once
}

type outputInfo struct {
	id        uint32
	output    *C.struct_wl_output
	name      string
	width     int
	height    int
	announced bool
}

// Connect dials the wayland display and discovers globals. It fails when
// the compositor lacks wlr-layer-shell or wl_shm.
func Connect() (*Client, error) {
	c := &Client{
		outputs:  make(map[*C.struct_wl_output]*outputInfo),
		surfaces: make(map[*C.struct_zwlr_layer_surface_v1]*shmSurface),
		events:   make(chan compositor.Event, 32),
		stop:     make(chan struct{}),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.display = C.ls_connect_display()
	if c.display == nil {
		return nil, fmt.Errorf("failed to connect to Wayland display")
	}

	c.registry = C.wl_display_get_registry(c.display)
	if c.registry == nil {
		C.wl_display_disconnect(c.display)
		return nil, fmt.Errorf("failed to get Wayland registry")
	}

	c.handle = cgo.NewHandle(c)
	C.wl_registry_add_listener(c.registry, C.get_registry_listener(), unsafe.Pointer(uintptr(c.handle)))

	// Two roundtrips: one for globals, one for the output events the
	// first roundtrip's binds triggered.
	C.wl_display_roundtrip(c.display)
	C.wl_display_roundtrip(c.display)

	if c.compositor == nil || c.shm == nil {
		c.teardown()
		return nil, fmt.Errorf("compositor is missing wl_compositor or wl_shm")
	}
	if c.layerShell == nil {
		c.teardown()
		return nil, fmt.Errorf("compositor does not support zwlr_layer_shell_v1")
	}

	c.initialized = true
	go c.dispatchLoop()

	return c, nil
}

// dispatchLoop keeps protocol events (frame releases, output hotplug,
// configure) flowing while the engine is between requests.
func (c *Client) dispatchLoop() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.display != nil {
			C.wl_display_roundtrip(c.display)
		}
		c.mu.Unlock()
	}
}

// Outputs returns the outputs the compositor has fully announced, at
// their current pixel mode.
func (c *Client) Outputs() []compositor.Output {
	c.mu.Lock()
	defer c.mu.Unlock()

	var outs []compositor.Output
	for _, info := range c.outputs {
		if !info.announced {
			continue
		}
		outs = append(outs, compositor.Output{
			Name:   info.name,
			Width:  info.width,
			Height: info.height,
		})
	}
	return outs
}

func (c *Client) Events() <-chan compositor.Event { return c.events }

// CreateSurface creates a background layer surface on the named output
// and blocks until the compositor configures it.
func (c *Client) CreateSurface(name string) (compositor.Surface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var info *outputInfo
	for _, o := range c.outputs {
		if o.announced && o.name == name {
			info = o
			break
		}
	}
	if info == nil {
		return nil, fmt.Errorf("no such output: %s", name)
	}

	wlSurface := C.wl_compositor_create_surface(c.compositor)
	if wlSurface == nil {
		return nil, fmt.Errorf("failed to create wl_surface for %s", name)
	}

	namespace := C.CString("vidpaper")
	defer C.free(unsafe.Pointer(namespace))

	layerSurf := C.zwlr_layer_shell_v1_get_layer_surface(
		c.layerShell, wlSurface, info.output,
		C.ZWLR_LAYER_SHELL_V1_LAYER_BACKGROUND, namespace,
	)
	if layerSurf == nil {
		C.wl_surface_destroy(wlSurface)
		return nil, fmt.Errorf("failed to create layer surface for %s", name)
	}

	s := &shmSurface{
		client:    c,
		name:      name,
		wlSurface: wlSurface,
		layerSurf: layerSurf,
	}
	c.surfaces[layerSurf] = s

	C.zwlr_layer_surface_v1_add_listener(layerSurf, C.get_layer_surface_listener(), unsafe.Pointer(uintptr(c.handle)))

	C.zwlr_layer_surface_v1_set_anchor(layerSurf,
		C.ZWLR_LAYER_SURFACE_V1_ANCHOR_TOP|
			C.ZWLR_LAYER_SURFACE_V1_ANCHOR_BOTTOM|
			C.ZWLR_LAYER_SURFACE_V1_ANCHOR_LEFT|
			C.ZWLR_LAYER_SURFACE_V1_ANCHOR_RIGHT)
	C.zwlr_layer_surface_v1_set_exclusive_zone(layerSurf, -1)
	C.zwlr_layer_surface_v1_set_size(layerSurf, 0, 0)
	C.zwlr_layer_surface_v1_set_keyboard_interactivity(layerSurf, 0)
	C.wl_surface_commit(wlSurface)

	// Configure arrives during a roundtrip on this goroutine.
	deadline := time.Now().Add(configureTimeout)
	for !s.configured && !s.closed {
		if time.Now().After(deadline) {
			s.destroyLocked()
			return nil, fmt.Errorf("timeout waiting for %s to configure", name)
		}
		C.wl_display_roundtrip(c.display)
	}
	if s.closed {
		return nil, compositor.ErrSurfaceGone
	}

	log.Debugf("layershell: surface on %s configured %dx%d", name, s.width, s.height)
	return s, nil
}

// Close tears the whole connection down. Pending surfaces are destroyed
// with it.
func (c *Client) Close() {
	c.stopOnce.Do(func() { close(c.stop) })

	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardown()
}

func (c *Client) teardown() {
	if c.display == nil {
		return
	}
	for _, s := range c.surfaces {
		s.destroyLocked()
	}
	if c.layerShell != nil {
		C.zwlr_layer_shell_v1_destroy(c.layerShell)
		c.layerShell = nil
	}
	C.wl_display_disconnect(c.display)
	c.display = nil
	if c.handle != 0 {
		c.handle.Delete()
		c.handle = 0
	}
	close(c.events)
}

func (c *Client) emit(ev compositor.Event) {
	select {
	case c.events <- ev:
	default:
		log.Warn("layershell: dropping event, engine is not draining")
	}
}

//export goLsHandleGlobal
func goLsHandleGlobal(handle C.uintptr_t, registry *C.struct_wl_registry, name C.uint32_t, iface *C.char, version C.uint32_t) {
	c := cgo.Handle(uintptr(handle)).Value().(*Client)
	goIface := C.GoString(iface)

	switch goIface {
	case "zwlr_layer_shell_v1":
		c.layerShell = (*C.struct_zwlr_layer_shell_v1)(C.wl_registry_bind(registry, name, &C.zwlr_layer_shell_v1_interface, 1))
		log.Debug("layershell: bound zwlr_layer_shell_v1")
	case "wl_compositor":
		want := C.uint32_t(4)
		if version < want {
			want = version
		}
		c.compositor = (*C.struct_wl_compositor)(C.wl_registry_bind(registry, name, &C.wl_compositor_interface, want))
		log.Debug("layershell: bound wl_compositor")
	case "wl_shm":
		c.shm = (*C.struct_wl_shm)(C.wl_registry_bind(registry, name, &C.wl_shm_interface, 1))
		log.Debug("layershell: bound wl_shm")
	case "wl_output":
		// Need the name event, which exists since wl_output v4.
		want := C.uint32_t(4)
		if version < want {
			want = version
		}
		wlOut := (*C.struct_wl_output)(C.wl_registry_bind(registry, name, &C.wl_output_interface, want))
		c.outputs[wlOut] = &outputInfo{id: uint32(name), output: wlOut}
		C.wl_output_add_listener(wlOut, C.get_output_listener(), unsafe.Pointer(uintptr(handle)))
		log.Debugf("layershell: bound wl_output id=%d", uint32(name))
	}
}

//export goLsHandleGlobalRemove
func goLsHandleGlobalRemove(handle C.uintptr_t, _ *C.struct_wl_registry, name C.uint32_t) {
	c := cgo.Handle(uintptr(handle)).Value().(*Client)

	id := uint32(name)
	for wlOut, info := range c.outputs {
		if info.id != id {
			continue
		}
		delete(c.outputs, wlOut)
		C.wl_output_destroy(wlOut)
		if info.announced {
			log.Infof("layershell: output %s removed", info.name)
			c.emit(compositor.Event{Kind: compositor.OutputRemoved, Name: info.name})
		}
		return
	}
}

//export goLsHandleOutputMode
func goLsHandleOutputMode(handle C.uintptr_t, output *C.struct_wl_output, flags C.uint32_t, width, height C.int32_t) {
	c := cgo.Handle(uintptr(handle)).Value().(*Client)

	if flags&C.WL_OUTPUT_MODE_CURRENT == 0 {
		return
	}
	if info, ok := c.outputs[output]; ok {
		info.width = int(width)
		info.height = int(height)
	}
}

//export goLsHandleOutputName
func goLsHandleOutputName(handle C.uintptr_t, output *C.struct_wl_output, name *C.char) {
	c := cgo.Handle(uintptr(handle)).Value().(*Client)

	if info, ok := c.outputs[output]; ok {
		info.name = C.GoString(name)
	}
}

//export goLsHandleOutputDone
func goLsHandleOutputDone(handle C.uintptr_t, output *C.struct_wl_output) {
	c := cgo.Handle(uintptr(handle)).Value().(*Client)

	info, ok := c.outputs[output]
	if !ok || info.announced || info.name == "" {
		return
	}
	info.announced = true
	log.Debugf("layershell: output %s is %dx%d", info.name, info.width, info.height)
	if c.initialized {
		c.emit(compositor.Event{
			Kind: compositor.OutputAdded,
			Output: compositor.Output{
				Name:   info.name,
				Width:  info.width,
				Height: info.height,
			},
		})
	}
}

//export goLsHandleLayerSurfaceConfigure
func goLsHandleLayerSurfaceConfigure(handle C.uintptr_t, surface *C.struct_zwlr_layer_surface_v1, serial, width, height C.uint32_t) {
	c := cgo.Handle(uintptr(handle)).Value().(*Client)

	C.zwlr_layer_surface_v1_ack_configure(surface, serial)
	if s, ok := c.surfaces[surface]; ok {
		s.width = int(width)
		s.height = int(height)
		s.configured = true
	}
}

//export goLsHandleLayerSurfaceClosed
func goLsHandleLayerSurfaceClosed(handle C.uintptr_t, surface *C.struct_zwlr_layer_surface_v1) {
	c := cgo.Handle(uintptr(handle)).Value().(*Client)

	if s, ok := c.surfaces[surface]; ok {
		log.Debugf("layershell: surface on %s closed by compositor", s.name)
		s.closed = true
	}
}

//export goLsHandleBufferRelease
func goLsHandleBufferRelease(handle C.uintptr_t, buffer *C.struct_wl_buffer) {
	c := cgo.Handle(uintptr(handle)).Value().(*Client)

	for _, s := range c.surfaces {
		for i := range s.buffers {
			if s.buffers[i] != nil && s.buffers[i].wlBuffer == buffer {
				s.buffers[i].busy = false
				return
			}
		}
	}
}
