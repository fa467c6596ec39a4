package layershell

/*
#include "layershell.h"
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/matjam/vidpaper/internal/compositor"
)

// shmSurface double-buffers frames in a shared memory pool. The decoded
// BGRx layout matches WL_SHM_FORMAT_XRGB8888 byte for byte, so Submit is
// a single copy into the mapped pool.
type shmSurface struct {
	client *Client
	name   string

	wlSurface *C.struct_wl_surface
	layerSurf *C.struct_zwlr_layer_surface_v1

	pool     *C.struct_wl_shm_pool
	poolData unsafe.Pointer
	poolSize int
	buffers  [2]*shmBuffer
	next     int
	bufW     int
	bufH     int

	width      int
	height     int
	configured bool
	closed     bool
}

type shmBuffer struct {
	wlBuffer *C.struct_wl_buffer
	data     []byte
	busy     bool
}

func (s *shmSurface) Submit(frame *compositor.Frame) error {
	c := s.client
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.closed || c.display == nil {
		return compositor.ErrSurfaceGone
	}
	if err := s.ensureBuffers(frame.Width, frame.Height); err != nil {
		return err
	}

	buf := s.pick()
	copy(buf.data, frame.Pix)
	buf.busy = true

	C.wl_surface_attach(s.wlSurface, buf.wlBuffer, 0, 0)
	C.wl_surface_damage(s.wlSurface, 0, 0, C.int32_t(frame.Width), C.int32_t(frame.Height))
	C.wl_surface_commit(s.wlSurface)
	C.wl_display_flush(c.display)
	return nil
}

func (s *shmSurface) Destroy() {
	c := s.client
	c.mu.Lock()
	defer c.mu.Unlock()
	s.destroyLocked()
}

// pick prefers a released buffer; when the compositor is slow to release
// it alternates anyway rather than stalling the frame.
func (s *shmSurface) pick() *shmBuffer {
	for i := range s.buffers {
		if !s.buffers[i].busy {
			return s.buffers[i]
		}
	}
	buf := s.buffers[s.next]
	s.next = (s.next + 1) % len(s.buffers)
	return buf
}

// ensureBuffers (re)builds the shm pool when the frame geometry changes.
func (s *shmSurface) ensureBuffers(width, height int) error {
	if s.buffers[0] != nil && s.bufW == width && s.bufH == height {
		return nil
	}
	s.releaseBuffers()

	stride := width * 4
	size := stride * height
	total := size * len(s.buffers)

	fd := C.ls_create_shm_fd(C.size_t(total))
	if fd < 0 {
		return fmt.Errorf("failed to create shm pool fd for %s", s.name)
	}
	data := C.ls_map(fd, C.size_t(total))
	if data == nil {
		C.close(fd)
		return fmt.Errorf("failed to map shm pool for %s", s.name)
	}

	pool := C.wl_shm_create_pool(s.client.shm, fd, C.int32_t(total))
	C.close(fd)
	if pool == nil {
		C.ls_unmap(data, C.size_t(total))
		return fmt.Errorf("failed to create shm pool for %s", s.name)
	}

	s.pool = pool
	s.poolData = data
	s.poolSize = total
	s.bufW = width
	s.bufH = height

	for i := range s.buffers {
		offset := i * size
		wlBuf := C.wl_shm_pool_create_buffer(pool,
			C.int32_t(offset), C.int32_t(width), C.int32_t(height),
			C.int32_t(stride), C.WL_SHM_FORMAT_XRGB8888)
		if wlBuf == nil {
			s.releaseBuffers()
			return fmt.Errorf("failed to create shm buffer for %s", s.name)
		}
		C.wl_buffer_add_listener(wlBuf, C.get_buffer_listener(), unsafe.Pointer(uintptr(s.client.handle)))

		s.buffers[i] = &shmBuffer{
			wlBuffer: wlBuf,
			data:     unsafe.Slice((*byte)(unsafe.Pointer(uintptr(data)+uintptr(offset))), size),
		}
	}
	return nil
}

func (s *shmSurface) releaseBuffers() {
	for i := range s.buffers {
		if s.buffers[i] != nil {
			C.wl_buffer_destroy(s.buffers[i].wlBuffer)
			s.buffers[i] = nil
		}
	}
	if s.pool != nil {
		C.wl_shm_pool_destroy(s.pool)
		s.pool = nil
	}
	if s.poolData != nil {
		C.ls_unmap(s.poolData, C.size_t(s.poolSize))
		s.poolData = nil
		s.poolSize = 0
	}
	s.bufW = 0
	s.bufH = 0
}

func (s *shmSurface) destroyLocked() {
	if s.layerSurf != nil {
		delete(s.client.surfaces, s.layerSurf)
		C.zwlr_layer_surface_v1_destroy(s.layerSurf)
		s.layerSurf = nil
	}
	if s.wlSurface != nil {
		C.wl_surface_destroy(s.wlSurface)
		s.wlSurface = nil
	}
	s.releaseBuffers()
	s.closed = true
}
