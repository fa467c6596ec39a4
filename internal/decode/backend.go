// Package decode owns the media decode path: a closed set of backends
// tried in priority order, and the per-output Pipeline that paces frames
// out of whichever backend accepted the source.
package decode

import (
	"errors"
	"time"

	"github.com/matjam/vidpaper/internal/compositor"
	"github.com/matjam/vidpaper/internal/media"
	"github.com/matjam/vidpaper/internal/types"
)

var (
	// ErrNoBackendAvailable means every candidate rejected the source or
	// failed to produce a first frame. The output keeps its last good
	// frame; this is never fatal to the engine.
	ErrNoBackendAvailable = errors.New("no decode backend available")

	// ErrDecodeTimeout reports that a backend produced no frame within its
	// deadline. During negotiation it disqualifies the candidate; while
	// streaming, a run of them counts as a backend failure.
	ErrDecodeTimeout = errors.New("decode timeout")

	// ErrEndOfStream marks normal end of a video source. The pipeline
	// seeks back to the start and keeps going.
	ErrEndOfStream = errors.New("end of stream")
)

// Request describes what a pipeline must decode and how the frames must
// come out: already scaled to the output, in BGRx, at the target rate.
type Request struct {
	Source media.Source
	Width  int
	Height int
	FPS    int
	Fit    types.FitMode
}

// Stream is an open decode session for one source.
type Stream interface {
	// NextFrame blocks up to timeout for the next decoded frame. Returns
	// ErrEndOfStream at the end of a video and ErrDecodeTimeout when the
	// deadline passes without a frame.
	NextFrame(timeout time.Duration) (*compositor.Frame, error)
	// Seek rewinds to the start of the source.
	Seek() error
	// Pause stops decode work without losing position.
	Pause() error
	// Resume continues from the held position.
	Resume() error
	// Close releases the backend resources.
	Close()
}

// Backend is one decode path. Adding a backend means adding a variant
// here; call sites iterate the priority list and never name a concrete
// backend.
type Backend interface {
	Name() string
	// Probe cheaply reports whether this backend can plausibly handle the
	// source. An accepting probe still has to survive Open and a first
	// frame before the backend is selected.
	Probe(src media.Source) bool
	Open(req Request) (Stream, error)
}

// Backends returns the candidate list in negotiation order: vendor
// hardware paths first, software decode last, stills handled by the image
// backend.
func Backends() []Backend {
	return []Backend{
		newGstBackend("nvdec", nvdecLaunch, h264Containers),
		newGstBackend("vaapi", vaapiLaunch, h264Containers),
		newGstBackend("vulkan", vulkanLaunch, h264Containers),
		newGstBackend("software", softwareLaunch, nil),
		&imageBackend{},
	}
}
