// Package compositor is the boundary between the engine and the display
// server. The engine only sees this capability set; the layershell
// subpackage provides the wlr-layer-shell implementation and tests swap in
// a fake.
package compositor

import "errors"

// ErrSurfaceGone reports that the output behind a surface disappeared
// while a frame was in flight. The engine responds by tearing down that
// output's state; other outputs are unaffected.
var ErrSurfaceGone = errors.New("surface gone")

// Output is one physical display as reported by the compositor.
type Output struct {
	Name   string
	Width  int
	Height int
}

// Frame is a finished wallpaper frame in the compositor's native BGRx
// byte order, sized to the output it targets.
type Frame struct {
	Width  int
	Height int
	Pix    []byte // 4 bytes per pixel, Width*4 stride
}

// NewFrame allocates a black frame.
func NewFrame(width, height int) *Frame {
	return &Frame{Width: width, Height: height, Pix: make([]byte, width*height*4)}
}

// EventKind discriminates compositor events.
type EventKind int

const (
	OutputAdded EventKind = iota
	OutputRemoved
	VisibilityChanged
)

// Event is one compositor notification. Output is populated for
// OutputAdded; Name identifies the output for the other kinds. Occluded is
// meaningful only for VisibilityChanged.
type Event struct {
	Kind     EventKind
	Output   Output
	Name     string
	Occluded bool
}

// Surface owns the exclusive drawable handle bound to one output's
// background layer.
type Surface interface {
	// Submit presents a finished frame. Returns ErrSurfaceGone when the
	// output was removed concurrently.
	Submit(*Frame) error
	// Destroy releases the surface. Safe to call more than once.
	Destroy()
}

// Client is the connection to the display server.
type Client interface {
	// Outputs returns the outputs known at connect time. Later changes
	// arrive as events.
	Outputs() []Output
	// CreateSurface binds a background-layer surface to the named output.
	CreateSurface(name string) (Surface, error)
	// Events delivers output lifecycle and visibility notifications. The
	// channel closes when the client shuts down.
	Events() <-chan Event
	// Close disconnects and releases all surfaces.
	Close()
}
