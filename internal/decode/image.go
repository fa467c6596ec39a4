package decode

import (
	"fmt"
	"image"
	"math"
	"os"
	"sync"
	"time"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // stills the stdlib cannot decode

	"github.com/matjam/vidpaper/internal/compositor"
	"github.com/matjam/vidpaper/internal/fit"
	"github.com/matjam/vidpaper/internal/media"
	"github.com/matjam/vidpaper/internal/types"
)

// imageBackend decodes stills. No negotiation beyond the format decode;
// "streaming" is a single frame.
type imageBackend struct{}

func (b *imageBackend) Name() string { return "image" }

func (b *imageBackend) Probe(src media.Source) bool {
	return src.Kind == types.MediaImage
}

func (b *imageBackend) Open(req Request) (Stream, error) {
	f, err := os.Open(req.Source.Path)
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("image: decoding %s: %w", req.Source.Path, err)
	}

	return &imageStream{frame: renderStill(img, req)}, nil
}

// renderStill scales the decoded image onto a black canvas according to
// the fit transform and converts to the compositor's BGRx order.
func renderStill(img image.Image, req Request) *compositor.Frame {
	srcBounds := img.Bounds()
	tr := fit.Compute(srcBounds.Dx(), srcBounds.Dy(), req.Width, req.Height, req.Fit)

	dst := image.NewRGBA(image.Rect(0, 0, req.Width, req.Height))
	rect := image.Rect(
		int(math.Round(tr.OffsetX)),
		int(math.Round(tr.OffsetY)),
		int(math.Round(tr.OffsetX+tr.ScaleX*float64(srcBounds.Dx()))),
		int(math.Round(tr.OffsetY+tr.ScaleY*float64(srcBounds.Dy()))),
	)
	xdraw.CatmullRom.Scale(dst, rect, img, srcBounds, xdraw.Src, nil)

	frame := compositor.NewFrame(req.Width, req.Height)
	for i := 0; i+3 < len(dst.Pix); i += 4 {
		frame.Pix[i+0] = dst.Pix[i+2]
		frame.Pix[i+1] = dst.Pix[i+1]
		frame.Pix[i+2] = dst.Pix[i+0]
		frame.Pix[i+3] = 0xff
	}
	return frame
}

type imageStream struct {
	mu        sync.Mutex
	frame     *compositor.Frame
	delivered bool
}

func (s *imageStream) NextFrame(time.Duration) (*compositor.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delivered || s.frame == nil {
		return nil, ErrEndOfStream
	}
	s.delivered = true
	return s.frame, nil
}

func (s *imageStream) Seek() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = false
	return nil
}

func (s *imageStream) Pause() error { return nil }

func (s *imageStream) Resume() error { return nil }

func (s *imageStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = nil
}
