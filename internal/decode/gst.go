package decode

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/matjam/vidpaper/internal/compositor"
	"github.com/matjam/vidpaper/internal/media"
	"github.com/matjam/vidpaper/internal/types"
)

var gstOnce sync.Once

func gstInit() {
	gstOnce.Do(func() { gst.Init(nil) })
}

// h264Containers restricts the hardware candidates to sources their
// qtdemux/h264parse chain can demux. The software candidate uses decodebin
// and takes anything.
var h264Containers = map[string]bool{".mp4": true, ".mov": true}

type launchFunc func(req Request) string

func escapeLocation(path string) string {
	path = strings.ReplaceAll(path, `\`, `\\`)
	return strings.ReplaceAll(path, `"`, `\"`)
}

// addBorders letterboxes instead of distorting when the caps force an
// exact output size.
func addBorders(mode types.FitMode) string {
	switch mode {
	case types.FitFit, types.FitContain:
		return " add-borders=true"
	default:
		return ""
	}
}

const sinkCaps = "video/x-raw,format=BGRx,width=%d,height=%d,framerate=%d/1 ! " +
	"appsink name=sink sync=true max-buffers=1 drop=true"

func nvdecLaunch(req Request) string {
	return fmt.Sprintf(
		"filesrc location=\"%s\" ! qtdemux ! h264parse ! nvh264dec ! "+
			"videoconvert ! videoscale%s ! videorate ! "+sinkCaps,
		escapeLocation(req.Source.Path), addBorders(req.Fit),
		req.Width, req.Height, req.FPS)
}

func vaapiLaunch(req Request) string {
	return fmt.Sprintf(
		"filesrc location=\"%s\" ! qtdemux ! h264parse ! vaapih264dec ! "+
			"vaapipostproc ! "+sinkCaps,
		escapeLocation(req.Source.Path),
		req.Width, req.Height, req.FPS)
}

func vulkanLaunch(req Request) string {
	return fmt.Sprintf(
		"filesrc location=\"%s\" ! qtdemux ! h264parse ! vulkanh264dec ! "+
			"videoconvert ! videoscale%s ! videorate ! "+sinkCaps,
		escapeLocation(req.Source.Path), addBorders(req.Fit),
		req.Width, req.Height, req.FPS)
}

func softwareLaunch(req Request) string {
	return fmt.Sprintf(
		"filesrc location=\"%s\" ! decodebin ! "+
			"videoconvert ! videoscale%s ! videorate ! "+sinkCaps,
		escapeLocation(req.Source.Path), addBorders(req.Fit),
		req.Width, req.Height, req.FPS)
}

type gstBackend struct {
	name       string
	launch     launchFunc
	containers map[string]bool // nil accepts every video container
}

func newGstBackend(name string, launch launchFunc, containers map[string]bool) *gstBackend {
	return &gstBackend{name: name, launch: launch, containers: containers}
}

func (b *gstBackend) Name() string { return b.name }

func (b *gstBackend) Probe(src media.Source) bool {
	if src.Kind != types.MediaVideo {
		return false
	}
	if b.containers == nil {
		return true
	}
	return b.containers[strings.ToLower(filepath.Ext(src.Path))]
}

func (b *gstBackend) Open(req Request) (Stream, error) {
	gstInit()

	launch := b.launch(req)
	log.Debugf("decode: %s pipeline: %s", b.name, launch)

	pipeline, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return nil, fmt.Errorf("%s: building pipeline: %w", b.name, err)
	}

	sinkElement, err := pipeline.GetElementByName("sink")
	if err != nil {
		pipeline.Unref()
		return nil, fmt.Errorf("%s: missing appsink: %w", b.name, err)
	}
	sink := app.SinkFromElement(sinkElement)

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		pipeline.Unref()
		return nil, fmt.Errorf("%s: starting pipeline: %w", b.name, err)
	}

	return &gstStream{
		backend:  b.name,
		pipeline: pipeline,
		sink:     sink,
		width:    req.Width,
		height:   req.Height,
	}, nil
}

type gstStream struct {
	backend  string
	pipeline *gst.Pipeline
	sink     *app.Sink
	width    int
	height   int

	mu     sync.Mutex
	closed bool
}

func (s *gstStream) NextFrame(timeout time.Duration) (*compositor.Frame, error) {
	sample := s.sink.TryPullSample(timeout)
	if sample == nil {
		if s.sink.IsEOS() {
			return nil, ErrEndOfStream
		}
		return nil, ErrDecodeTimeout
	}
	return s.frameFromSample(sample)
}

func (s *gstStream) frameFromSample(sample *gst.Sample) (*compositor.Frame, error) {
	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil, fmt.Errorf("%s: sample missing buffer", s.backend)
	}

	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return nil, fmt.Errorf("%s: mapping sample buffer", s.backend)
	}
	defer buffer.Unmap()

	frame := compositor.NewFrame(s.width, s.height)
	data := mapInfo.Bytes()

	// The caps pin the sample to WxH BGRx, but hardware converters may pad
	// rows. Copy row by row against the padded stride.
	rowBytes := s.width * 4
	if len(data) < rowBytes*s.height {
		return nil, fmt.Errorf("%s: short sample: %d bytes for %dx%d",
			s.backend, len(data), s.width, s.height)
	}
	stride := len(data) / s.height
	for row := 0; row < s.height; row++ {
		copy(frame.Pix[row*rowBytes:(row+1)*rowBytes], data[row*stride:row*stride+rowBytes])
	}

	return frame, nil
}

func (s *gstStream) Seek() error {
	ok := s.pipeline.Seek(1.0, gst.FormatTime,
		gst.SeekFlagFlush|gst.SeekFlagKeyUnit,
		gst.SeekTypeSet, 0, gst.SeekTypeNone, -1)
	if !ok {
		return fmt.Errorf("%s: seek to start failed", s.backend)
	}
	return nil
}

func (s *gstStream) Pause() error {
	if err := s.pipeline.SetState(gst.StatePaused); err != nil {
		return fmt.Errorf("%s: pausing: %w", s.backend, err)
	}
	return nil
}

func (s *gstStream) Resume() error {
	if err := s.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("%s: resuming: %w", s.backend, err)
	}
	return nil
}

func (s *gstStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.pipeline.SetState(gst.StateNull)
	s.pipeline.Unref()
}
