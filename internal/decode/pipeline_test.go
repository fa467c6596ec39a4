package decode

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matjam/vidpaper/internal/compositor"
	"github.com/matjam/vidpaper/internal/media"
	"github.com/matjam/vidpaper/internal/types"
)

type fakeStream struct {
	mu       sync.Mutex
	served   int
	eosAfter int // frames before EOS; 0 means never
	failWith error
	failAt   int
	paused   bool
	resumed  int
	closed   bool
	hang     bool
}

func (s *fakeStream) NextFrame(timeout time.Duration) (*compositor.Frame, error) {
	if s.hang {
		time.Sleep(timeout)
		return nil, ErrDecodeTimeout
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil && s.served >= s.failAt {
		return nil, s.failWith
	}
	if s.eosAfter > 0 && s.served >= s.eosAfter {
		return nil, ErrEndOfStream
	}
	s.served++
	return compositor.NewFrame(2, 2), nil
}

func (s *fakeStream) Seek() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.served = 0
	return nil
}

func (s *fakeStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	return nil
}

func (s *fakeStream) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.resumed++
	return nil
}

func (s *fakeStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

type fakeBackend struct {
	name    string
	accepts bool
	openErr error
	stream  *fakeStream

	mu    sync.Mutex
	opens int
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Probe(_ media.Source) bool { return b.accepts }

func (b *fakeBackend) Open(_ Request) (Stream, error) {
	b.mu.Lock()
	b.opens++
	b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	if b.stream == nil {
		b.stream = &fakeStream{}
	}
	return b.stream, nil
}

func videoRequest() Request {
	return Request{
		Source: media.Source{Path: "/media/loop.mp4", Kind: types.MediaVideo},
		Width:  2, Height: 2,
		FPS: 100,
		Fit: types.FitCover,
	}
}

func startPipeline(t *testing.T, p *Pipeline) <-chan error {
	t.Helper()
	p.negTimeout = 200 * time.Millisecond
	errc := make(chan error, 1)
	go func() { errc <- p.Run(context.Background()) }()
	t.Cleanup(p.Stop)
	return errc
}

func waitFrame(t *testing.T, p *Pipeline) *compositor.Frame {
	t.Helper()
	select {
	case f := <-p.Frames():
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return nil
	}
}

func waitState(t *testing.T, p *Pipeline, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", p.State(), want)
}

func TestBackendPriorityOrder(t *testing.T) {
	want := []string{"nvdec", "vaapi", "vulkan", "software", "image"}
	backends := Backends()
	if len(backends) != len(want) {
		t.Fatalf("got %d backends, want %d", len(backends), len(want))
	}
	for i, b := range backends {
		if b.Name() != want[i] {
			t.Fatalf("backend[%d] = %q, want %q", i, b.Name(), want[i])
		}
	}
}

func TestNegotiationFallsBackInOrder(t *testing.T) {
	broken := &fakeBackend{name: "hw", accepts: true, openErr: errors.New("no device")}
	good := &fakeBackend{name: "sw", accepts: true}

	p := NewPipeline(videoRequest(), []Backend{broken, good})
	startPipeline(t, p)

	waitFrame(t, p)
	if p.Backend() != "sw" {
		t.Fatalf("backend = %q, want sw", p.Backend())
	}
	if broken.opens != 1 {
		t.Errorf("broken backend opened %d times, want 1", broken.opens)
	}
}

func TestNegotiationSkipsHungBackend(t *testing.T) {
	hung := &fakeBackend{name: "hung", accepts: true, stream: &fakeStream{hang: true}}
	good := &fakeBackend{name: "sw", accepts: true}

	p := NewPipeline(videoRequest(), []Backend{hung, good})
	startPipeline(t, p)

	waitFrame(t, p)
	if p.Backend() != "sw" {
		t.Fatalf("backend = %q, want sw", p.Backend())
	}
}

func TestAllBackendsExhausted(t *testing.T) {
	rejecting := &fakeBackend{name: "hw", accepts: false}
	broken := &fakeBackend{name: "sw", accepts: true, openErr: errors.New("boom")}

	p := NewPipeline(videoRequest(), []Backend{rejecting, broken})
	errc := startPipeline(t, p)

	select {
	case err := <-errc:
		if !errors.Is(err, ErrNoBackendAvailable) {
			t.Fatalf("Run returned %v, want ErrNoBackendAvailable", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if rejecting.opens != 0 {
		t.Errorf("rejecting backend was opened")
	}
}

func TestVideoLoopsAtEndOfStream(t *testing.T) {
	stream := &fakeStream{eosAfter: 3}
	backend := &fakeBackend{name: "sw", accepts: true, stream: stream}

	p := NewPipeline(videoRequest(), []Backend{backend})
	startPipeline(t, p)

	// Collect enough frames to cross the EOS boundary at least twice.
	for i := 0; i < 8; i++ {
		waitFrame(t, p)
	}
	if backend.opens != 1 {
		t.Fatalf("source reopened %d times; looping must seek, not reopen", backend.opens)
	}
}

func TestPauseHoldsPositionAndResumeContinues(t *testing.T) {
	backend := &fakeBackend{name: "sw", accepts: true}

	p := NewPipeline(videoRequest(), []Backend{backend})
	startPipeline(t, p)

	for i := 0; i < 3; i++ {
		waitFrame(t, p)
	}
	p.Pause()
	waitState(t, p, StatePaused)
	held := p.Position()
	if held == 0 {
		t.Fatal("position should have advanced before pause")
	}

	// No frames while paused (drain the at-most-one buffered frame first).
	select {
	case <-p.Frames():
	default:
	}
	select {
	case <-p.Frames():
		t.Fatal("received a frame while paused")
	case <-time.After(100 * time.Millisecond):
	}

	p.Resume()
	waitState(t, p, StateStreaming)
	waitFrame(t, p)
	if pos := p.Position(); pos < held {
		t.Fatalf("resumed at %v, before pause position %v", pos, held)
	}
	if backend.opens != 1 {
		t.Fatalf("resume reopened the source (%d opens)", backend.opens)
	}
}

func TestMidStreamFailureRenegotiatesOnce(t *testing.T) {
	dying := &fakeStream{failWith: errors.New("decode error"), failAt: 2}
	first := &fakeBackend{name: "hw", accepts: true, stream: dying}
	second := &fakeBackend{name: "sw", accepts: true}

	p := NewPipeline(videoRequest(), []Backend{first, second})
	startPipeline(t, p)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && p.Backend() != "sw" {
		select {
		case <-p.Frames():
		case <-time.After(10 * time.Millisecond):
		}
	}
	if p.Backend() != "sw" {
		t.Fatalf("backend = %q, want sw after renegotiation", p.Backend())
	}
	if !dying.closed {
		t.Error("failed stream was not closed")
	}
}

func TestSecondFailureExhaustsPipeline(t *testing.T) {
	a := &fakeStream{failWith: errors.New("decode error"), failAt: 1}
	b := &fakeStream{failWith: errors.New("decode error"), failAt: 1}
	p := NewPipeline(videoRequest(), []Backend{
		&fakeBackend{name: "hw", accepts: true, stream: a},
		&fakeBackend{name: "sw", accepts: true, stream: b},
	})
	errc := startPipeline(t, p)

	select {
	case err := <-errc:
		if !errors.Is(err, ErrNoBackendAvailable) {
			t.Fatalf("Run returned %v, want ErrNoBackendAvailable", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("pipeline kept retrying; renegotiation must happen once")
	}
}

func TestStartPausedDeliversFirstFrameOnly(t *testing.T) {
	stream := &fakeStream{}
	backend := &fakeBackend{name: "sw", accepts: true, stream: stream}

	p := NewPipeline(videoRequest(), []Backend{backend}, StartPaused())
	startPipeline(t, p)

	waitFrame(t, p)
	waitState(t, p, StatePaused)
	if !stream.paused {
		t.Error("backend stream was not paused")
	}

	select {
	case <-p.Frames():
		t.Fatal("frame advanced while start-paused")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestImageHoldsSingleFrame(t *testing.T) {
	req := videoRequest()
	req.Source = media.Source{Path: "/media/still.png", Kind: types.MediaImage}

	stream := &fakeStream{}
	backend := &fakeBackend{name: "image", accepts: true, stream: stream}

	p := NewPipeline(req, []Backend{backend})
	startPipeline(t, p)

	waitFrame(t, p)
	select {
	case <-p.Frames():
		t.Fatal("still image produced a second frame")
	case <-time.After(100 * time.Millisecond):
	}
	if !stream.closed {
		t.Error("image stream should be closed once the frame is held")
	}
}

func TestPushMostRecentWins(t *testing.T) {
	p := NewPipeline(videoRequest(), nil)

	a := compositor.NewFrame(1, 1)
	b := compositor.NewFrame(1, 1)
	c := compositor.NewFrame(1, 1)
	p.push(a)
	p.push(b)
	p.push(c)

	got := <-p.frames
	if got != c {
		t.Fatal("consumer should see the newest frame, not a backlog")
	}
	select {
	case <-p.frames:
		t.Fatal("more than one frame buffered")
	default:
	}
}

func TestStopIsIdempotentAndClosesFrames(t *testing.T) {
	backend := &fakeBackend{name: "sw", accepts: true}
	p := NewPipeline(videoRequest(), []Backend{backend})
	errc := startPipeline(t, p)

	waitFrame(t, p)
	p.Stop()
	p.Stop()

	if err := <-errc; err != nil {
		t.Fatalf("clean stop returned %v", err)
	}
	waitState(t, p, StateStopped)
	for range p.Frames() {
		// drain until closed
	}
}
