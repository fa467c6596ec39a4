package decode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matjam/vidpaper/internal/compositor"
	"github.com/matjam/vidpaper/internal/types"
)

// State is the pipeline lifecycle.
type State int32

const (
	StateIdle State = iota
	StateNegotiating
	StateStreaming
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StateStreaming:
		return "streaming"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const (
	// negotiationTimeout bounds each candidate's attempt to produce a
	// first frame. A hung probe is abandoned, not waited on.
	negotiationTimeout = 2 * time.Second

	// stallTimeouts is how many consecutive empty pulls count as a
	// mid-stream backend failure rather than a slow source.
	stallTimeouts = 120
)

// Option tweaks pipeline construction.
type Option func(*Pipeline)

// StartPaused makes the pipeline hold its first frame without advancing,
// matching an occluded output.
func StartPaused() Option {
	return func(p *Pipeline) { p.startPaused = true }
}

type ctrlKind int

const (
	ctrlPause ctrlKind = iota
	ctrlResume
)

// Pipeline pulls frames from a negotiated backend at the target rate.
// One instance feeds one output; replacement is wholesale, never in-place
// mutation.
type Pipeline struct {
	req         Request
	backends    []Backend
	startPaused bool

	negTimeout time.Duration

	frames chan *compositor.Frame
	ctrl   chan ctrlKind
	stop   chan struct{}
	done   chan struct{}

	stopOnce sync.Once
	state    atomic.Int32

	mu      sync.Mutex
	pos     time.Duration
	backend string
}

// NewPipeline constructs an idle pipeline. Run does the work.
func NewPipeline(req Request, backends []Backend, opts ...Option) *Pipeline {
	p := &Pipeline{
		req:        req,
		backends:   backends,
		negTimeout: negotiationTimeout,
		frames:     make(chan *compositor.Frame, 1),
		ctrl:       make(chan ctrlKind, 4),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Frames delivers decoded frames, most-recent-wins: the channel never
// holds more than one frame, and a slow consumer sees the newest frame
// rather than a backlog. Closed when the pipeline exits.
func (p *Pipeline) Frames() <-chan *compositor.Frame { return p.frames }

// State reports the current lifecycle state.
func (p *Pipeline) State() State { return State(p.state.Load()) }

// Backend names the negotiated backend, empty before negotiation
// succeeds.
func (p *Pipeline) Backend() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backend
}

// Position is the playback position, advanced per delivered frame and
// held across pause/resume.
func (p *Pipeline) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// Pause stops decode work; the last frame stays on screen. Idempotent.
func (p *Pipeline) Pause() { p.sendCtrl(ctrlPause) }

// Resume continues from the held position.
func (p *Pipeline) Resume() { p.sendCtrl(ctrlResume) }

func (p *Pipeline) sendCtrl(k ctrlKind) {
	select {
	case p.ctrl <- k:
	case <-p.done:
	}
}

// Stop tears the pipeline down and waits (bounded) for the worker to
// release its backend.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		log.Warnf("decode: pipeline for %s did not stop in time", p.req.Source.Path)
	}
}

// Run negotiates a backend and streams until stopped. It blocks and is
// meant for a worker goroutine; the engine learns the outcome from the
// returned error and from Frames. Returns ErrNoBackendAvailable when every
// candidate is exhausted, nil on a clean stop.
func (p *Pipeline) Run(ctx context.Context) error {
	defer close(p.done)
	defer close(p.frames)
	defer p.state.Store(int32(StateStopped))

	p.state.Store(int32(StateNegotiating))
	stream, first, idx, err := p.negotiate(ctx, 0)
	if err != nil {
		p.state.Store(int32(StateIdle))
		return err
	}
	defer func() { stream.Close() }()

	paused := p.startPaused
	if paused {
		if err := stream.Pause(); err != nil {
			log.Warnf("decode: %v", err)
		}
		p.state.Store(int32(StatePaused))
	} else {
		p.state.Store(int32(StateStreaming))
	}
	p.push(first)

	// Stills hold their single frame; no decode work remains.
	if p.req.Source.Kind == types.MediaImage {
		stream.Close()
		return p.holdStill(ctx)
	}

	interval := time.Second / time.Duration(p.req.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	renegotiated := false
	stalls := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.stop:
			return nil

		case k := <-p.ctrl:
			paused = p.applyCtrl(k, paused, stream)

		case <-ticker.C:
			if paused {
				continue
			}

			frame, err := stream.NextFrame(interval)
			switch {
			case err == nil:
				stalls = 0
				p.advance(interval)
				p.push(frame)

			case errors.Is(err, ErrEndOfStream):
				// Loop. The last pushed frame stays up through the decode
				// warm-up, so no blank frame is ever visible.
				if err := stream.Seek(); err != nil {
					log.Warnf("decode: loop seek: %v", err)
				}
				p.rewind()

			case errors.Is(err, ErrDecodeTimeout):
				stalls++
				if stalls < stallTimeouts {
					continue // hold the previous frame
				}
				fallthrough

			default:
				if renegotiated {
					p.state.Store(int32(StateIdle))
					return ErrNoBackendAvailable
				}
				renegotiated = true
				stalls = 0
				log.Warnf("decode: %s backend failed mid-stream (%v), renegotiating", p.Backend(), err)
				stream.Close()

				next, nf, nidx, nerr := p.negotiate(ctx, idx+1)
				if nerr != nil {
					p.state.Store(int32(StateIdle))
					return ErrNoBackendAvailable
				}
				stream, idx = next, nidx
				p.rewind()
				if paused {
					stream.Pause()
				}
				p.push(nf)
			}
		}
	}
}

// holdStill keeps a still image's pipeline alive for pause/resume and
// teardown without any decode work.
func (p *Pipeline) holdStill(ctx context.Context) error {
	paused := p.startPaused
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.stop:
			return nil
		case k := <-p.ctrl:
			paused = p.applyCtrl(k, paused, nil)
		}
	}
}

func (p *Pipeline) applyCtrl(k ctrlKind, paused bool, stream Stream) bool {
	switch k {
	case ctrlPause:
		if !paused {
			if stream != nil {
				if err := stream.Pause(); err != nil {
					log.Warnf("decode: %v", err)
				}
			}
			p.state.Store(int32(StatePaused))
		}
		return true
	case ctrlResume:
		if paused {
			if stream != nil {
				if err := stream.Resume(); err != nil {
					log.Warnf("decode: %v", err)
				}
			}
			p.state.Store(int32(StateStreaming))
		}
		return false
	}
	return paused
}

// negotiate tries each candidate from index from, bounded per attempt.
// An attempt that outlives its deadline is abandoned; its stream is closed
// whenever it finally finishes.
func (p *Pipeline) negotiate(ctx context.Context, from int) (Stream, *compositor.Frame, int, error) {
	type attempt struct {
		stream Stream
		frame  *compositor.Frame
		err    error
	}

	for i := from; i < len(p.backends); i++ {
		backend := p.backends[i]
		if !backend.Probe(p.req.Source) {
			continue
		}

		ch := make(chan attempt, 1)
		go func() {
			stream, err := backend.Open(p.req)
			if err != nil {
				ch <- attempt{err: err}
				return
			}
			frame, err := stream.NextFrame(p.negTimeout)
			if err != nil {
				stream.Close()
				ch <- attempt{err: err}
				return
			}
			ch <- attempt{stream: stream, frame: frame}
		}()

		timer := time.NewTimer(p.negTimeout)
		select {
		case a := <-ch:
			timer.Stop()
			if a.err != nil {
				log.Warnf("decode: backend %s rejected %s: %v",
					backend.Name(), p.req.Source.Path, a.err)
				continue
			}
			p.mu.Lock()
			p.backend = backend.Name()
			p.mu.Unlock()
			log.Infof("decode: %s playing %s", backend.Name(), p.req.Source.Path)
			return a.stream, a.frame, i, nil

		case <-timer.C:
			log.Warnf("decode: backend %s timed out probing %s",
				backend.Name(), p.req.Source.Path)
			go func() {
				if a := <-ch; a.stream != nil {
					a.stream.Close()
				}
			}()

		case <-p.stop:
			timer.Stop()
			go func() {
				if a := <-ch; a.stream != nil {
					a.stream.Close()
				}
			}()
			return nil, nil, 0, context.Canceled
		case <-ctx.Done():
			timer.Stop()
			go func() {
				if a := <-ch; a.stream != nil {
					a.stream.Close()
				}
			}()
			return nil, nil, 0, ctx.Err()
		}
	}

	return nil, nil, 0, ErrNoBackendAvailable
}

// push delivers most-recent-wins: a frame the consumer has not collected
// yet is replaced, never queued behind.
func (p *Pipeline) push(frame *compositor.Frame) {
	select {
	case p.frames <- frame:
		return
	default:
	}
	select {
	case <-p.frames:
	default:
	}
	select {
	case p.frames <- frame:
	default:
	}
}

func (p *Pipeline) advance(by time.Duration) {
	p.mu.Lock()
	p.pos += by
	p.mu.Unlock()
}

func (p *Pipeline) rewind() {
	p.mu.Lock()
	p.pos = 0
	p.mu.Unlock()
}
