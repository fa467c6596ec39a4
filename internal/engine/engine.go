// Package engine owns all per-output state: one surface, at most one
// decode pipeline and one rotation timer per output. Every mutation runs
// on the single event loop; compositor callbacks, timers, IPC handlers and
// pipeline workers only ever enqueue events.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matjam/vidpaper/internal/compositor"
	"github.com/matjam/vidpaper/internal/config"
	"github.com/matjam/vidpaper/internal/decode"
	"github.com/matjam/vidpaper/internal/media"
)

// ErrStopped is returned by Do once the engine loop has exited.
var ErrStopped = errors.New("engine stopped")

type event interface{}

type evCompositor struct{ ev compositor.Event }

type evReload struct{ snap *config.Snapshot }

type evRotate struct{ name string }

type evPipelineDone struct {
	name string
	gen  uint64
	err  error
}

type evCommand struct {
	cmd   Command
	reply chan cmdReply
}

type frameMsg struct {
	name  string
	gen   uint64
	frame *compositor.Frame
}

// outputState is everything the engine tracks for one managed output.
// Only the event loop touches it.
type outputState struct {
	output   compositor.Output
	surface  compositor.Surface
	assign   config.Assignment
	pipeline *decode.Pipeline
	gen      uint64
	rotation *time.Timer
	occluded bool
	current  string // media path feeding the pipeline
	last     *compositor.Frame
}

// Engine is the single mutator of all per-output state.
type Engine struct {
	client   compositor.Client
	backends []decode.Backend

	events chan event
	frames chan frameMsg

	// loop-owned state below; no other goroutine reads or writes it
	snap    *config.Snapshot
	outputs map[string]*outputState
	known   map[string]compositor.Output
	gen     uint64

	wg       sync.WaitGroup
	done     chan struct{}
	doneOnce sync.Once
	started  time.Time
}

// New builds an engine over a connected compositor client and a resolved
// configuration snapshot. Run does the rest.
func New(client compositor.Client, snap *config.Snapshot, backends []decode.Backend) *Engine {
	return &Engine{
		client:   client,
		backends: backends,
		snap:     snap,
		events:   make(chan event, 64),
		frames:   make(chan frameMsg, 64),
		outputs:  make(map[string]*outputState),
		known:    make(map[string]compositor.Output),
		done:     make(chan struct{}),
	}
}

// Reload hands the loop a fresh configuration snapshot. Safe from any
// goroutine.
func (e *Engine) Reload(snap *config.Snapshot) {
	e.post(evReload{snap: snap})
}

func (e *Engine) post(ev event) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

// Run processes events until ctx is canceled or a stop command arrives.
// It owns the output table for its whole lifetime; nothing else mutates
// engine state.
func (e *Engine) Run(ctx context.Context) error {
	defer e.shutdown()
	e.started = time.Now()

	// The compositor client produces events on its own goroutine; fold
	// them into the single ordered stream.
	go func() {
		for ev := range e.client.Events() {
			e.post(evCompositor{ev: ev})
		}
	}()

	for _, out := range e.client.Outputs() {
		e.known[out.Name] = out
		if e.snap.Manages(out.Name) {
			e.addOutput(ctx, out)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case fm := <-e.frames:
			e.handleFrame(fm)

		case ev := <-e.events:
			switch ev := ev.(type) {
			case evCompositor:
				e.handleCompositor(ctx, ev.ev)
			case evReload:
				e.handleReload(ctx, ev.snap)
			case evRotate:
				e.handleRotate(ctx, ev.name)
			case evPipelineDone:
				e.handlePipelineDone(ev)
			case evCommand:
				stop := e.handleCommand(ctx, ev)
				if stop {
					return nil
				}
			}
		}
	}
}

func (e *Engine) handleCompositor(ctx context.Context, ev compositor.Event) {
	switch ev.Kind {
	case compositor.OutputAdded:
		e.known[ev.Output.Name] = ev.Output
		if e.snap.Manages(ev.Output.Name) {
			e.addOutput(ctx, ev.Output)
		}
	case compositor.OutputRemoved:
		delete(e.known, ev.Name)
		e.removeOutput(ev.Name)
	case compositor.VisibilityChanged:
		e.setOcclusion(ev.Name, ev.Occluded)
	}
}

// addOutput resolves the output's assignment and brings up its surface,
// pipeline and rotation timer. Idempotent: a duplicate add is ignored.
func (e *Engine) addOutput(ctx context.Context, out compositor.Output) {
	if _, exists := e.outputs[out.Name]; exists {
		return
	}

	surface, err := e.client.CreateSurface(out.Name)
	if err != nil {
		log.Errorf("engine: creating surface for %s: %v", out.Name, err)
		return
	}

	os := &outputState{
		output:  out,
		surface: surface,
		assign:  e.snap.AssignmentFor(out.Name),
	}
	e.outputs[out.Name] = os
	log.Infof("engine: managing output %s (%dx%d)", out.Name, out.Width, out.Height)

	src, err := e.initialMedia(os)
	if err != nil {
		log.Errorf("engine: no media for %s: %v", out.Name, err)
	} else {
		e.startPipeline(ctx, os, src)
	}
	e.scheduleRotation(os)
}

func (e *Engine) initialMedia(os *outputState) (media.Source, error) {
	if os.assign.Fixed() {
		return media.Resolve(os.assign.Media)
	}
	return media.PickRandom(os.assign.Dir, "")
}

// reloadMedia chooses what an output shows after its assignment changed.
// When only decode parameters changed (fit, fps) the current media is
// reopened rather than swapped; when the directory changed the old pick is
// excluded from the draw.
func (e *Engine) reloadMedia(os *outputState, prev config.Assignment) (media.Source, error) {
	if os.assign.Fixed() {
		return media.Resolve(os.assign.Media)
	}
	if os.assign.Dir == prev.Dir && os.current != "" {
		if src, err := media.Resolve(os.current); err == nil {
			return src, nil
		}
		// The file went away; fall through to a fresh pick.
	}
	return media.PickRandom(os.assign.Dir, os.current)
}

// removeOutput tears down an output's pipeline, timer and surface.
// Idempotent: removing an unknown output is a no-op.
func (e *Engine) removeOutput(name string) {
	os, ok := e.outputs[name]
	if !ok {
		return
	}
	delete(e.outputs, name)

	if os.rotation != nil {
		os.rotation.Stop()
	}
	e.stopPipeline(os)
	os.surface.Destroy()
	log.Infof("engine: released output %s", name)
}

func (e *Engine) setOcclusion(name string, occluded bool) {
	os, ok := e.outputs[name]
	if !ok || os.occluded == occluded {
		return
	}
	os.occluded = occluded

	if os.pipeline != nil {
		if occluded {
			os.pipeline.Pause()
		} else {
			os.pipeline.Resume()
		}
	}
	if !occluded && os.last != nil {
		e.submit(os, os.last)
	}
	log.Debugf("engine: output %s occluded=%v", name, occluded)
}

// startPipeline spins up a new pipeline for src on two workers: one runs
// the decode loop, one forwards frames into the engine's stream. The
// generation token fences off frames from any previous pipeline.
func (e *Engine) startPipeline(ctx context.Context, os *outputState, src media.Source) {
	e.gen++
	gen := e.gen
	name := os.output.Name

	var opts []decode.Option
	if os.occluded {
		opts = append(opts, decode.StartPaused())
	}

	p := decode.NewPipeline(decode.Request{
		Source: src,
		Width:  os.output.Width,
		Height: os.output.Height,
		FPS:    os.assign.FPS,
		Fit:    os.assign.Fit,
	}, e.backends, opts...)

	os.pipeline = p
	os.gen = gen
	os.current = src.Path

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		err := p.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			e.post(evPipelineDone{name: name, gen: gen, err: err})
		}
	}()
	go func() {
		defer e.wg.Done()
		for frame := range p.Frames() {
			select {
			case e.frames <- frameMsg{name: name, gen: gen, frame: frame}:
			case <-e.done:
				return
			}
		}
	}()
}

// stopPipeline blocks until the old pipeline has released its backend, so
// a replacement never overlaps with it.
func (e *Engine) stopPipeline(os *outputState) {
	if os.pipeline == nil {
		return
	}
	os.pipeline.Stop()
	os.pipeline = nil
}

// replacePipeline swaps an output's pipeline wholesale. The old one is
// fully torn down before the new one starts producing.
func (e *Engine) replacePipeline(ctx context.Context, os *outputState, src media.Source) {
	e.stopPipeline(os)
	e.startPipeline(ctx, os, src)
}

func (e *Engine) handleFrame(fm frameMsg) {
	os, ok := e.outputs[fm.name]
	if !ok || fm.gen != os.gen {
		// Stale frame from a replaced pipeline or a removed output.
		return
	}
	os.last = fm.frame
	if os.occluded {
		return
	}
	e.submit(os, fm.frame)
}

func (e *Engine) submit(os *outputState, frame *compositor.Frame) {
	if err := os.surface.Submit(frame); err != nil {
		if errors.Is(err, compositor.ErrSurfaceGone) {
			log.Warnf("engine: surface for %s gone, releasing output", os.output.Name)
			e.removeOutput(os.output.Name)
			return
		}
		log.Errorf("engine: submitting frame to %s: %v", os.output.Name, err)
	}
}

func (e *Engine) handlePipelineDone(ev evPipelineDone) {
	os, ok := e.outputs[ev.name]
	if !ok || ev.gen != os.gen {
		return
	}
	// The output keeps showing its last good frame; nothing to repair
	// here. Rotation or a command will try different media later.
	if errors.Is(ev.err, decode.ErrNoBackendAvailable) {
		log.Errorf("engine: no decode backend for %s on %s, holding last frame",
			os.current, ev.name)
		return
	}
	log.Errorf("engine: pipeline for %s failed: %v", ev.name, ev.err)
}

// handleReload diffs the new snapshot against the current one per output.
// Untouched outputs keep their pipeline; only real changes cause a visible
// swap.
func (e *Engine) handleReload(ctx context.Context, snap *config.Snapshot) {
	old := e.snap
	e.snap = snap
	log.Info("engine: configuration reloaded")

	for name, os := range e.outputs {
		if !snap.Manages(name) {
			e.removeOutput(name)
			continue
		}

		prev := os.assign
		next := snap.AssignmentFor(name)
		os.assign = next

		mediaChanged := prev.Media != next.Media || prev.Dir != next.Dir ||
			prev.Fit != next.Fit || prev.FPS != next.FPS
		if mediaChanged {
			src, err := e.reloadMedia(os, prev)
			if err != nil {
				log.Errorf("engine: no media for %s after reload: %v", name, err)
				e.stopPipeline(os)
			} else {
				e.replacePipeline(ctx, os, src)
			}
		}
		if prev.Every != next.Every || mediaChanged {
			e.scheduleRotation(os)
		}
	}

	// Outputs the old snapshot ignored may be managed now.
	for name, out := range e.known {
		if _, exists := e.outputs[name]; !exists && snap.Manages(name) && !old.Manages(name) {
			e.addOutput(ctx, out)
		}
	}
}

// shutdown cancels timers, tears down every pipeline and surface, and
// waits (bounded) for workers to release their decode backends.
func (e *Engine) shutdown() {
	e.doneOnce.Do(func() { close(e.done) })

	for name := range e.outputs {
		e.removeOutput(name)
	}
	e.client.Close()

	finished := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		log.Warn("engine: workers did not finish before shutdown deadline")
	}
	log.Info("engine: stopped")
}
