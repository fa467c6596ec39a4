package engine

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matjam/vidpaper/internal/media"
)

// scheduleRotation arms (or re-arms) the output's rotation timer. Outputs
// pinned to a single file never rotate. Intervals get a ±10% jitter so
// multiple outputs drift apart instead of swapping in lockstep.
func (e *Engine) scheduleRotation(os *outputState) {
	if os.rotation != nil {
		os.rotation.Stop()
		os.rotation = nil
	}
	if os.assign.Fixed() || os.assign.Every <= 0 {
		return
	}

	name := os.output.Name
	os.rotation = time.AfterFunc(jitter(os.assign.Every), func() {
		e.post(evRotate{name: name})
	})
}

func jitter(every time.Duration) time.Duration {
	spread := int64(every / 5)
	if spread <= 0 {
		return every
	}
	return every - every/10 + time.Duration(rand.Int64N(spread))
}

// handleRotate swaps in a fresh random pick, excluding whatever is on
// screen now. Fires even while the output is occluded: the replacement
// pipeline simply starts paused and holds its first frame.
func (e *Engine) handleRotate(ctx context.Context, name string) {
	os, ok := e.outputs[name]
	if !ok {
		return
	}
	defer e.scheduleRotation(os)

	if os.assign.Fixed() {
		return
	}
	src, err := media.PickRandom(os.assign.Dir, os.current)
	if err != nil {
		log.Errorf("engine: rotation for %s: %v", name, err)
		return
	}
	log.Infof("engine: rotating %s to %s", name, src.Path)
	e.replacePipeline(ctx, os, src)
}
