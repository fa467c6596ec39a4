package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matjam/vidpaper/internal/media"
	"github.com/matjam/vidpaper/internal/types"
)

// CommandType names an operation the engine accepts over IPC.
type CommandType string

const (
	CommandSet    CommandType = "set"
	CommandNext   CommandType = "next"
	CommandRandom CommandType = "random"
	CommandList   CommandType = "list"
	CommandStatus CommandType = "status"
	CommandStop   CommandType = "stop"
)

// Command is a request posted into the event loop. Output selects a single
// output by name; empty means every managed output.
type Command struct {
	Type   CommandType `json:"type"`
	Output string      `json:"output,omitempty"`
	Path   string      `json:"path,omitempty"`
	Dir    string      `json:"dir,omitempty"`
	FPS    int         `json:"fps,omitempty"`
	Fit    string      `json:"fit,omitempty"`
}

// OutputStatus is one row of a status reply.
type OutputStatus struct {
	Name     string `json:"name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Media    string `json:"media,omitempty"`
	Backend  string `json:"backend,omitempty"`
	State    string `json:"state"`
	Occluded bool   `json:"occluded"`
}

// Result carries whatever the command produced. List fills Media, status
// fills Outputs; mutating commands return an empty Result on success.
type Result struct {
	Uptime  string              `json:"uptime,omitempty"`
	Outputs []OutputStatus      `json:"outputs,omitempty"`
	Media   map[string][]string `json:"media,omitempty"`
}

type cmdReply struct {
	result *Result
	err    error
}

// ErrUnknownOutput is returned when a command names an output the engine
// is not managing.
var ErrUnknownOutput = errors.New("unknown output")

// Do posts cmd into the event loop and waits for its reply. Safe to call
// from any goroutine, including while the loop is shutting down.
func (e *Engine) Do(ctx context.Context, cmd Command) (*Result, error) {
	reply := make(chan cmdReply, 1)
	select {
	case e.events <- evCommand{cmd: cmd, reply: reply}:
	case <-e.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.result, r.err
	case <-e.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handleCommand runs on the event loop. Returns true when the loop should
// exit (stop command).
func (e *Engine) handleCommand(ctx context.Context, ev evCommand) bool {
	result, err := e.dispatch(ctx, ev.cmd)
	ev.reply <- cmdReply{result: result, err: err}
	return ev.cmd.Type == CommandStop && err == nil
}

func (e *Engine) dispatch(ctx context.Context, cmd Command) (*Result, error) {
	switch cmd.Type {
	case CommandStatus:
		return e.cmdStatus(), nil
	case CommandList:
		return e.cmdList(cmd)
	case CommandSet:
		return e.cmdSet(ctx, cmd)
	case CommandNext:
		return e.cmdNext(ctx, cmd)
	case CommandRandom:
		return e.cmdRandom(ctx, cmd)
	case CommandStop:
		log.Info("engine: stop requested")
		return &Result{}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", cmd.Type)
	}
}

// targets resolves a command's output selector against the output table.
func (e *Engine) targets(name string) ([]*outputState, error) {
	if name != "" {
		os, ok := e.outputs[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOutput, name)
		}
		return []*outputState{os}, nil
	}
	all := make([]*outputState, 0, len(e.outputs))
	for _, os := range e.outputs {
		all = append(all, os)
	}
	return all, nil
}

func (e *Engine) cmdStatus() *Result {
	r := &Result{Uptime: time.Since(e.started).Round(time.Second).String()}
	for _, os := range e.outputs {
		st := OutputStatus{
			Name:     os.output.Name,
			Width:    os.output.Width,
			Height:   os.output.Height,
			Media:    os.current,
			State:    "idle",
			Occluded: os.occluded,
		}
		if os.pipeline != nil {
			st.State = os.pipeline.State().String()
			st.Backend = os.pipeline.Backend()
		}
		r.Outputs = append(r.Outputs, st)
	}
	return r
}

// cmdList enumerates the media each target would rotate through. Purely a
// read: no pipeline is touched.
func (e *Engine) cmdList(cmd Command) (*Result, error) {
	targets, err := e.targets(cmd.Output)
	if err != nil {
		return nil, err
	}
	r := &Result{Media: make(map[string][]string)}
	for _, os := range targets {
		if os.assign.Fixed() {
			r.Media[os.output.Name] = []string{os.assign.Media}
			continue
		}
		sources, err := media.Scan(os.assign.Dir)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", os.output.Name, err)
		}
		paths := make([]string, len(sources))
		for i, s := range sources {
			paths[i] = s.Path
		}
		r.Media[os.output.Name] = paths
	}
	return r, nil
}

// cmdSet switches targets to an explicit file. Optional fps and fit
// overrides stick to the output's assignment until the next config
// reload, so later rotations inherit them. Rotation keeps running and
// will replace the file when the timer next fires.
func (e *Engine) cmdSet(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Path == "" {
		return nil, errors.New("set requires a path")
	}
	targets, err := e.targets(cmd.Output)
	if err != nil {
		return nil, err
	}
	src, err := media.Resolve(cmd.Path)
	if err != nil {
		return nil, err
	}
	var fit types.FitMode
	if cmd.Fit != "" {
		if fit, err = types.ParseFitMode(cmd.Fit); err != nil {
			return nil, err
		}
	}
	for _, os := range targets {
		if cmd.FPS > 0 {
			os.assign.FPS = cmd.FPS
		}
		if cmd.Fit != "" {
			os.assign.Fit = fit
		}
		log.Infof("engine: setting %s on %s", src.Path, os.output.Name)
		e.replacePipeline(ctx, os, src)
	}
	return &Result{}, nil
}

// cmdNext advances each target to the next file in sorted directory
// order, wrapping at the end, and re-arms its rotation timer.
func (e *Engine) cmdNext(ctx context.Context, cmd Command) (*Result, error) {
	targets, err := e.targets(cmd.Output)
	if err != nil {
		return nil, err
	}
	for _, os := range targets {
		if os.assign.Fixed() {
			continue
		}
		src, err := media.PickNext(os.assign.Dir, os.current)
		if err != nil {
			return nil, fmt.Errorf("next for %s: %w", os.output.Name, err)
		}
		e.replacePipeline(ctx, os, src)
		e.scheduleRotation(os)
	}
	return &Result{}, nil
}

// cmdRandom picks fresh media for each target, optionally from an
// explicit directory instead of the configured one.
func (e *Engine) cmdRandom(ctx context.Context, cmd Command) (*Result, error) {
	targets, err := e.targets(cmd.Output)
	if err != nil {
		return nil, err
	}
	for _, os := range targets {
		dir := os.assign.Dir
		if cmd.Dir != "" {
			dir = cmd.Dir
		}
		if dir == "" {
			continue
		}
		src, err := media.PickRandom(dir, os.current)
		if err != nil {
			return nil, fmt.Errorf("random for %s: %w", os.output.Name, err)
		}
		e.replacePipeline(ctx, os, src)
		e.scheduleRotation(os)
	}
	return &Result{}, nil
}
