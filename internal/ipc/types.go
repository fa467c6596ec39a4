package ipc

import (
	"context"

	"github.com/matjam/vidpaper/internal/engine"
)

// CommandRunner is the slice of the engine the IPC layer needs.
type CommandRunner interface {
	Do(ctx context.Context, cmd engine.Command) (*engine.Result, error)
}

// Response is the envelope every endpoint returns.
type Response struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Data    *engine.Result `json:"data,omitempty"`
}

// StatusResponse is the richer reply of GET /status, used by the status
// subcommand and by the startup single-instance probe.
type StatusResponse struct {
	Status  string                `json:"status"`
	Message string                `json:"message"`
	Version string                `json:"version"`
	PID     int                   `json:"pid"`
	Socket  string                `json:"socket"`
	Config  string                `json:"config"`
	Uptime  string                `json:"uptime,omitempty"`
	Outputs []engine.OutputStatus `json:"outputs,omitempty"`
}
