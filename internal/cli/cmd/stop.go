package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matjam/vidpaper/internal/engine"
	"github.com/matjam/vidpaper/internal/ipc"
)

func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the vidpaper daemon",
		Run: func(cmd *cobra.Command, args []string) {
			if _, err := ipc.SendCommand(engine.Command{Type: engine.CommandStop}); err != nil {
				log.Fatalf("Failed to send 'stop' command: %v", err)
			}
			log.Info("Stop command sent")
		},
	}
}
