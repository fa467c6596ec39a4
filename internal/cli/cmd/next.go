package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matjam/vidpaper/internal/engine"
	"github.com/matjam/vidpaper/internal/ipc"
)

func NewNextCmd() *cobra.Command {
	var output string

	c := &cobra.Command{
		Use:   "next",
		Short: "Switch to the next wallpaper in sorted order",
		Run: func(cmd *cobra.Command, args []string) {
			_, err := ipc.SendCommand(engine.Command{
				Type:   engine.CommandNext,
				Output: output,
			})
			if err != nil {
				log.Fatalf("Failed to send 'next' command: %v", err)
			}
			log.Info("Next wallpaper command sent")
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "", "only switch this output")
	return c
}
