package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matjam/vidpaper/internal/engine"
	"github.com/matjam/vidpaper/internal/ipc"
)

func NewRandomCmd() *cobra.Command {
	var output string
	var dir string

	c := &cobra.Command{
		Use:   "random",
		Short: "Switch to a random wallpaper",
		Run: func(cmd *cobra.Command, args []string) {
			_, err := ipc.SendCommand(engine.Command{
				Type:   engine.CommandRandom,
				Output: output,
				Dir:    dir,
			})
			if err != nil {
				log.Fatalf("Failed to send 'random' command: %v", err)
			}
			log.Info("Random wallpaper command sent")
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "", "only switch this output")
	c.Flags().StringVar(&dir, "dir", "", "pick from this directory instead of the configured one")
	return c
}
