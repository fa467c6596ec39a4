package cmd

import (
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matjam/vidpaper/internal/config"
	"github.com/matjam/vidpaper/internal/engine"
	"github.com/matjam/vidpaper/internal/ipc"
)

func NewSetCmd() *cobra.Command {
	var output string
	var fps int
	var fit string

	c := &cobra.Command{
		Use:   "set [media file]",
		Short: "Set an explicit wallpaper",
		Long: `Replaces the current wallpaper with the given video or image file.
The daemon resolves paths itself, so relative paths are made absolute
before sending.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path, err := filepath.Abs(config.CanonicalPath(args[0]))
			if err != nil {
				log.Fatalf("Invalid path: %v", err)
			}

			_, err = ipc.SendCommand(engine.Command{
				Type:   engine.CommandSet,
				Output: output,
				Path:   path,
				FPS:    fps,
				Fit:    fit,
			})
			if err != nil {
				log.Fatalf("Failed to send 'set' command: %v", err)
			}
			log.Infof("Set %s", path)
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "", "only set this output")
	c.Flags().IntVar(&fps, "fps", 0, "override the video frame rate")
	c.Flags().StringVar(&fit, "fit", "", "override the fit mode (stretch, fit, cover)")
	return c
}
