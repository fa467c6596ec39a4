package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matjam/vidpaper/internal/cli/cmd/utils"
	"github.com/matjam/vidpaper/internal/ipc"
)

func NewListCmd() *cobra.Command {
	var output string

	c := &cobra.Command{
		Use:   "list",
		Short: "List the media each output rotates through",
		Run: func(cmd *cobra.Command, args []string) {
			response, err := ipc.SendList(output)
			if err != nil {
				log.Fatalf("Failed to send 'list' command: %v", err)
			}
			utils.PrintJSONColored(response.Data)
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "", "only list this output")
	return c
}
