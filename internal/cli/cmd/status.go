package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/matjam/shaderpaper/internal/cli/cmd/utils"
	"github.com/matjam/shaderpaper/internal/ipc"
	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get shaderpaper status",
		Long:  `Returns the current status of the shaderpaper process.`,
		Run: func(cmd *cobra.Command, args []string) {
			status, err := ipc.SendStatus()
			if err != nil {
				log.Fatalf("Error fetching status: %v", err)
			}

			utils.PrintJSONColored(status)
		},
	}
}
