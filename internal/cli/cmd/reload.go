package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/matjam/shaderpaper/internal/ipc"
	"github.com/spf13/cobra"
)

func NewReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload the active shader from disk",
		Run: func(cmd *cobra.Command, args []string) {
			if err := ipc.SendReload(); err != nil {
				log.Fatalf("Failed to send 'reload' command: %v", err)
			}
			log.Info("Reload command sent")
		},
	}
}
