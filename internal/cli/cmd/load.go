package cmd

import (
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/matjam/shaderpaper/internal/cli/cmd/utils"
	"github.com/matjam/shaderpaper/internal/ipc"
	"github.com/spf13/cobra"
)

func NewLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load [shader.wgsl]",
		Short: "Load a new shader into the running daemon",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			// The daemon reads the file itself, so hand it an absolute
			// path rather than one relative to this shell.
			path, err := filepath.Abs(utils.CanonicalPath(args[0]))
			if err != nil {
				log.Fatalf("Failed to resolve %s: %v", args[0], err)
			}

			if err := ipc.SendLoad(path); err != nil {
				log.Fatalf("Failed to send 'load' command: %v", err)
			}
			log.Infof("Loaded shader %s", path)
		},
	}
}
