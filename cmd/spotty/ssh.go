package main

import (
	"github.com/spf13/cobra"

	"github.com/nauticalab/spotty/internal/cli"
)

var (
	// SSH command flags
	sshHostOS      bool
	sshSessionName string
)

var sshCmd = &cobra.Command{
	Use:   "ssh [instance-name]",
	Short: "Connect to the running container or the instance",
	Long: `Connect to an instance over SSH and attach to a tmux session.

By default the session runs a shell inside the project container. The session
is reattached when it already exists, so a dropped connection loses nothing.

Examples:
  spotty ssh                      # container of the first instance
  spotty ssh gpu-box -H           # host OS of gpu-box
  spotty ssh -s training          # separate session named "training"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, args, cli.SSH(cli.SSHOptions{
			HostOS:      sshHostOS,
			SessionName: sshSessionName,
		}))
	},
}

func init() {
	addConfigFlag(sshCmd)
	sshCmd.Flags().BoolVarP(&sshHostOS, "host-os", "H", false, "Connect to the host OS instead of the container")
	sshCmd.Flags().StringVarP(&sshSessionName, "session-name", "s", "", "tmux session name")
}
