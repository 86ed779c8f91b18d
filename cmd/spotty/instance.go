package main

import (
	"github.com/spf13/cobra"

	"github.com/nauticalab/spotty/internal/cli"
)

var startCmd = &cobra.Command{
	Use:   "start [instance-name]",
	Short: "Launch the instance and start the container",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, args, cli.Start())
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [instance-name]",
	Short: "Terminate the instance",
	Long: `Terminate the instance. Volumes with the "retain" deletion policy are
kept.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, args, cli.Stop())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [instance-name]",
	Short: "Show the state of the instance",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, args, cli.Status(cmd.OutOrStdout()))
	},
}

func init() {
	addConfigFlag(startCmd)
	addConfigFlag(stopCmd)
	addConfigFlag(statusCmd)
}
