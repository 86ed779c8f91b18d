package main

import (
	"github.com/spf13/cobra"

	"github.com/nauticalab/spotty/internal/cli"
)

var (
	// Create AMI command flags
	amiKeyName string
)

var createAMICmd = &cobra.Command{
	Use:   "create-ami [instance-name]",
	Short: "Create an AMI with Docker and the NVIDIA container runtime",
	Long: `Create the machine image instances are launched from.

The image is built in the instance's region with the instance's type and is
named after its amiName parameter (SpottyAMI by default).

Examples:
  spotty create-ami
  spotty create-ami gpu-box -k my-keypair   # allow SSH into the builder`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, args, cli.CreateAMI(amiKeyName))
	},
}

var deleteAMICmd = &cobra.Command{
	Use:   "delete-ami [instance-name]",
	Short: "Delete the AMI and its snapshots",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, args, cli.DeleteAMI())
	},
}

func init() {
	addConfigFlag(createAMICmd)
	createAMICmd.Flags().StringVarP(&amiKeyName, "key-name", "k", "", "EC2 key pair for SSH access to the image builder")

	addConfigFlag(deleteAMICmd)
}
