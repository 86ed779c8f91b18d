package main

import (
	"github.com/spf13/cobra"

	"github.com/nauticalab/spotty/internal/cli"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [instance-name]",
	Short: "Validate the project configuration",
	Long: `Validate the project configuration for common issues.

This command checks for:
- Syntax errors, unknown keys and invalid values
- Instances missing a required parameter once defaults are applied
- Local SSH port conflicts between instances
- Container volume mounts without a matching volume

Examples:
  spotty validate                 # Validate all instances
  spotty validate gpu-box         # Validate one instance (includes conflict checking)
  spotty validate -c other.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newRunner(args)
		if err != nil {
			return err
		}

		project, _, err := runner.LoadProject()
		if err != nil {
			return err
		}

		opts := cli.ValidateOptions{Verbose: verbose}
		if len(args) > 0 {
			opts.InstanceName = args[0]
		}
		return cli.Validate(cmd.OutOrStdout(), project, opts)
	},
}

func init() {
	addConfigFlag(validateCmd)
}
