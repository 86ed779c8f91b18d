package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nauticalab/spotty/internal/cli"
	"github.com/nauticalab/spotty/internal/logging"
)

var (
	// Global flags (available to all commands)
	verbose    bool
	jsonOutput bool

	// Shared by every command that reads the project configuration
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "spotty",
	Short: "Run containerized workloads on AWS spot instances",
	Long: `spotty launches AWS spot or on-demand instances for a project described
in spotty.yaml, runs the project container on them and connects you to it
through a tmux session that survives dropped connections.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbose, jsonOutput, os.Stderr)
	},
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Add subcommands to root
	rootCmd.AddCommand(sshCmd)
	rootCmd.AddCommand(createAMICmd)
	rootCmd.AddCommand(deleteAMICmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

// addConfigFlag registers -c/--config on a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file (default spotty.yaml)")
}

// newRunner builds the runner for a command from the process environment.
func newRunner(args []string) (*cli.Runner, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	// without a home directory only "~" paths fail, later and with a clear error
	homeDir, _ := os.UserHomeDir()

	settings, err := cli.LoadCLIConfig(homeDir)
	if err != nil {
		return nil, err
	}

	opts := cli.Options{
		ConfigPath: configPath,
		WorkDir:    workDir,
		HomeDir:    homeDir,
		Settings:   settings,
	}
	if len(args) > 0 {
		opts.InstanceName = args[0]
	}
	return cli.NewRunner(opts), nil
}

// runAction runs action for the instance named in args.
func runAction(cmd *cobra.Command, args []string, action cli.Action) error {
	runner, err := newRunner(args)
	if err != nil {
		return err
	}
	return runner.Run(cmd.Context(), action)
}
