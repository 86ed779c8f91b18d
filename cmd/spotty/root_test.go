package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spottyerrors "github.com/nauticalab/spotty/internal/errors"
	"github.com/nauticalab/spotty/internal/logging"
)

func TestCommandTree(t *testing.T) {
	tests := []struct {
		use   string
		flags map[string]string // long -> shorthand
	}{
		{"ssh", map[string]string{"config": "c", "host-os": "H", "session-name": "s"}},
		{"create-ami", map[string]string{"config": "c", "key-name": "k"}},
		{"delete-ami", map[string]string{"config": "c"}},
		{"start", map[string]string{"config": "c"}},
		{"stop", map[string]string{"config": "c"}},
		{"status", map[string]string{"config": "c"}},
		{"validate", map[string]string{"config": "c"}},
		{"version", nil},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			cmd, _, err := rootCmd.Find([]string{tt.use})
			require.NoError(t, err)
			require.Equal(t, tt.use, cmd.Name())

			for long, short := range tt.flags {
				flag := cmd.Flags().Lookup(long)
				require.NotNil(t, flag, "flag --%s", long)
				assert.Equal(t, short, flag.Shorthand)
			}
		})
	}

	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("json"))
}

func execute(t *testing.T, args ...string) (string, *cobra.Command, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	prevLogger := logging.Logger
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
		logging.Logger = prevLogger
	})

	cmd, err := rootCmd.ExecuteC()
	return out.String(), cmd, err
}

// resetFlags restores every flag of cmd and its subcommands to its default,
// which also resets the package-level variables bound to them.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestExecute_FlagsDoNotLeak(t *testing.T) {
	t.Run("first invocation", func(t *testing.T) {
		_, _, err := execute(t, "create-ami", "-v", "-k", "debug-key", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.True(t, verbose)
		assert.Equal(t, "debug-key", amiKeyName)
	})

	t.Run("second invocation", func(t *testing.T) {
		_, _, err := execute(t, "ssh", "-H", "-s", "train", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.False(t, verbose)
		assert.Empty(t, amiKeyName)
		assert.True(t, sshHostOS)
		assert.Equal(t, "train", sshSessionName)
	})

	assert.False(t, verbose)
	assert.False(t, jsonOutput)
	assert.False(t, sshHostOS)
	assert.Empty(t, sshSessionName)
	assert.Empty(t, amiKeyName)
	assert.Empty(t, configPath)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spotty.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`project:
  name: my-project
defaults:
  provider: aws
  region: eu-central-1
  instanceType: t3.large
  keyPath: keys/id_rsa
instances:
  - name: default
    parameters: {}
`), 0o644))

	out, _, err := execute(t, "validate", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "All instances are valid")
}

func TestMissingConfigExitCode(t *testing.T) {
	_, cmd, err := execute(t, "status", "-c", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, "spotty status", cmd.CommandPath())
	assert.Equal(t, spottyerrors.ExitConfigNotFound, spottyerrors.GetExitCode(err))
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "spotty version dev\n", out)
}
