package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCLIConfig(t *testing.T) {
	t.Run("no settings file", func(t *testing.T) {
		t.Setenv(EnvAWSProfile, "")
		t.Setenv(EnvSSHBinary, "")

		cfg, err := LoadCLIConfig(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, &CLIConfig{}, cfg)
	})

	t.Run("settings file", func(t *testing.T) {
		t.Setenv(EnvAWSProfile, "")
		t.Setenv(EnvSSHBinary, "")
		home := t.TempDir()
		writeProject(t, home, ".spotty/config.yaml", "awsProfile: research\nsshBinary: /usr/bin/ssh\nconnectTimeout: 15\n")

		cfg, err := LoadCLIConfig(home)
		require.NoError(t, err)
		assert.Equal(t, &CLIConfig{AWSProfile: "research", SSHBinary: "/usr/bin/ssh", ConnectTimeout: 15}, cfg)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv(EnvAWSProfile, "prod")
		t.Setenv(EnvSSHBinary, "")
		home := t.TempDir()
		writeProject(t, home, ".spotty/config.yaml", "awsProfile: research\nsshBinary: /usr/bin/ssh\n")

		cfg, err := LoadCLIConfig(home)
		require.NoError(t, err)
		assert.Equal(t, "prod", cfg.AWSProfile)
		assert.Equal(t, "/usr/bin/ssh", cfg.SSHBinary)
	})

	t.Run("unknown home", func(t *testing.T) {
		t.Setenv(EnvAWSProfile, "")
		t.Setenv(EnvSSHBinary, "autossh")

		cfg, err := LoadCLIConfig("")
		require.NoError(t, err)
		assert.Equal(t, "autossh", cfg.SSHBinary)
	})

	t.Run("malformed file", func(t *testing.T) {
		home := t.TempDir()
		writeProject(t, home, ".spotty/config.yaml", "awsProfile: [unterminated\n")

		_, err := LoadCLIConfig(home)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}
