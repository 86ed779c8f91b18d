package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment variables overriding the settings file.
const (
	EnvAWSProfile = "SPOTTY_AWS_PROFILE"
	EnvSSHBinary  = "SPOTTY_SSH"
)

// CLIConfig represents the user's settings for the CLI
type CLIConfig struct {
	AWSProfile string `yaml:"awsProfile"`
	SSHBinary  string `yaml:"sshBinary"`

	// ConnectTimeout is the ssh connect timeout in seconds; 0 leaves ssh's
	// default.
	ConnectTimeout int `yaml:"connectTimeout"`
}

// CLIConfigPath returns the settings file location under homeDir.
func CLIConfigPath(homeDir string) string {
	return filepath.Join(homeDir, ".spotty", "config.yaml")
}

// LoadCLIConfig loads settings from multiple sources in order of precedence:
// 1. Flags (handled by caller)
// 2. Environment variables
// 3. Config file (~/.spotty/config.yaml)
func LoadCLIConfig(homeDir string) (*CLIConfig, error) {
	config := &CLIConfig{}

	// 1. Load from config file
	if homeDir != "" {
		configPath := CLIConfigPath(homeDir)
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	// 2. Load from environment variables (override config file)
	if profile := os.Getenv(EnvAWSProfile); profile != "" {
		config.AWSProfile = profile
	}
	if binary := os.Getenv(EnvSSHBinary); binary != "" {
		config.SSHBinary = binary
	}

	return config, nil
}
