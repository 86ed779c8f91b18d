package config

import (
	"fmt"
	"slices"
	"strings"

	"dario.cat/mergo"

	spottyerrors "github.com/nauticalab/spotty/internal/errors"
)

// Built-in defaults applied when neither the instance nor the project sets a
// value.
const (
	DefaultAMIName          = "SpottyAMI"
	DefaultUser             = "ubuntu"
	DefaultContainerWorkDir = "/workspace/project"
)

// GetInstanceConfig returns the effective configuration of the named instance.
// An empty name selects the first declared instance.
//
// Merge strategy, field by field:
//
//	instance parameters → project defaults → built-in defaults
//	instance container  → project container
//
// Fields unset at every level with no built-in default fail with
// MissingRequiredField. The project config is not modified.
func GetInstanceConfig(p *ProjectConfig, name string) (*InstanceConfig, error) {
	entry, err := selectInstance(p, name)
	if err != nil {
		return nil, err
	}

	params := InstanceParameters{}
	if entry.Parameters != nil {
		params = entry.Parameters.clone()
	}
	// an explicit onDemandInstance: false must survive a true default
	if err := mergo.Merge(&params, p.Defaults.InstanceParameters.clone(), mergo.WithoutDereference); err != nil {
		return nil, spottyerrors.Wrap(spottyerrors.KindGeneral, "failed to merge instance defaults", err)
	}

	container := entry.Container.clone()
	if err := mergo.Merge(&container, p.Container.clone()); err != nil {
		return nil, spottyerrors.Wrap(spottyerrors.KindGeneral, "failed to merge container settings", err)
	}

	provider := entry.Provider
	if provider == "" {
		provider = p.Defaults.Provider
	}

	cfg := &InstanceConfig{
		ProjectName:      p.Name,
		ProjectDir:       p.ProjectDir,
		Name:             entry.Name,
		Provider:         strings.ToLower(provider),
		Region:           params.Region,
		AvailabilityZone: params.AvailabilityZone,
		InstanceType:     params.InstanceType,
		AMIName:          params.AMIName,
		KeyName:          params.KeyName,
		KeyPath:          params.KeyPath,
		User:             params.User,
		MaxPrice:         params.MaxPrice,
		RootVolumeSize:   params.RootVolumeSize,
		LocalSSHPort:     params.LocalSSHPort,
		StartupScript:    params.StartupScript,
		Volumes:          slices.Clone(params.Volumes),
		Container:        container,
	}
	if params.OnDemandInstance != nil {
		cfg.OnDemand = *params.OnDemandInstance
	}

	applyBuiltinDefaults(cfg, p)

	if err := checkRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func selectInstance(p *ProjectConfig, name string) (*InstanceEntry, error) {
	if len(p.Instances) == 0 {
		return nil, spottyerrors.MissingRequiredField("instances")
	}

	if name == "" {
		return &p.Instances[0], nil
	}

	for i := range p.Instances {
		if p.Instances[i].Name == name {
			return &p.Instances[i], nil
		}
	}

	return nil, spottyerrors.InstanceNotFound(name, p.InstanceNames())
}

func applyBuiltinDefaults(cfg *InstanceConfig, p *ProjectConfig) {
	if cfg.AMIName == "" {
		cfg.AMIName = DefaultAMIName
	}
	if cfg.User == "" {
		cfg.User = DefaultUser
	}
	if cfg.KeyName == "" && cfg.Region != "" {
		cfg.KeyName = DefaultKeyName(p.Name, cfg.Region)
	}
	if cfg.Container.WorkingDir == "" {
		cfg.Container.WorkingDir = p.RemoteDir
		if cfg.Container.WorkingDir == "" {
			cfg.Container.WorkingDir = DefaultContainerWorkDir
		}
	}
	for i := range cfg.Volumes {
		if cfg.Volumes[i].DeletionPolicy == "" {
			cfg.Volumes[i].DeletionPolicy = DeletionPolicyRetain
		}
	}
}

// DefaultKeyName returns the EC2 key pair name used when none is configured.
func DefaultKeyName(projectName, region string) string {
	return fmt.Sprintf("spotty-key-%s-%s", projectName, region)
}

func checkRequired(cfg *InstanceConfig) error {
	prefix := "instances[" + cfg.Name + "]"

	if cfg.Provider == "" {
		return spottyerrors.MissingRequiredField(prefix + ".provider")
	}

	required := []struct {
		field string
		value string
	}{
		{"region", cfg.Region},
		{"instanceType", cfg.InstanceType},
		{"keyPath", cfg.KeyPath},
	}
	for _, r := range required {
		if r.value == "" {
			return spottyerrors.MissingRequiredField(prefix + ".parameters." + r.field)
		}
	}

	return nil
}
