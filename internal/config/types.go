package config

import (
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name looked up in the working
// directory when no path is given.
const DefaultConfigFile = "spotty.yaml"

// RawConfig is a parsed but unvalidated configuration document.
type RawConfig struct {
	// Path is the configuration path as the user supplied it.
	Path string
	// Root is the top-level mapping node of the document.
	Root *yaml.Node

	data []byte
}

// TopLevelKeys returns the keys of the top-level mapping in document order.
func (r *RawConfig) TopLevelKeys() []string {
	if r.Root == nil {
		return nil
	}
	keys := make([]string, 0, len(r.Root.Content)/2)
	for i := 0; i+1 < len(r.Root.Content); i += 2 {
		keys = append(keys, r.Root.Content[i].Value)
	}
	return keys
}

// FileConfig mirrors the structure of spotty.yaml
type FileConfig struct {
	Project   ProjectSection  `yaml:"project"`
	Container ContainerConfig `yaml:"container,omitempty"`
	Defaults  Defaults        `yaml:"defaults,omitempty"`
	Instances []InstanceEntry `yaml:"instances" validate:"required,min=1,dive"`
}

// ValidatedConfig is a FileConfig that passed schema validation.
type ValidatedConfig struct {
	FileConfig

	// Path is the configuration path as the user supplied it.
	Path string
}

// ProjectSection represents the project block
type ProjectSection struct {
	Name      string `yaml:"name" validate:"required,project_name"`
	RemoteDir string `yaml:"remoteDir,omitempty" validate:"omitempty,remote_path"`
}

// ContainerConfig represents container runtime settings
type ContainerConfig struct {
	Image        string            `yaml:"image,omitempty"`
	WorkingDir   string            `yaml:"workingDir,omitempty" validate:"omitempty,remote_path"`
	RuntimeArgs  []string          `yaml:"runtimeArgs,omitempty"`
	Ports        []int             `yaml:"ports,omitempty" validate:"omitempty,dive,min=1,max=65535"`
	Env          map[string]string `yaml:"env,omitempty"`
	VolumeMounts []VolumeMount     `yaml:"volumeMounts,omitempty" validate:"omitempty,dive"`
}

// VolumeMount maps an instance volume into the container
type VolumeMount struct {
	Name      string `yaml:"name" validate:"required"`
	MountPath string `yaml:"mountPath" validate:"required,remote_path"`
}

// Volume deletion policies applied when an instance is stopped.
const (
	DeletionPolicyRetain = "retain"
	DeletionPolicyDelete = "delete"
)

// VolumeConfig describes a block volume attached to the instance
type VolumeConfig struct {
	Name           string `yaml:"name" validate:"required"`
	Directory      string `yaml:"directory" validate:"required,remote_path"`
	Size           int    `yaml:"size,omitempty" validate:"gte=0"`
	DeletionPolicy string `yaml:"deletionPolicy,omitempty" validate:"omitempty,oneof=retain delete"`
}

// InstanceParameters is the provider-specific block of an instance. The same
// shape is used for project-wide defaults.
type InstanceParameters struct {
	Region           string         `yaml:"region,omitempty"`
	AvailabilityZone string         `yaml:"availabilityZone,omitempty"`
	InstanceType     string         `yaml:"instanceType,omitempty"`
	AMIName          string         `yaml:"amiName,omitempty"`
	KeyName          string         `yaml:"keyName,omitempty"`
	KeyPath          string         `yaml:"keyPath,omitempty"`
	User             string         `yaml:"user,omitempty"`
	OnDemandInstance *bool          `yaml:"onDemandInstance,omitempty"`
	MaxPrice         float64        `yaml:"maxPrice,omitempty" validate:"gte=0"`
	RootVolumeSize   int            `yaml:"rootVolumeSize,omitempty" validate:"gte=0"`
	LocalSSHPort     int            `yaml:"localSshPort,omitempty" validate:"omitempty,min=1,max=65535"`
	StartupScript    string         `yaml:"startupScript,omitempty"`
	Volumes          []VolumeConfig `yaml:"volumes,omitempty" validate:"omitempty,dive"`
}

// Defaults holds project-wide instance defaults
type Defaults struct {
	Provider           string `yaml:"provider,omitempty"`
	InstanceParameters `yaml:",inline"`
}

// InstanceEntry is one element of the instances list
type InstanceEntry struct {
	Name       string              `yaml:"name" validate:"required,instance_name"`
	Provider   string              `yaml:"provider,omitempty"`
	Parameters *InstanceParameters `yaml:"parameters" validate:"required"`
	Container  ContainerConfig     `yaml:"container,omitempty"`
}

// ProjectConfig is the resolved project configuration. All local paths in it
// are absolute.
type ProjectConfig struct {
	Name      string
	RemoteDir string
	Container ContainerConfig
	Defaults  Defaults
	Instances []InstanceEntry

	// ProjectDir is the directory containing the configuration file.
	ProjectDir string
	// ConfigPath is the configuration path as the user supplied it.
	ConfigPath string
}

// InstanceNames returns the declared instance names in declaration order.
func (p *ProjectConfig) InstanceNames() []string {
	names := make([]string, len(p.Instances))
	for i, inst := range p.Instances {
		names[i] = inst.Name
	}
	return names
}

// InstanceConfig is the effective configuration of a single instance
type InstanceConfig struct {
	ProjectName string
	ProjectDir  string
	Name        string
	Provider    string

	Region           string
	AvailabilityZone string
	InstanceType     string
	AMIName          string
	KeyName          string
	KeyPath          string
	User             string
	OnDemand         bool
	MaxPrice         float64
	RootVolumeSize   int
	LocalSSHPort     int
	StartupScript    string
	Volumes          []VolumeConfig

	Container ContainerConfig
}

func (c ContainerConfig) clone() ContainerConfig {
	c.RuntimeArgs = slices.Clone(c.RuntimeArgs)
	c.Ports = slices.Clone(c.Ports)
	c.Env = maps.Clone(c.Env)
	c.VolumeMounts = slices.Clone(c.VolumeMounts)
	return c
}

func (p InstanceParameters) clone() InstanceParameters {
	if p.OnDemandInstance != nil {
		v := *p.OnDemandInstance
		p.OnDemandInstance = &v
	}
	p.Volumes = slices.Clone(p.Volumes)
	return p
}
