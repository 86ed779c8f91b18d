package templates

import (
	"fmt"
	"os"
	"path"

	"github.com/nauticalab/spotty/internal/config"
	"github.com/nauticalab/spotty/internal/ssh"
)

// Volume is an EBS volume formatted and mounted by the startup script.
type Volume struct {
	Name      string
	Device    string
	Directory string
}

// Mount binds a host directory into the container.
type Mount struct {
	Source string
	Target string
}

// StartupData feeds startup.sh.tmpl.
type StartupData struct {
	ProjectName          string
	InstanceName         string
	ContainerName        string
	ContainerShellScript string
	Image                string
	WorkingDir           string
	RuntimeArgs          []string
	Ports                []int
	Env                  map[string]string
	Volumes              []Volume
	Mounts               []Mount
	// StartupScript holds the contents of the user's startup script.
	StartupScript string
}

// Console markers written by the AMI builder before it powers off.
const (
	BuildSucceededMarker = "SPOTTY_AMI_BUILD_SUCCEEDED"
	BuildFailedMarker    = "SPOTTY_AMI_BUILD_FAILED"
)

// AMIBuilderData feeds ami_builder.sh.tmpl.
type AMIBuilderData struct {
	ImageName string
	User      string
}

func (AMIBuilderData) SuccessMarker() string { return BuildSucceededMarker }

func (AMIBuilderData) FailureMarker() string { return BuildFailedMarker }

// DeviceName returns the block device name of the i-th attached volume.
func DeviceName(i int) string {
	return fmt.Sprintf("/dev/xvd%c", 'f'+i)
}

// ContainerName returns the name of the project container on an instance.
func ContainerName(projectName, instanceName string) string {
	return fmt.Sprintf("spotty-%s-%s", projectName, instanceName)
}

// NewStartupData builds the startup script input for an instance. The
// user's startup script, when configured, is read from disk.
func NewStartupData(cfg *config.InstanceConfig) (*StartupData, error) {
	data := &StartupData{
		ProjectName:          cfg.ProjectName,
		InstanceName:         cfg.Name,
		ContainerName:        ContainerName(cfg.ProjectName, cfg.Name),
		ContainerShellScript: ssh.ContainerShellScript,
		Image:                cfg.Container.Image,
		WorkingDir:           cfg.Container.WorkingDir,
		RuntimeArgs:          cfg.Container.RuntimeArgs,
		Ports:                cfg.Container.Ports,
		Env:                  cfg.Container.Env,
	}

	hostDirs := make(map[string]string, len(cfg.Volumes))
	for i, v := range cfg.Volumes {
		data.Volumes = append(data.Volumes, Volume{
			Name:      v.Name,
			Device:    DeviceName(i),
			Directory: v.Directory,
		})
		hostDirs[v.Name] = v.Directory
	}

	for _, m := range cfg.Container.VolumeMounts {
		source, ok := hostDirs[m.Name]
		if !ok {
			source = path.Join("/mnt/spotty", m.Name)
		}
		data.Mounts = append(data.Mounts, Mount{Source: source, Target: m.MountPath})
	}

	if cfg.StartupScript != "" {
		content, err := os.ReadFile(cfg.StartupScript)
		if err != nil {
			return nil, fmt.Errorf("failed to read startup script: %w", err)
		}
		data.StartupScript = string(content)
	}

	return data, nil
}
