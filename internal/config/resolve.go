package config

import (
	"path/filepath"
	"strings"

	spottyerrors "github.com/nauticalab/spotty/internal/errors"
)

// ResolveOptions carries the directories path resolution depends on. Nothing
// is read from the process environment.
type ResolveOptions struct {
	// ProjectDir is the directory containing the configuration file.
	// Relative local paths are resolved against it.
	ProjectDir string
	// HomeDir replaces a leading "~" in local paths. Optional.
	HomeDir string
}

// Resolve turns a validated configuration into a ProjectConfig whose local
// paths (SSH key paths, startup scripts) are absolute.
func Resolve(v *ValidatedConfig, opts ResolveOptions) (*ProjectConfig, error) {
	projectDir, err := filepath.Abs(opts.ProjectDir)
	if err != nil {
		return nil, spottyerrors.Wrap(spottyerrors.KindGeneral, "failed to resolve project directory", err)
	}
	opts.ProjectDir = projectDir

	defaults := v.Defaults
	defaults.InstanceParameters = defaults.InstanceParameters.clone()
	if err := resolveParameterPaths(&defaults.InstanceParameters, "defaults", opts); err != nil {
		return nil, err
	}

	instances := make([]InstanceEntry, len(v.Instances))
	for i, inst := range v.Instances {
		params := inst.Parameters.clone()
		if err := resolveParameterPaths(&params, "instances["+inst.Name+"].parameters", opts); err != nil {
			return nil, err
		}
		inst.Parameters = &params
		inst.Container = inst.Container.clone()
		instances[i] = inst
	}

	return &ProjectConfig{
		Name:       v.Project.Name,
		RemoteDir:  v.Project.RemoteDir,
		Container:  v.Container.clone(),
		Defaults:   defaults,
		Instances:  instances,
		ProjectDir: projectDir,
		ConfigPath: v.Path,
	}, nil
}

func resolveParameterPaths(params *InstanceParameters, prefix string, opts ResolveOptions) error {
	var err error
	if params.KeyPath, err = ResolveLocalPath(params.KeyPath, opts); err != nil {
		return spottyerrors.InvalidField(prefix+".keyPath", err.Error())
	}
	if params.StartupScript, err = ResolveLocalPath(params.StartupScript, opts); err != nil {
		return spottyerrors.InvalidField(prefix+".startupScript", err.Error())
	}
	return nil
}

// ResolveLocalPath makes a local path absolute: "~/x" is expanded against
// HomeDir, relative paths are joined to ProjectDir. Empty stays empty.
// Resolving an already resolved path returns it unchanged.
func ResolveLocalPath(p string, opts ResolveOptions) (string, error) {
	if p == "" {
		return "", nil
	}

	if p == "~" || strings.HasPrefix(p, "~/") {
		if opts.HomeDir == "" {
			return "", errHomeDirUnknown
		}
		return filepath.Join(opts.HomeDir, strings.TrimPrefix(p, "~")), nil
	}

	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}

	return filepath.Join(opts.ProjectDir, p), nil
}

var errHomeDirUnknown = spottyerrors.New(spottyerrors.KindGeneral, "home directory is unknown, cannot expand '~'")
