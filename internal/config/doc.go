// Package config provides functionality for loading, validating and resolving
// spotty project configurations. A project is described by a single YAML file
// (spotty.yaml by default) that declares the project, project-wide container
// settings and instance defaults, and an ordered list of instances.
//
// # Pipeline
//
// Every command goes through the same steps:
//
//	display, abs := config.LocateConfig(flagPath, workDir)
//	raw, err := config.LoadWithDisplayPath(abs, display) // ConfigNotFound, ConfigParseError
//	validated, err := config.Validate(raw)               // UnknownFieldError, MissingRequiredField, ...
//	project, err := config.Resolve(validated, config.ResolveOptions{
//	    ProjectDir: filepath.Dir(abs),
//	    HomeDir:    home,
//	})
//	instance, err := config.GetInstanceConfig(project, "gpu-box") // InstanceNotFound
//
// [LoadProject] runs the first three steps in one call.
//
// # Configuration File
//
//	project:
//	  name: my-project
//	container:
//	  image: pytorch/pytorch:latest
//	  volumeMounts:
//	    - name: workspace
//	      mountPath: /workspace
//	defaults:
//	  provider: aws
//	  region: eu-central-1
//	  keyPath: ./keys/id_rsa
//	instances:
//	  - name: gpu-box
//	    parameters:
//	      instanceType: p3.2xlarge
//	      volumes:
//	        - name: workspace
//	          directory: /workspace
//
// Unknown keys at any level are rejected so that typos surface early.
//
// # Merging
//
// Instance parameters override project defaults field by field, and the
// instance container block overrides the project container block the same
// way. Remaining gaps take built-in defaults ([DefaultAMIName],
// [DefaultUser], [DefaultKeyName], [DefaultContainerWorkDir]). Provider,
// region, instance type and SSH key path have no default.
//
// # Paths
//
// Local paths (keyPath, startupScript) are resolved against the directory of
// the configuration file, never against the caller's working directory, and
// "~/" is expanded against the supplied home directory. Remote paths
// (remoteDir, mount paths, volume directories) must be absolute.
package config
