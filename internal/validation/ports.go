// Package validation checks a resolved project for problems that only show up
// once every instance is merged with the project defaults: local SSH port
// conflicts between instances, privileged ports and container mounts that
// reference undeclared volumes.
package validation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nauticalab/spotty/internal/config"
)

const (
	// PrivilegedPortMax is the highest port that needs root to bind locally.
	PrivilegedPortMax = 1023
	// PortMax is the highest valid TCP port.
	PortMax = 65535
)

// PortValidator checks local SSH ports and container settings across all
// instances of a project
type PortValidator struct {
	project *config.ProjectConfig
}

// ValidationResult contains all validation results
type ValidationResult struct {
	// Errors is a list of fatal validation errors
	Errors []ValidationError
	// Warnings is a list of non-fatal validation warnings
	Warnings []ValidationWarning
	// IsValid indicates if the validation passed (no errors)
	IsValid bool
}

// ValidationError represents a validation failure
type ValidationError struct {
	// Type is the category of error (e.g., "conflict", "out_of_range", "invalid")
	Type string
	// Port is the port number involved in the error (if applicable)
	Port int
	// Instances is a list of instances involved in the error
	Instances []string
	// Message is a human-readable error description
	Message string
}

// ValidationWarning represents a non-fatal validation issue
type ValidationWarning struct {
	// Type is the category of warning
	Type string
	// Instance is the instance associated with the warning
	Instance string
	// Message is a human-readable warning description
	Message string
}

// NewPortValidator creates a new port validator
func NewPortValidator(project *config.ProjectConfig) *PortValidator {
	return &PortValidator{project: project}
}

func newResult() *ValidationResult {
	return &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
		IsValid:  true,
	}
}

func (r *ValidationResult) addError(e ValidationError) {
	r.Errors = append(r.Errors, e)
	r.IsValid = false
}

// ValidateAll resolves every instance and checks them together
func (pv *PortValidator) ValidateAll() *ValidationResult {
	result := newResult()

	// port -> instances, in declaration order
	portAssignments := make(map[int][]string)
	var ports []int

	for _, name := range pv.project.InstanceNames() {
		cfg, err := config.GetInstanceConfig(pv.project, name)
		if err != nil {
			result.addError(ValidationError{
				Type:      "invalid",
				Instances: []string{name},
				Message:   fmt.Sprintf("Instance %s: %v", name, err),
			})
			continue
		}

		pv.validateInstance(cfg, result)

		if cfg.LocalSSHPort == 0 {
			continue
		}
		if _, seen := portAssignments[cfg.LocalSSHPort]; !seen {
			ports = append(ports, cfg.LocalSSHPort)
		}
		portAssignments[cfg.LocalSSHPort] = append(portAssignments[cfg.LocalSSHPort], name)
	}

	for _, port := range ports {
		instances := portAssignments[port]
		if len(instances) > 1 {
			result.addError(ValidationError{
				Type:      "conflict",
				Port:      port,
				Instances: instances,
				Message:   fmt.Sprintf("Local SSH port %d is assigned to multiple instances: %s", port, strings.Join(instances, ", ")),
			})
		}
	}

	return result
}

func (pv *PortValidator) validateInstance(cfg *config.InstanceConfig, result *ValidationResult) {
	port := cfg.LocalSSHPort
	if port < 0 || port > PortMax {
		result.addError(ValidationError{
			Type:      "out_of_range",
			Port:      port,
			Instances: []string{cfg.Name},
			Message:   fmt.Sprintf("Local SSH port %d for instance %s is out of valid range (1-%d)", port, cfg.Name, PortMax),
		})
	} else if port > 0 && port <= PrivilegedPortMax {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Type:     "privileged_port",
			Instance: cfg.Name,
			Message:  fmt.Sprintf("Local SSH port %d for instance %s requires root privileges to bind", port, cfg.Name),
		})
	}

	seen := make(map[int]bool, len(cfg.Container.Ports))
	for _, p := range cfg.Container.Ports {
		if seen[p] {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Type:     "duplicate_container_port",
				Instance: cfg.Name,
				Message:  fmt.Sprintf("Container port %d is listed more than once for instance %s", p, cfg.Name),
			})
		}
		seen[p] = true
	}

	for _, m := range cfg.Container.VolumeMounts {
		declared := slices.ContainsFunc(cfg.Volumes, func(v config.VolumeConfig) bool { return v.Name == m.Name })
		if !declared {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Type:     "unknown_volume",
				Instance: cfg.Name,
				Message:  fmt.Sprintf("Volume mount %q of instance %s has no matching volume, data in %s will not persist", m.Name, cfg.Name, m.MountPath),
			})
		}
	}
}

// ValidateSingle validates a single instance by running full validation and filtering results
func (pv *PortValidator) ValidateSingle(instanceName string) *ValidationResult {
	// Run full validation to catch all conflicts
	fullResult := pv.ValidateAll()

	result := newResult()

	for _, err := range fullResult.Errors {
		if slices.Contains(err.Instances, instanceName) {
			result.addError(err)
		}
	}

	for _, warning := range fullResult.Warnings {
		if warning.Instance == instanceName {
			result.Warnings = append(result.Warnings, warning)
		}
	}

	return result
}
