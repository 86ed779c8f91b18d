package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/nauticalab/spotty/internal/config"
	spottyerrors "github.com/nauticalab/spotty/internal/errors"
	"github.com/nauticalab/spotty/internal/validation"
)

// ValidateOptions holds configuration for the validate command
type ValidateOptions struct {
	InstanceName string
	Verbose      bool
}

// Validate checks the project configuration. Without an instance name every
// instance is checked; with one, only errors and warnings involving it are
// reported (conflicts with other instances included).
func Validate(w io.Writer, project *config.ProjectConfig, opts ValidateOptions) error {
	validator := validation.NewPortValidator(project)

	var result *validation.ValidationResult
	if opts.InstanceName == "" {
		fmt.Fprintf(w, "🔍 Validating all instances of project %s...\n", project.Name)
		result = validator.ValidateAll()
	} else {
		if names := project.InstanceNames(); !slices.Contains(names, opts.InstanceName) {
			return spottyerrors.InstanceNotFound(opts.InstanceName, names)
		}
		fmt.Fprintf(w, "🔍 Validating configuration for instance: %s\n", opts.InstanceName)
		result = validator.ValidateSingle(opts.InstanceName)
	}

	printValidationResult(w, result, opts.InstanceName, opts.Verbose)

	if !result.IsValid {
		return spottyerrors.New(spottyerrors.KindInvalidField,
			fmt.Sprintf("validation failed with %d errors", len(result.Errors)))
	}
	return nil
}

// printValidationResult prints the validation results in a user-friendly format
func printValidationResult(w io.Writer, result *validation.ValidationResult, target string, verbose bool) {
	// Print warnings first
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "⚠️  Warning: %s\n", warning.Message)
	}

	// Print errors with context-specific messaging
	for _, err := range result.Errors {
		switch err.Type {
		case "conflict":
			fmt.Fprintf(w, "❌ Port Conflict: %s\n", err.Message)
		case "out_of_range":
			fmt.Fprintf(w, "❌ Invalid Port Range: %s\n", err.Message)
		case "invalid":
			fmt.Fprintf(w, "❌ Configuration Error: %s\n", err.Message)
		default:
			fmt.Fprintf(w, "❌ Error: %s\n", err.Message)
		}
		if verbose && len(err.Instances) > 0 {
			fmt.Fprintf(w, "   Affected instances: %v\n", err.Instances)
		}
	}

	// Print summary
	subject := "All instances are"
	if target != "" {
		subject = fmt.Sprintf("Configuration for %s is", target)
	}

	switch {
	case len(result.Errors) == 0 && len(result.Warnings) == 0:
		fmt.Fprintf(w, "✅ %s valid!\n", subject)
	case result.IsValid:
		fmt.Fprintf(w, "✅ %s valid (%d warnings)\n", subject, len(result.Warnings))
	default:
		fmt.Fprintf(w, "❌ Validation failed with %d errors and %d warnings\n", len(result.Errors), len(result.Warnings))
		printSuggestions(w, result, target)
	}
}

func printSuggestions(w io.Writer, result *validation.ValidationResult, target string) {
	fmt.Fprintln(w, "\n💡 Suggestions:")
	hasConflicts := false
	hasRangeErrors := false

	for _, err := range result.Errors {
		if err.Type == "conflict" && !hasConflicts {
			if target != "" {
				fmt.Fprintf(w, "   • Assign a unique localSshPort to %s\n", target)
			} else {
				fmt.Fprintln(w, "   • Assign a unique localSshPort to each instance")
			}
			hasConflicts = true
		}
		if err.Type == "out_of_range" && !hasRangeErrors {
			fmt.Fprintf(w, "   • Use ports between 1 and %d\n", validation.PortMax)
			hasRangeErrors = true
		}
	}
}
