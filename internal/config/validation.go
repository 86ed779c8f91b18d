package config

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	spottyerrors "github.com/nauticalab/spotty/internal/errors"
)

// Package-level validator used by Validate.
var validate *validator.Validate

// Top-level keys accepted in spotty.yaml.
var knownTopLevelKeys = map[string]bool{
	"project":   true,
	"container": true,
	"defaults":  true,
	"instances": true,
}

// Top-level keys that must be present.
var requiredTopLevelKeys = []string{"project", "instances"}

// nameRe matches project and instance names. They end up in resource tags,
// key pair names and tmux session names, so keep them DNS-label-like.
var nameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)

// unknownFieldRe extracts the key from yaml.v3 strict decoding errors, e.g.
// "line 5: field instanceTyp not found in type config.InstanceParameters".
var unknownFieldRe = regexp.MustCompile(`field (\S+) not found in type`)

func init() {
	// Enable "required on structs" semantics and register custom validators.
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report YAML key names instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := validate.RegisterValidation("project_name", validateName); err != nil {
		panic(fmt.Errorf("register validator project_name: %w", err))
	}
	if err := validate.RegisterValidation("instance_name", validateName); err != nil {
		panic(fmt.Errorf("register validator instance_name: %w", err))
	}
	if err := validate.RegisterValidation("remote_path", validateRemotePath); err != nil {
		panic(fmt.Errorf("register validator remote_path: %w", err))
	}
}

// validateName implements the "project_name" and "instance_name" tags.
func validateName(fl validator.FieldLevel) bool {
	return nameRe.MatchString(fl.Field().String())
}

// validateRemotePath implements the "remote_path" tag: an absolute POSIX path
// on the instance or inside the container.
func validateRemotePath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	return path.IsAbs(p) && !strings.ContainsAny(p, "\x00\n")
}

// Validate checks a raw configuration against the schema and decodes it into
// a typed structure. It is a pure function of its input.
func Validate(raw *RawConfig) (*ValidatedConfig, error) {
	keys := raw.TopLevelKeys()

	present := make(map[string]bool, len(keys))
	for _, key := range keys {
		if !knownTopLevelKeys[key] {
			return nil, spottyerrors.UnknownField(key)
		}
		present[key] = true
	}
	for _, key := range requiredTopLevelKeys {
		if !present[key] {
			return nil, spottyerrors.MissingRequiredField(key)
		}
	}

	var cfg FileConfig
	if err := decodeStrict(raw.data, &cfg); err != nil {
		return nil, err
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, formatValidationError(err)
	}

	seen := make(map[string]bool, len(cfg.Instances))
	for _, inst := range cfg.Instances {
		if seen[inst.Name] {
			return nil, spottyerrors.DuplicateInstance(inst.Name)
		}
		seen[inst.Name] = true
	}

	return &ValidatedConfig{FileConfig: cfg, Path: raw.Path}, nil
}

// decodeStrict decodes YAML rejecting keys that have no matching field.
func decodeStrict(data []byte, out *FileConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	err := dec.Decode(out)
	if err == nil {
		return nil
	}

	var typeErr *yaml.TypeError
	if !errors.As(err, &typeErr) {
		return spottyerrors.Wrap(spottyerrors.KindInvalidField, "configuration does not match the schema", err)
	}

	// Prefer reporting an unknown key: a typo is the most likely cause.
	for _, msg := range typeErr.Errors {
		if m := unknownFieldRe.FindStringSubmatch(msg); m != nil {
			return spottyerrors.UnknownField(m[1])
		}
	}

	return spottyerrors.Wrap(spottyerrors.KindInvalidField, "configuration does not match the schema",
		errors.New(strings.Join(typeErr.Errors, "; ")))
}

// formatValidationError renders go-playground/validator errors as concise,
// user-facing text. The kind and field of the result come from the first
// failing field.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return spottyerrors.Wrap(spottyerrors.KindInvalidField, "configuration validation failed", err)
	}

	var errorMessages []string
	for _, fieldError := range validationErrors {
		errorMessages = append(errorMessages, formatFieldError(fieldError))
	}

	first := validationErrors[0]
	kind := spottyerrors.KindInvalidField
	if first.Tag() == "required" {
		kind = spottyerrors.KindMissingRequiredField
	}

	return &spottyerrors.Error{
		Kind: kind,
		Message: fmt.Sprintf("configuration validation failed:\n  - %s",
			strings.Join(errorMessages, "\n  - ")),
		Field: fieldPath(first),
	}
}

// fieldPath turns a validator namespace such as
// "FileConfig.defaults.InstanceParameters.maxPrice" into "defaults.maxPrice".
func fieldPath(fieldError validator.FieldError) string {
	ns := fieldError.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ReplaceAll(ns, "InstanceParameters.", "")
}

// formatFieldError creates user-friendly error messages for field validation failures
func formatFieldError(fieldError validator.FieldError) string {
	fieldName := fieldPath(fieldError)
	tag := fieldError.Tag()
	param := fieldError.Param()
	value := fieldError.Value()

	switch tag {
	case "required":
		return fmt.Sprintf("'%s' is required", fieldName)
	case "min":
		if fieldError.Kind() == reflect.Slice {
			return fmt.Sprintf("'%s' must contain at least %s item(s)", fieldName, param)
		}
		return fmt.Sprintf("'%s' must be at least %s, got '%v'", fieldName, param, value)
	case "max":
		return fmt.Sprintf("'%s' must be at most %s, got '%v'", fieldName, param, value)
	case "gte":
		return fmt.Sprintf("'%s' must be greater than or equal to %s, got '%v'", fieldName, param, value)
	case "oneof":
		return fmt.Sprintf("'%s' must be one of [%s], got '%v'", fieldName, param, value)

	case "project_name", "instance_name":
		return fmt.Sprintf("'%s' must contain only lowercase letters, digits and dashes, got '%v'", fieldName, value)
	case "remote_path":
		return fmt.Sprintf("'%s' must be an absolute path, got '%v'", fieldName, value)

	default:
		return fmt.Sprintf("'%s' failed validation '%s', got '%v'", fieldName, tag, value)
	}
}
