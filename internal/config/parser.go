package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	spottyerrors "github.com/nauticalab/spotty/internal/errors"
)

// LocateConfig resolves the configuration path the way every command does.
// An empty configPath means DefaultConfigFile; a relative path is joined to
// workDir. It returns the path to display in messages and the absolute path to
// read.
func LocateConfig(configPath, workDir string) (displayPath, absPath string) {
	displayPath = configPath
	if displayPath == "" {
		displayPath = DefaultConfigFile
	}

	absPath = displayPath
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(workDir, absPath)
	}
	return displayPath, filepath.Clean(absPath)
}

// Load reads and parses a configuration file. The path is used both for
// reading and in error messages.
func Load(path string) (*RawConfig, error) {
	return LoadWithDisplayPath(path, path)
}

// LoadWithDisplayPath reads the configuration file at absPath. Errors name
// displayPath, the path as the user typed it.
//
// It performs no validation; call Validate separately.
func LoadWithDisplayPath(absPath, displayPath string) (*RawConfig, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, spottyerrors.ConfigNotFound(displayPath)
		}
		return nil, spottyerrors.Wrap(spottyerrors.KindGeneral,
			fmt.Sprintf("failed to read configuration file %q", displayPath), err)
	}

	return Parse(data, displayPath)
}

// Parse parses YAML configuration data. On failure no partial document is
// returned.
func Parse(data []byte, displayPath string) (*RawConfig, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, spottyerrors.ConfigParseError(displayPath, err)
	}

	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, spottyerrors.ConfigParseError(displayPath, errors.New("configuration is empty"))
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, spottyerrors.ConfigParseError(displayPath,
			fmt.Errorf("line %d: top level must be a mapping", root.Line))
	}

	return &RawConfig{
		Path: displayPath,
		Root: root,
		data: data,
	}, nil
}

// LoadProject runs the whole pipeline for one configuration file: load,
// validate and resolve.
func LoadProject(absPath, displayPath string, opts ResolveOptions) (*ProjectConfig, error) {
	raw, err := LoadWithDisplayPath(absPath, displayPath)
	if err != nil {
		return nil, err
	}

	validated, err := Validate(raw)
	if err != nil {
		return nil, err
	}

	if opts.ProjectDir == "" {
		opts.ProjectDir = filepath.Dir(absPath)
	}

	return Resolve(validated, opts)
}
