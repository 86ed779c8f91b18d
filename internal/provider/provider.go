// Package provider selects the instance manager implementation for a
// resolved instance configuration.
package provider

import (
	"sort"
	"strings"

	"github.com/nauticalab/spotty/internal/config"
	spottyerrors "github.com/nauticalab/spotty/internal/errors"
	"github.com/nauticalab/spotty/internal/instance"
	"github.com/nauticalab/spotty/internal/logging"
	"github.com/nauticalab/spotty/internal/provider/aws"
)

// Options carries provider specific settings passed down to the managers.
type Options struct {
	AWS []aws.Option
}

// Option configures GetInstance.
type Option func(*Options)

// WithAWSOptions passes opts to the AWS manager.
func WithAWSOptions(opts ...aws.Option) Option {
	return func(o *Options) { o.AWS = append(o.AWS, opts...) }
}

// Constructor builds a manager for one provider.
type Constructor func(ic *config.InstanceConfig, pc *config.ProjectConfig, opts Options) instance.Manager

var constructors = map[string]Constructor{
	aws.ProviderName: func(ic *config.InstanceConfig, pc *config.ProjectConfig, opts Options) instance.Manager {
		return aws.NewManager(ic, pc, opts.AWS...)
	},
}

// Names returns the supported provider names, sorted.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetInstance constructs the manager for ic.Provider. It makes no network
// calls.
func GetInstance(ic *config.InstanceConfig, pc *config.ProjectConfig, opts ...Option) (instance.Manager, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	name := strings.ToLower(ic.Provider)
	construct, ok := constructors[name]
	if !ok {
		return nil, spottyerrors.UnsupportedProvider(ic.Provider, Names()...)
	}

	logging.Debug("constructing instance manager", "provider", name, "instance", ic.Name)
	return construct(ic, pc, o), nil
}
