package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nauticalab/spotty/internal/config"
	"github.com/nauticalab/spotty/internal/instance"
	"github.com/nauticalab/spotty/internal/logging"
	"github.com/nauticalab/spotty/internal/provider"
	"github.com/nauticalab/spotty/internal/provider/aws"
	"github.com/nauticalab/spotty/internal/system"
)

// Stage is a step of the command sequence. A command advances through the
// stages in order and stops at the first failure.
type Stage int

const (
	StageArgsParsed Stage = iota
	StageConfigLocated
	StageConfigLoaded
	StageConfigValidated
	StageConfigResolved
	StageManagerConstructed
	StageActionExecuted
)

var stageNames = [...]string{
	StageArgsParsed:         "ArgsParsed",
	StageConfigLocated:      "ConfigLocated",
	StageConfigLoaded:       "ConfigLoaded",
	StageConfigValidated:    "ConfigValidated",
	StageConfigResolved:     "ConfigResolved",
	StageManagerConstructed: "ManagerConstructed",
	StageActionExecuted:     "ActionExecuted",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Options holds the arguments shared by every configuration based command.
type Options struct {
	// ConfigPath is the -c/--config value; empty selects spotty.yaml.
	ConfigPath string
	// InstanceName is the optional positional argument; empty selects the
	// first declared instance.
	InstanceName string
	// WorkDir resolves a relative ConfigPath.
	WorkDir string
	// HomeDir expands "~" in local paths.
	HomeDir string
	// Settings are the user's CLI settings. Nil means defaults.
	Settings *CLIConfig
}

// Env is what an action gets to work with.
type Env struct {
	// ConfigPath is the configuration path as the user gave it.
	ConfigPath string
	Project    *config.ProjectConfig
	Instance   *config.InstanceConfig
	Manager    instance.Manager
	Settings   *CLIConfig
	Executor   system.CommandExecutor
}

// Action is the command specific part run once the manager is constructed.
type Action interface {
	Run(ctx context.Context, env *Env) error
}

// ActionFunc adapts a function to Action.
type ActionFunc func(ctx context.Context, env *Env) error

func (f ActionFunc) Run(ctx context.Context, env *Env) error { return f(ctx, env) }

// ManagerFactory constructs the manager for a resolved instance.
type ManagerFactory func(ic *config.InstanceConfig, pc *config.ProjectConfig) (instance.Manager, error)

// Runner sequences configuration loading and manager construction for one
// command invocation.
type Runner struct {
	opts       Options
	stage      Stage
	newManager ManagerFactory
	executor   system.CommandExecutor
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithManagerFactory replaces the provider factory.
func WithManagerFactory(f ManagerFactory) RunnerOption {
	return func(r *Runner) { r.newManager = f }
}

// WithExecutor sets the executor handed to actions.
func WithExecutor(e system.CommandExecutor) RunnerOption {
	return func(r *Runner) { r.executor = e }
}

// NewRunner creates a runner for parsed command arguments.
func NewRunner(opts Options, ropts ...RunnerOption) *Runner {
	if opts.Settings == nil {
		opts.Settings = &CLIConfig{}
	}

	r := &Runner{
		opts:     opts,
		stage:    StageArgsParsed,
		executor: system.DefaultExecutor(),
	}
	r.newManager = func(ic *config.InstanceConfig, pc *config.ProjectConfig) (instance.Manager, error) {
		var awsOpts []aws.Option
		if r.opts.Settings.AWSProfile != "" {
			awsOpts = append(awsOpts, aws.WithProfile(r.opts.Settings.AWSProfile))
		}
		return provider.GetInstance(ic, pc, provider.WithAWSOptions(awsOpts...))
	}
	for _, opt := range ropts {
		opt(r)
	}
	return r
}

// Stage returns the last stage reached.
func (r *Runner) Stage() Stage { return r.stage }

// LoadProject runs the stages up to ConfigResolved for the whole project,
// without selecting an instance.
func (r *Runner) LoadProject() (*config.ProjectConfig, string, error) {
	display, abs := config.LocateConfig(r.opts.ConfigPath, r.opts.WorkDir)
	r.stage = StageConfigLocated
	logging.Debug("located configuration", "path", abs)

	raw, err := config.LoadWithDisplayPath(abs, display)
	if err != nil {
		return nil, display, err
	}
	r.stage = StageConfigLoaded

	validated, err := config.Validate(raw)
	if err != nil {
		return nil, display, err
	}
	r.stage = StageConfigValidated

	project, err := config.Resolve(validated, config.ResolveOptions{
		ProjectDir: filepath.Dir(abs),
		HomeDir:    r.opts.HomeDir,
	})
	if err != nil {
		return nil, display, err
	}
	return project, display, nil
}

// Run executes every stage and then the action.
func (r *Runner) Run(ctx context.Context, action Action) error {
	project, display, err := r.LoadProject()
	if err != nil {
		return err
	}

	ic, err := config.GetInstanceConfig(project, r.opts.InstanceName)
	if err != nil {
		return err
	}
	r.stage = StageConfigResolved
	logging.Debug("resolved instance", "instance", ic.Name, "provider", ic.Provider, "region", ic.Region)

	manager, err := r.newManager(ic, project)
	if err != nil {
		return err
	}
	r.stage = StageManagerConstructed

	env := &Env{
		ConfigPath: display,
		Project:    project,
		Instance:   ic,
		Manager:    manager,
		Settings:   r.opts.Settings,
		Executor:   r.executor,
	}
	start := time.Now()
	if err := action.Run(ctx, env); err != nil {
		return err
	}
	r.stage = StageActionExecuted
	logging.Info("action finished", "instance", ic.Name, "provider", manager.Provider(), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}
