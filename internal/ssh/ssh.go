// Package ssh builds the ssh command line used to reach an instance and the
// tmux session command run on the remote side.
package ssh

import (
	"context"
	"fmt"

	"github.com/kballard/go-shellquote"

	spottyerrors "github.com/nauticalab/spotty/internal/errors"
	"github.com/nauticalab/spotty/internal/logging"
	"github.com/nauticalab/spotty/internal/system"
)

// Default SSH configuration values.
const (
	DefaultBinary = "ssh"
	DefaultPort   = 22
)

// Options configures SSH connection parameters.
type Options struct {
	User               string
	Host               string
	Port               int
	KeyPath            string
	StrictHostKeyCheck bool
	KnownHostsFile     string
	ConnectTimeout     int
	RequestTTY         bool
}

// DefaultOptions returns Options for connecting to a freshly launched
// instance. Host keys change with every launch, so they are not checked or
// remembered.
func DefaultOptions(user, host string, port int, keyPath string) Options {
	return Options{
		User:               user,
		Host:               host,
		Port:               port,
		KeyPath:            keyPath,
		StrictHostKeyCheck: false,
		KnownHostsFile:     "/dev/null",
	}
}

// WithTTY returns a copy with TTY requested.
func (o Options) WithTTY() Options {
	o.RequestTTY = true
	return o
}

// WithTimeout returns a copy with the specified connect timeout.
func (o Options) WithTimeout(seconds int) Options {
	o.ConnectTimeout = seconds
	return o
}

// BaseArgs returns the common SSH arguments (options only, no user@host).
func (o Options) BaseArgs() []string {
	var args []string

	if o.KeyPath != "" {
		args = append(args, "-i", o.KeyPath)
	}

	if !o.StrictHostKeyCheck {
		args = append(args, "-o", "StrictHostKeyChecking=no")
	}

	if o.KnownHostsFile != "" {
		args = append(args, "-o", fmt.Sprintf("UserKnownHostsFile=%s", o.KnownHostsFile))
	}

	if o.ConnectTimeout > 0 {
		args = append(args, "-o", fmt.Sprintf("ConnectTimeout=%d", o.ConnectTimeout))
	}

	if o.Port != 0 && o.Port != DefaultPort {
		args = append(args, "-p", fmt.Sprintf("%d", o.Port))
	}

	if o.RequestTTY {
		args = append(args, "-t")
	}

	return args
}

// Destination returns the user@host string.
func (o Options) Destination() string {
	return fmt.Sprintf("%s@%s", o.User, o.Host)
}

// BuildArgs returns complete SSH arguments for executing a command.
func (o Options) BuildArgs(command ...string) []string {
	args := o.BaseArgs()
	args = append(args, o.Destination())
	args = append(args, command...)
	return args
}

// Interactive opens an interactive session running remoteCmd and blocks
// until it ends. A failing ssh process is reported as an SSH error.
func Interactive(ctx context.Context, executor system.CommandExecutor, binary string, opts Options, remoteCmd []string) error {
	if binary == "" {
		binary = DefaultBinary
	}

	args := opts.WithTTY().BuildArgs(shellquote.Join(remoteCmd...))
	logging.Debug("starting ssh session", "binary", binary, "args", args)

	if err := executor.ExecuteInteractive(ctx, binary, args...); err != nil {
		return spottyerrors.SSHError(fmt.Sprintf("ssh session to %s failed", opts.Destination()), err)
	}
	return nil
}
