package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nauticalab/spotty/internal/instance"
	"github.com/nauticalab/spotty/internal/logging"
	"github.com/nauticalab/spotty/internal/ssh"
)

// SSHOptions are the flags of the ssh command.
type SSHOptions struct {
	HostOS      bool
	SessionName string
}

// SSH connects to the instance and attaches to a tmux session, either on the
// host OS or inside the project container.
func SSH(opts SSHOptions) Action {
	return ActionFunc(func(ctx context.Context, env *Env) error {
		if err := instance.Require(env.Manager, instance.OpConnect); err != nil {
			return err
		}

		info, err := env.Manager.ConnectInfo(ctx)
		if err != nil {
			return err
		}

		target := ssh.TargetContainer
		if opts.HostOS {
			target = ssh.TargetHostOS
		}

		sshOpts := ssh.DefaultOptions(info.User, info.Host, info.Port, info.KeyPath)
		if env.Settings.ConnectTimeout > 0 {
			sshOpts = sshOpts.WithTimeout(env.Settings.ConnectTimeout)
		}
		return ssh.Interactive(ctx, env.Executor, env.Settings.SSHBinary, sshOpts, ssh.SessionCommand(target, opts.SessionName))
	})
}

// CreateAMI builds the machine image the instance is launched from.
func CreateAMI(keyName string) Action {
	return ActionFunc(func(ctx context.Context, env *Env) error {
		if err := instance.Require(env.Manager, instance.OpCreateImage); err != nil {
			return err
		}

		logging.UserInfo("Creating AMI %q in %s...", env.Instance.AMIName, env.Instance.Region)
		image, err := env.Manager.CreateImage(ctx, instance.ImageOptions{Name: env.Instance.AMIName, KeyName: keyName})
		if err != nil {
			return err
		}

		logging.UserSuccess("AMI %q (%s) created", image.Name, image.ID)
		return nil
	})
}

// DeleteAMI deregisters the instance's machine image.
func DeleteAMI() Action {
	return ActionFunc(func(ctx context.Context, env *Env) error {
		if err := instance.Require(env.Manager, instance.OpDeleteImage); err != nil {
			return err
		}

		if err := env.Manager.DeleteImage(ctx, env.Instance.AMIName); err != nil {
			return err
		}

		logging.UserSuccess("AMI %q deleted", env.Instance.AMIName)
		return nil
	})
}

// Start launches the instance.
func Start() Action {
	return ActionFunc(func(ctx context.Context, env *Env) error {
		if err := instance.Require(env.Manager, instance.OpStart); err != nil {
			return err
		}

		kind := "spot"
		if env.Instance.OnDemand {
			kind = "on-demand"
		}
		logging.UserInfo("Starting %s %s instance %q in %s...", kind, env.Instance.InstanceType, env.Instance.Name, env.Instance.Region)

		status, err := env.Manager.Start(ctx)
		if err != nil {
			return err
		}

		logging.UserSuccess("Instance %q is running (%s)", env.Instance.Name, status.ID)
		if status.PublicIP != "" {
			logging.UserInfo("Public IP: %s", status.PublicIP)
		}
		logging.UserInfo("Connect with: spotty ssh %s", env.Instance.Name)
		return nil
	})
}

// Stop terminates the instance.
func Stop() Action {
	return ActionFunc(func(ctx context.Context, env *Env) error {
		if err := instance.Require(env.Manager, instance.OpStop); err != nil {
			return err
		}

		if err := env.Manager.Stop(ctx); err != nil {
			return err
		}

		logging.UserSuccess("Instance %q terminated", env.Instance.Name)
		return nil
	})
}

var labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

// Status prints the instance state to w.
func Status(w io.Writer) Action {
	return ActionFunc(func(ctx context.Context, env *Env) error {
		if err := instance.Require(env.Manager, instance.OpStatus); err != nil {
			return err
		}

		status, err := env.Manager.Status(ctx)
		if err != nil {
			return err
		}
		if status == nil {
			logging.UserInfo("Instance %q is not running", env.Instance.Name)
			return nil
		}

		printStatus(w, env.Instance.Name, status)
		return nil
	})
}

func printStatus(w io.Writer, name string, s *instance.Status) {
	field := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-18s", label+":")), value)
	}

	field("Instance", name)
	field("ID", s.ID)
	field("State", s.State)
	field("Type", s.InstanceType)
	field("Lifecycle", s.Lifecycle)
	field("Availability Zone", s.AvailabilityZone)
	field("Public IP", s.PublicIP)
	field("Private IP", s.PrivateIP)
	if !s.LaunchTime.IsZero() {
		field("Launched", s.LaunchTime.UTC().Format(time.RFC3339))
	}
}
