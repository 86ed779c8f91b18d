package ssh

// Default tmux session names.
const (
	HostOSSession    = "spotty-ssh-host-os"
	ContainerSession = "spotty-ssh-container"
)

// ContainerShellScript opens a shell inside the running container. It is
// installed on the instance by the startup script.
const ContainerShellScript = "/scripts/container_bash.sh"

// Target selects where the remote session runs.
type Target int

const (
	// TargetContainer attaches to the project container.
	TargetContainer Target = iota
	// TargetHostOS attaches to the instance itself.
	TargetHostOS
)

// DefaultSession returns the session name used when none is given.
func (t Target) DefaultSession() string {
	if t == TargetHostOS {
		return HostOSSession
	}
	return ContainerSession
}

// SessionCommand returns the remote tmux command. "-A" attaches to the
// session when it already exists, so reconnecting resumes the same shell.
func SessionCommand(target Target, session string) []string {
	if session == "" {
		session = target.DefaultSession()
	}

	cmd := []string{"tmux", "new", "-s", session, "-A"}
	if target == TargetContainer {
		cmd = append(cmd, "sudo", ContainerShellScript)
	}
	return cmd
}
