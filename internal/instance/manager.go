// Package instance defines the provider-neutral handle commands use to act on
// a single configured instance.
//
// Providers differ in what they can do, so every Manager reports its
// capabilities and commands check them with Require before calling a
// provider specific operation:
//
//	if err := instance.Require(m, instance.OpCreateImage); err != nil {
//		return err // UnsupportedOperationError naming provider and operation
//	}
//	img, err := m.CreateImage(ctx, instance.ImageOptions{Name: "SpottyAMI"})
package instance

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/nauticalab/spotty/internal/config"
	spottyerrors "github.com/nauticalab/spotty/internal/errors"
)

// Operation names a manager capability.
type Operation string

const (
	OpStart       Operation = "start"
	OpStop        Operation = "stop"
	OpStatus      Operation = "status"
	OpConnect     Operation = "connect"
	OpCreateImage Operation = "create-image"
	OpDeleteImage Operation = "delete-image"
)

// Manager is a live handle bound to one instance configuration and one
// provider. It is owned by a single command invocation.
type Manager interface {
	// Provider returns the provider tag the manager was built for.
	Provider() string
	// Config returns the instance configuration the manager is bound to.
	Config() *config.InstanceConfig
	// Capabilities lists the operations the manager implements.
	Capabilities() []Operation

	Start(ctx context.Context) (*Status, error)
	Stop(ctx context.Context) error
	Status(ctx context.Context) (*Status, error)
	ConnectInfo(ctx context.Context) (*ConnectInfo, error)
	CreateImage(ctx context.Context, opts ImageOptions) (*Image, error)
	DeleteImage(ctx context.Context, name string) error
}

// ConnectInfo is everything needed to open an SSH session to an instance.
type ConnectInfo struct {
	User    string
	Host    string
	Port    int
	KeyPath string
}

// Instance states reported by Status.
const (
	StatePending  = "pending"
	StateRunning  = "running"
	StateStopping = "stopping"
	StateStopped  = "stopped"
)

// Status describes a launched instance.
type Status struct {
	ID               string
	State            string
	InstanceType     string
	AvailabilityZone string
	PublicIP         string
	PrivateIP        string
	LaunchTime       time.Time
	// Lifecycle is "spot" or "on-demand".
	Lifecycle string
}

// ImageOptions configures machine image creation.
type ImageOptions struct {
	// Name of the image; defaults to the instance's AMI name.
	Name string
	// KeyName is an optional key pair attached to the builder instance so
	// the build can be debugged over SSH.
	KeyName string
}

// Image is a created machine image.
type Image struct {
	ID   string
	Name string
}

// Supports reports whether m implements op.
func Supports(m Manager, op Operation) bool {
	return slices.Contains(m.Capabilities(), op)
}

// Require fails with an UnsupportedOperationError when m does not implement op.
func Require(m Manager, op Operation) error {
	if Supports(m, op) {
		return nil
	}
	return spottyerrors.UnsupportedOperation(m.Provider(), string(op))
}

// NotRunning returns the error reported when an operation needs a running
// instance and there is none.
func NotRunning(name string) *spottyerrors.Error {
	return spottyerrors.New(spottyerrors.KindProvider, fmt.Sprintf("instance %q is not running, start it with \"spotty start %s\"", name, name))
}
