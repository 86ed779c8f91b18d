package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nauticalab/spotty/internal/config"
	"github.com/nauticalab/spotty/internal/instance"
)

const projectYAML = `project:
  name: my-project
container:
  image: pytorch/pytorch:latest
defaults:
  provider: aws
  region: eu-central-1
  keyPath: keys/id_rsa
instances:
  - name: default
    parameters:
      instanceType: t3.large
  - name: gpu-box
    parameters:
      instanceType: p3.2xlarge
      localSshPort: 2222
`

func writeProject(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// fakeManager records calls and answers with canned values.
type fakeManager struct {
	cfg          *config.InstanceConfig
	capabilities []instance.Operation

	status  *instance.Status
	connect *instance.ConnectInfo
	image   *instance.Image
	err     error

	calls      []string
	imageOpts  instance.ImageOptions
	deletedAMI string
}

func newFakeManager(cfg *config.InstanceConfig) *fakeManager {
	return &fakeManager{
		cfg: cfg,
		capabilities: []instance.Operation{
			instance.OpStart, instance.OpStop, instance.OpStatus,
			instance.OpConnect, instance.OpCreateImage, instance.OpDeleteImage,
		},
	}
}

func (f *fakeManager) Provider() string { return "fake" }

func (f *fakeManager) Config() *config.InstanceConfig { return f.cfg }

func (f *fakeManager) Capabilities() []instance.Operation { return f.capabilities }

func (f *fakeManager) Start(context.Context) (*instance.Status, error) {
	f.calls = append(f.calls, "start")
	return f.status, f.err
}

func (f *fakeManager) Stop(context.Context) error {
	f.calls = append(f.calls, "stop")
	return f.err
}

func (f *fakeManager) Status(context.Context) (*instance.Status, error) {
	f.calls = append(f.calls, "status")
	return f.status, f.err
}

func (f *fakeManager) ConnectInfo(context.Context) (*instance.ConnectInfo, error) {
	f.calls = append(f.calls, "connect")
	return f.connect, f.err
}

func (f *fakeManager) CreateImage(_ context.Context, opts instance.ImageOptions) (*instance.Image, error) {
	f.calls = append(f.calls, "create-image")
	f.imageOpts = opts
	return f.image, f.err
}

func (f *fakeManager) DeleteImage(_ context.Context, name string) error {
	f.calls = append(f.calls, "delete-image")
	f.deletedAMI = name
	return f.err
}
