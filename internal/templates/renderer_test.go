package templates

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nauticalab/spotty/internal/config"
)

// Command-line flag for updating golden files
// Usage: go test -v ./internal/templates -update-golden
var updateGolden = flag.Bool("update-golden", false, "update golden files")

func testInstanceConfig() *config.InstanceConfig {
	return &config.InstanceConfig{
		ProjectName: "my-project",
		Name:        "gpu-box",
		Volumes: []config.VolumeConfig{
			{Name: "workspace", Directory: "/workspace", Size: 100, DeletionPolicy: config.DeletionPolicyRetain},
			{Name: "data", Directory: "/data", DeletionPolicy: config.DeletionPolicyDelete},
		},
		Container: config.ContainerConfig{
			Image:       "pytorch/pytorch:latest",
			WorkingDir:  "/workspace/project",
			RuntimeArgs: []string{"--gpus", "all"},
			Ports:       []int{8888, 6006},
			Env:         map[string]string{"MODE": "train", "GREETING": "hello world"},
			VolumeMounts: []config.VolumeMount{
				{Name: "workspace", MountPath: "/workspace"},
				{Name: "cache", MountPath: "/root/.cache"},
			},
		},
	}
}

func TestRenderTemplate_AMIBuilder(t *testing.T) {
	out, err := NewRenderer().Render(AMIBuilder, AMIBuilderData{ImageName: "SpottyAMI", User: "ubuntu"})
	require.NoError(t, err)

	goldenPath := filepath.Join("testdata", "golden", AMIBuilder)

	if *updateGolden {
		require.NoError(t, os.MkdirAll(filepath.Dir(goldenPath), 0755))
		require.NoError(t, os.WriteFile(goldenPath, []byte(out), 0644))
		t.Logf("Updated golden file: %s", goldenPath)
		return
	}

	expected, err := os.ReadFile(goldenPath)
	require.NoError(t, err, "Failed to read golden file %s", goldenPath)
	assert.Equal(t, string(expected), out, "Template output doesn't match golden file for %s", AMIBuilder)
}

func TestRenderTemplate_Startup(t *testing.T) {
	data, err := NewStartupData(testInstanceConfig())
	require.NoError(t, err)

	out, err := NewRenderer().Render(StartupScript, data)
	require.NoError(t, err)

	for _, want := range []string{
		"# spotty startup script for my-project/gpu-box",
		"while [ ! -b /dev/xvdf ]; do sleep 1; done",
		"mount /dev/xvdf /workspace",
		"mount /dev/xvdg /data",
		"cat > /scripts/container_bash.sh <<'SPOTTY_EOF'",
		"docker exec -it -w /workspace/project spotty-my-project-gpu-box /bin/bash",
		"docker pull pytorch/pytorch:latest",
		"docker run -d --name spotty-my-project-gpu-box --restart unless-stopped \\\n  -v /workspace:/workspace \\\n",
		"  -v /mnt/spotty/cache:/root/.cache \\\n",
		"  -p 8888:8888 \\\n  -p 6006:6006 \\\n",
		"  -e 'GREETING=hello world' \\\n  -e MODE=train \\\n",
		"  --gpus \\\n  all \\\n",
		"  -w /workspace/project \\\n  pytorch/pytorch:latest sleep infinity\n",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "# user startup script")
}

func TestRenderTemplate_StartupWithoutImage(t *testing.T) {
	cfg := testInstanceConfig()
	cfg.Container = config.ContainerConfig{WorkingDir: "/workspace/project"}
	cfg.Volumes = nil

	data, err := NewStartupData(cfg)
	require.NoError(t, err)

	out, err := NewRenderer().Render(StartupScript, data)
	require.NoError(t, err)

	assert.NotContains(t, out, "docker run")
	assert.NotContains(t, out, "mount ")
	assert.Contains(t, out, "/scripts/container_bash.sh")
}

func TestRenderTemplate_StartupQuotesVolumeDirectory(t *testing.T) {
	cfg := testInstanceConfig()
	cfg.Volumes = []config.VolumeConfig{{Name: "workspace", Directory: "/my data"}}
	cfg.Container.VolumeMounts = []config.VolumeMount{{Name: "workspace", MountPath: "/workspace"}}

	data, err := NewStartupData(cfg)
	require.NoError(t, err)

	out, err := NewRenderer().Render(StartupScript, data)
	require.NoError(t, err)

	assert.Contains(t, out, "mkdir -p '/my data'\n")
	assert.Contains(t, out, "mount /dev/xvdf '/my data'\n")
	assert.Contains(t, out, "  -v '/my data':/workspace \\\n")
	assert.NotContains(t, out, "mkdir -p /my data")
}

func TestRenderTemplate_AMIBuilderMarkers(t *testing.T) {
	out, err := NewRenderer().Render(AMIBuilder, AMIBuilderData{ImageName: "SpottyAMI", User: "ubuntu"})
	require.NoError(t, err)

	trap := strings.Index(out, "trap 'build_failed $LINENO' ERR")
	install := strings.Index(out, "apt-get update")
	require.NotEqual(t, -1, trap)
	assert.Less(t, trap, install, "ERR trap must be set before the first install step")
	assert.Contains(t, out, "  echo \""+BuildFailedMarker+" line $1\" > /dev/console\n  shutdown -h now\n")
	assert.NotContains(t, out[trap:], BuildFailedMarker, "only the function body names the failure marker")
	assert.Contains(t, out, "echo \""+BuildSucceededMarker+"\" > /dev/console\nshutdown -h now")
}

func TestNewStartupData_UserScript(t *testing.T) {
	script := filepath.Join(t.TempDir(), "setup.sh")
	require.NoError(t, os.WriteFile(script, []byte("pip install -r requirements.txt\n"), 0644))

	cfg := testInstanceConfig()
	cfg.StartupScript = script

	data, err := NewStartupData(cfg)
	require.NoError(t, err)

	out, err := NewRenderer().Render(StartupScript, data)
	require.NoError(t, err)
	assert.Contains(t, out, "# user startup script\npip install -r requirements.txt\n")
}

func TestNewStartupData_MissingUserScript(t *testing.T) {
	cfg := testInstanceConfig()
	cfg.StartupScript = filepath.Join(t.TempDir(), "missing.sh")

	_, err := NewStartupData(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup script")
}

func TestRenderTemplate_ErrorCases(t *testing.T) {
	t.Run("invalid template name", func(t *testing.T) {
		_, err := NewRenderer().Render("nonexistent", nil)
		assert.Error(t, err)
	})

	t.Run("data missing fields", func(t *testing.T) {
		_, err := NewRenderer().Render(AMIBuilder, struct{}{})
		assert.Error(t, err)
	})
}

func TestDeviceName(t *testing.T) {
	assert.Equal(t, "/dev/xvdf", DeviceName(0))
	assert.Equal(t, "/dev/xvdg", DeviceName(1))
	assert.Equal(t, "/dev/xvdh", DeviceName(2))
}
