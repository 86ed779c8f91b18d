package aws

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	spottyerrors "github.com/nauticalab/spotty/internal/errors"
)

// writePrivateKey writes a fresh unencrypted OpenSSH key and returns its path
// and authorized_keys line.
func writePrivateKey(t *testing.T) (string, []byte) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))

	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return path, ssh.MarshalAuthorizedKey(sshPub)
}

func TestManager_Start_ExistingKeyPair(t *testing.T) {
	fake := newFake()

	_, err := newTestManager(testConfig(), fake).Start(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fake.importedKeys)
}

func TestManager_Start_ImportsKeyPair(t *testing.T) {
	t.Run("derived from private key", func(t *testing.T) {
		keyPath, want := writePrivateKey(t)
		cfg := testConfig()
		cfg.KeyPath = keyPath
		fake := newFake()
		fake.keyPairs = nil

		_, err := newTestManager(cfg, fake).Start(context.Background())
		require.NoError(t, err)

		require.Len(t, fake.importedKeys, 1)
		assert.Equal(t, cfg.KeyName, aws.ToString(fake.importedKeys[0].KeyName))
		assert.Equal(t, want, fake.importedKeys[0].PublicKeyMaterial)
		require.Len(t, fake.runInputs, 1)
		assert.Equal(t, cfg.KeyName, aws.ToString(fake.runInputs[0].KeyName))
	})

	t.Run("public key file next to private key", func(t *testing.T) {
		keyPath := filepath.Join(t.TempDir(), "id_rsa")
		require.NoError(t, os.WriteFile(keyPath, []byte("encrypted"), 0600))
		_, want := writePrivateKey(t)
		require.NoError(t, os.WriteFile(keyPath+".pub", want, 0644))

		cfg := testConfig()
		cfg.KeyPath = keyPath
		fake := newFake()
		fake.keyPairs = nil

		_, err := newTestManager(cfg, fake).Start(context.Background())
		require.NoError(t, err)
		require.Len(t, fake.importedKeys, 1)
		assert.Equal(t, want, fake.importedKeys[0].PublicKeyMaterial)
	})
}

func TestManager_Start_KeyPairCannotBeImported(t *testing.T) {
	cfg := testConfig()
	cfg.KeyPath = filepath.Join(t.TempDir(), "missing.pem")
	fake := newFake()
	fake.keyPairs = nil

	_, err := newTestManager(cfg, fake).Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, spottyerrors.ErrInvalidField)
	assert.Contains(t, err.Error(), `key pair "spotty-key-my-project-eu-central-1" does not exist`)
	assert.Empty(t, fake.importedKeys)
	assert.Empty(t, fake.runInputs, "nothing is launched without a key pair")
}
