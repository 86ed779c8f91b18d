package aws

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"golang.org/x/crypto/ssh"

	spottyerrors "github.com/nauticalab/spotty/internal/errors"
	"github.com/nauticalab/spotty/internal/logging"
)

// ensureKeyPair imports the public half of keyPath as the configured EC2 key
// pair when the region does not have it yet.
func (m *Manager) ensureKeyPair(ctx context.Context, client EC2API) error {
	_, err := client.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{KeyNames: []string{m.cfg.KeyName}})
	if err == nil {
		return nil
	}
	if !isAPIError(err, "InvalidKeyPair.NotFound") {
		return spottyerrors.ProviderError(fmt.Sprintf("describing key pair %q", m.cfg.KeyName), err)
	}

	pub, err := publicKey(m.cfg.KeyPath)
	if err != nil {
		return spottyerrors.Wrap(spottyerrors.KindInvalidField,
			fmt.Sprintf("key pair %q does not exist and cannot be imported from %s", m.cfg.KeyName, m.cfg.KeyPath), err)
	}

	logging.UserInfo("Importing key pair %q from %s", m.cfg.KeyName, m.cfg.KeyPath)
	_, err = client.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           aws.String(m.cfg.KeyName),
		PublicKeyMaterial: pub,
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeKeyPair,
			Tags:         []types.Tag{{Key: aws.String(TagProject), Value: aws.String(m.cfg.ProjectName)}},
		}},
	})
	if err != nil {
		return spottyerrors.ProviderError(fmt.Sprintf("importing key pair %q", m.cfg.KeyName), err)
	}
	return nil
}

// publicKey returns the authorized_keys line for the private key at path.
// A "<path>.pub" file next to it wins, so passphrase-protected keys work.
func publicKey(path string) ([]byte, error) {
	if pub, err := os.ReadFile(path + ".pub"); err == nil {
		if _, _, _, _, err := ssh.ParseAuthorizedKey(pub); err != nil {
			return nil, fmt.Errorf("invalid public key %s.pub: %w", path, err)
		}
		return pub, nil
	}

	private, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(private)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return ssh.MarshalAuthorizedKey(signer.PublicKey()), nil
}
