package aws

import (
	"context"
	"errors"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/smithy-go"

	spottyerrors "github.com/nauticalab/spotty/internal/errors"
	"github.com/nauticalab/spotty/internal/logging"
)

// EC2API is the subset of the EC2 client the manager uses. *ec2.Client
// satisfies it; tests substitute a fake.
type EC2API interface {
	ec2.DescribeInstancesAPIClient
	ec2.DescribeImagesAPIClient

	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
	CreateImage(ctx context.Context, params *ec2.CreateImageInput, optFns ...func(*ec2.Options)) (*ec2.CreateImageOutput, error)
	DeregisterImage(ctx context.Context, params *ec2.DeregisterImageInput, optFns ...func(*ec2.Options)) (*ec2.DeregisterImageOutput, error)
	DeleteSnapshot(ctx context.Context, params *ec2.DeleteSnapshotInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSnapshotOutput, error)
	GetConsoleOutput(ctx context.Context, params *ec2.GetConsoleOutputInput, optFns ...func(*ec2.Options)) (*ec2.GetConsoleOutputOutput, error)
	DescribeKeyPairs(ctx context.Context, params *ec2.DescribeKeyPairsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error)
	ImportKeyPair(ctx context.Context, params *ec2.ImportKeyPairInput, optFns ...func(*ec2.Options)) (*ec2.ImportKeyPairOutput, error)
}

var _ EC2API = (*ec2.Client)(nil)

// client returns the EC2 client, building it from the shared AWS
// configuration on first use.
func (m *Manager) client(ctx context.Context) (EC2API, error) {
	if m.ec2 != nil {
		return m.ec2, nil
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(m.cfg.Region),
	}
	if m.profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(m.profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, spottyerrors.ProviderError("loading AWS configuration", err)
	}
	logging.Debug("loaded AWS configuration", "region", awsCfg.Region, "profile", m.profile)

	m.ec2 = ec2.NewFromConfig(awsCfg, func(o *ec2.Options) {
		o.RetryMaxAttempts = 5
	})
	return m.ec2, nil
}

// isAPIError reports whether err is an EC2 API error with the given code.
func isAPIError(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
