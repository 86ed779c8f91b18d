package aws

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	spottyerrors "github.com/nauticalab/spotty/internal/errors"
	"github.com/nauticalab/spotty/internal/instance"
	"github.com/nauticalab/spotty/internal/logging"
	"github.com/nauticalab/spotty/internal/templates"
)

// Base image of the AMI builder: the newest Ubuntu 22.04 published by Canonical.
const (
	CanonicalOwnerID = "099720109477"
	BaseImageName    = "ubuntu/images/hvm-ssd/ubuntu-jammy-22.04-amd64-server-*"
)

// CreateImage builds an AMI with Docker and the NVIDIA container runtime.
// A builder instance runs the installer as user data and stops itself when
// done; the image is taken from the stopped builder, which is then
// terminated.
func (m *Manager) CreateImage(ctx context.Context, opts instance.ImageOptions) (*instance.Image, error) {
	name := opts.Name
	if name == "" {
		name = m.cfg.AMIName
	}

	client, err := m.client(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := m.findOwnImage(ctx, client, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, spottyerrors.New(spottyerrors.KindProvider,
			fmt.Sprintf("AMI %q already exists (%s), delete it first with \"spotty delete-ami\"", name, aws.ToString(existing.ImageId)))
	}

	bases, err := findImages(ctx, client, CanonicalOwnerID, BaseImageName)
	if err != nil {
		return nil, err
	}
	if len(bases) == 0 {
		return nil, spottyerrors.New(spottyerrors.KindProvider, fmt.Sprintf("base image %q not found in %s", BaseImageName, m.cfg.Region))
	}
	base := bases[0]

	script, err := m.renderer.Render(templates.AMIBuilder, templates.AMIBuilderData{ImageName: name, User: m.cfg.User})
	if err != nil {
		return nil, spottyerrors.Wrap(spottyerrors.KindGeneral, "failed to render AMI builder script", err)
	}

	builderTags := []types.Tag{
		{Key: aws.String("Name"), Value: aws.String("spotty-ami-builder-" + name)},
		{Key: aws.String(TagProject), Value: aws.String(m.cfg.ProjectName)},
		{Key: aws.String(TagAMIBuilder), Value: aws.String(name)},
	}
	input := &ec2.RunInstancesInput{
		ImageId:                           base.ImageId,
		InstanceType:                      types.InstanceType(m.cfg.InstanceType),
		MinCount:                          aws.Int32(1),
		MaxCount:                          aws.Int32(1),
		UserData:                          aws.String(base64.StdEncoding.EncodeToString([]byte(script))),
		InstanceInitiatedShutdownBehavior: types.ShutdownBehaviorStop,
		TagSpecifications: []types.TagSpecification{
			{ResourceType: types.ResourceTypeInstance, Tags: builderTags},
		},
	}
	if opts.KeyName != "" {
		input.KeyName = aws.String(opts.KeyName)
	}
	if m.cfg.AvailabilityZone != "" {
		input.Placement = &types.Placement{AvailabilityZone: aws.String(m.cfg.AvailabilityZone)}
	}

	logging.Debug("launching AMI builder", "base", aws.ToString(base.ImageId), "name", name)
	out, err := client.RunInstances(ctx, input)
	if err != nil {
		return nil, spottyerrors.ProviderError("launching AMI builder", err)
	}
	if len(out.Instances) == 0 {
		return nil, spottyerrors.New(spottyerrors.KindProvider, "launching AMI builder returned no instance")
	}
	builderID := aws.ToString(out.Instances[0].InstanceId)

	defer func() {
		// the builder is removed even when the build was interrupted
		if err := m.terminate(context.WithoutCancel(ctx), client, builderID); err != nil {
			logging.UserWarning("Failed to terminate AMI builder %s: %v", builderID, err)
		}
	}()

	logging.UserInfo("Installing software on builder %s, this takes several minutes...", builderID)
	if err := m.waitForBuilder(ctx, client, builderID); err != nil {
		return nil, err
	}

	created, err := client.CreateImage(ctx, &ec2.CreateImageInput{
		InstanceId:  aws.String(builderID),
		Name:        aws.String(name),
		Description: aws.String("spotty AMI with Docker and NVIDIA container runtime"),
		TagSpecifications: []types.TagSpecification{
			{ResourceType: types.ResourceTypeImage, Tags: builderTags[1:]},
			{ResourceType: types.ResourceTypeSnapshot, Tags: builderTags[1:]},
		},
	})
	if err != nil {
		return nil, spottyerrors.ProviderError("creating AMI", err)
	}
	imageID := aws.ToString(created.ImageId)

	logging.UserInfo("Waiting for AMI %s to become available...", imageID)
	available := ec2.NewImageAvailableWaiter(client, func(o *ec2.ImageAvailableWaiterOptions) {
		m.setPollDelay(&o.MinDelay, &o.MaxDelay)
	})
	if err := available.Wait(ctx, &ec2.DescribeImagesInput{ImageIds: []string{imageID}}, m.waitTimeout); err != nil {
		return nil, spottyerrors.ProviderError(fmt.Sprintf("waiting for AMI %s", imageID), err)
	}

	return &instance.Image{ID: imageID, Name: name}, nil
}

// DeleteImage deregisters the named AMI and deletes its snapshots.
func (m *Manager) DeleteImage(ctx context.Context, name string) error {
	if name == "" {
		name = m.cfg.AMIName
	}

	client, err := m.client(ctx)
	if err != nil {
		return err
	}

	images, err := findImages(ctx, client, "self", name)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return spottyerrors.New(spottyerrors.KindProvider, fmt.Sprintf("AMI %q not found", name))
	}

	for _, img := range images {
		id := aws.ToString(img.ImageId)
		logging.Debug("deregistering AMI", "id", id, "name", name)
		if _, err := client.DeregisterImage(ctx, &ec2.DeregisterImageInput{ImageId: img.ImageId}); err != nil {
			return spottyerrors.ProviderError(fmt.Sprintf("deregistering AMI %s", id), err)
		}

		for _, bdm := range img.BlockDeviceMappings {
			if bdm.Ebs == nil || bdm.Ebs.SnapshotId == nil {
				continue
			}
			if _, err := client.DeleteSnapshot(ctx, &ec2.DeleteSnapshotInput{SnapshotId: bdm.Ebs.SnapshotId}); err != nil {
				return spottyerrors.ProviderError(fmt.Sprintf("deleting snapshot %s", aws.ToString(bdm.Ebs.SnapshotId)), err)
			}
		}
	}
	return nil
}

// waitForBuilder waits until the builder has run its script and powered off,
// then checks the console for the failure marker the script's ERR trap writes.
func (m *Manager) waitForBuilder(ctx context.Context, client EC2API, id string) error {
	stopped := ec2.NewInstanceStoppedWaiter(client, func(o *ec2.InstanceStoppedWaiterOptions) {
		o.Retryable = builderStoppedRetryable
		m.setPollDelay(&o.MinDelay, &o.MaxDelay)
	})
	if err := stopped.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}}, m.imageBuildTimeout); err != nil {
		return spottyerrors.ProviderError(fmt.Sprintf("waiting for AMI builder %s", id), err)
	}

	out, err := client.GetConsoleOutput(ctx, &ec2.GetConsoleOutputInput{InstanceId: aws.String(id), Latest: aws.Bool(true)})
	if err != nil {
		logging.Warn("could not read AMI builder console", "id", id, "error", err)
		return nil
	}
	console, err := base64.StdEncoding.DecodeString(aws.ToString(out.Output))
	if err != nil {
		logging.Warn("could not decode AMI builder console", "id", id, "error", err)
		return nil
	}
	for line := range strings.Lines(string(console)) {
		if _, detail, ok := strings.Cut(line, templates.BuildFailedMarker); ok {
			msg := fmt.Sprintf("AMI builder %s failed to install software", id)
			if detail = strings.Trim(detail, " '\"\r\n"); detail != "" {
				msg += " at script " + detail
			}
			return spottyerrors.New(spottyerrors.KindProvider, msg)
		}
	}
	return nil
}

// builderStoppedRetryable keeps waiting while the builder is booting or
// running its script. The SDK's stopped waiter fails on pending, which is the
// first state of every new instance.
func builderStoppedRetryable(_ context.Context, _ *ec2.DescribeInstancesInput, out *ec2.DescribeInstancesOutput, err error) (bool, error) {
	if err != nil {
		if isAPIError(err, "InvalidInstanceID.NotFound") {
			return true, nil
		}
		return false, err
	}

	found := false
	for _, r := range out.Reservations {
		for _, inst := range r.Instances {
			found = true
			if inst.State == nil {
				return true, nil
			}
			switch inst.State.Name {
			case types.InstanceStateNameStopped:
			case types.InstanceStateNameShuttingDown, types.InstanceStateNameTerminated:
				return false, fmt.Errorf("builder is %s", inst.State.Name)
			default:
				return true, nil
			}
		}
	}
	return !found, nil
}
