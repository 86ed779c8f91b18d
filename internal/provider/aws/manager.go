// Package aws implements the instance manager for Amazon EC2: spot and
// on-demand instances launched from a prepared AMI, and the workflow that
// builds that AMI.
package aws

import (
	"context"
	"encoding/base64"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/nauticalab/spotty/internal/config"
	spottyerrors "github.com/nauticalab/spotty/internal/errors"
	"github.com/nauticalab/spotty/internal/git"
	"github.com/nauticalab/spotty/internal/instance"
	"github.com/nauticalab/spotty/internal/logging"
	"github.com/nauticalab/spotty/internal/templates"
)

// ProviderName is the provider tag selecting this manager.
const ProviderName = "aws"

// Resource tags written on everything spotty creates.
const (
	TagProject    = "spotty:project"
	TagInstance   = "spotty:instance"
	TagCommit     = "spotty:commit"
	TagAMIBuilder = "spotty:ami-builder"
)

const (
	// DefaultVolumeSize is the size in GB of a volume with no size set.
	DefaultVolumeSize = 50
	// DefaultWaitTimeout bounds waiting for an instance state change.
	DefaultWaitTimeout = 10 * time.Minute
	// DefaultImageBuildTimeout bounds the AMI build.
	DefaultImageBuildTimeout = 60 * time.Minute
)

// liveStates are the states of an instance that still exists.
var liveStates = []string{
	string(types.InstanceStateNamePending),
	string(types.InstanceStateNameRunning),
	string(types.InstanceStateNameStopping),
	string(types.InstanceStateNameStopped),
}

// Manager manages the EC2 instance of one configured spotty instance.
type Manager struct {
	cfg     *config.InstanceConfig
	project *config.ProjectConfig

	ec2     EC2API
	profile string

	renderer          *templates.Renderer
	gitLookup         func(path string) (*git.Info, error)
	waitTimeout       time.Duration
	imageBuildTimeout time.Duration
	pollInterval      time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithClient uses c instead of a client built from the AWS configuration.
func WithClient(c EC2API) Option {
	return func(m *Manager) { m.ec2 = c }
}

// WithProfile selects a named profile from the shared AWS configuration.
func WithProfile(profile string) Option {
	return func(m *Manager) { m.profile = profile }
}

// WithWaitTimeouts overrides how long state changes and image builds may take.
func WithWaitTimeouts(wait, imageBuild time.Duration) Option {
	return func(m *Manager) {
		m.waitTimeout = wait
		m.imageBuildTimeout = imageBuild
	}
}

// WithPollInterval sets a fixed delay between state polls instead of the
// SDK's backoff.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.pollInterval = d }
}

// WithGitLookup overrides how the project's commit is looked up.
func WithGitLookup(fn func(path string) (*git.Info, error)) Option {
	return func(m *Manager) { m.gitLookup = fn }
}

// NewManager creates a manager for cfg. No AWS calls are made until an
// operation runs.
func NewManager(cfg *config.InstanceConfig, project *config.ProjectConfig, opts ...Option) *Manager {
	m := &Manager{
		cfg:               cfg,
		project:           project,
		renderer:          templates.NewRenderer(),
		gitLookup:         git.Lookup,
		waitTimeout:       DefaultWaitTimeout,
		imageBuildTimeout: DefaultImageBuildTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ instance.Manager = (*Manager)(nil)

func (m *Manager) Provider() string { return ProviderName }

func (m *Manager) Config() *config.InstanceConfig { return m.cfg }

func (m *Manager) Capabilities() []instance.Operation {
	return []instance.Operation{
		instance.OpStart,
		instance.OpStop,
		instance.OpStatus,
		instance.OpConnect,
		instance.OpCreateImage,
		instance.OpDeleteImage,
	}
}

// resourceName is the Name tag of the instance and its volumes.
func (m *Manager) resourceName() string {
	return templates.ContainerName(m.cfg.ProjectName, m.cfg.Name)
}

// findInstance returns the live EC2 instance of this spotty instance, or nil.
func (m *Manager) findInstance(ctx context.Context, client EC2API) (*types.Instance, error) {
	input := &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{Name: aws.String("tag:" + TagProject), Values: []string{m.cfg.ProjectName}},
			{Name: aws.String("tag:" + TagInstance), Values: []string{m.cfg.Name}},
			{Name: aws.String("instance-state-name"), Values: liveStates},
		},
	}

	var found *types.Instance
	paginator := ec2.NewDescribeInstancesPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, spottyerrors.ProviderError("describing instances", err)
		}
		for _, r := range page.Reservations {
			for i := range r.Instances {
				inst := r.Instances[i]
				if found == nil || aws.ToTime(inst.LaunchTime).After(aws.ToTime(found.LaunchTime)) {
					found = &inst
				}
			}
		}
	}
	return found, nil
}

// Status describes the live instance, or returns nil when there is none.
func (m *Manager) Status(ctx context.Context) (*instance.Status, error) {
	client, err := m.client(ctx)
	if err != nil {
		return nil, err
	}

	inst, err := m.findInstance(ctx, client)
	if err != nil || inst == nil {
		return nil, err
	}
	return toStatus(inst), nil
}

func toStatus(inst *types.Instance) *instance.Status {
	status := &instance.Status{
		ID:           aws.ToString(inst.InstanceId),
		InstanceType: string(inst.InstanceType),
		PublicIP:     aws.ToString(inst.PublicIpAddress),
		PrivateIP:    aws.ToString(inst.PrivateIpAddress),
		LaunchTime:   aws.ToTime(inst.LaunchTime),
		Lifecycle:    "on-demand",
	}
	if inst.State != nil {
		status.State = string(inst.State.Name)
	}
	if inst.Placement != nil {
		status.AvailabilityZone = aws.ToString(inst.Placement.AvailabilityZone)
	}
	if inst.InstanceLifecycle == types.InstanceLifecycleTypeSpot {
		status.Lifecycle = "spot"
	}
	return status
}

// ConnectInfo returns where to SSH to. With localSshPort set the instance is
// expected behind a local tunnel on 127.0.0.1.
func (m *Manager) ConnectInfo(ctx context.Context) (*instance.ConnectInfo, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	if status == nil || status.State != instance.StateRunning {
		return nil, instance.NotRunning(m.cfg.Name)
	}

	info := &instance.ConnectInfo{
		User:    m.cfg.User,
		Host:    status.PublicIP,
		KeyPath: m.cfg.KeyPath,
	}
	if m.cfg.LocalSSHPort != 0 {
		info.Host = "127.0.0.1"
		info.Port = m.cfg.LocalSSHPort
	}
	if info.Host == "" {
		return nil, spottyerrors.New(spottyerrors.KindProvider,
			fmt.Sprintf("instance %q (%s) has no public IP address, set localSshPort to connect through a tunnel", m.cfg.Name, status.ID))
	}
	return info, nil
}

// Start launches the instance and waits until it is running.
func (m *Manager) Start(ctx context.Context) (*instance.Status, error) {
	client, err := m.client(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := m.findInstance(ctx, client)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, spottyerrors.New(spottyerrors.KindProvider,
			fmt.Sprintf("instance %q is already running (%s)", m.cfg.Name, aws.ToString(existing.InstanceId)))
	}

	image, err := m.findOwnImage(ctx, client, m.cfg.AMIName)
	if err != nil {
		return nil, err
	}
	if image == nil {
		return nil, spottyerrors.New(spottyerrors.KindProvider,
			fmt.Sprintf("AMI %q not found, create it with \"spotty create-ami\"", m.cfg.AMIName))
	}

	if err := m.ensureKeyPair(ctx, client); err != nil {
		return nil, err
	}

	userData, err := m.startupUserData()
	if err != nil {
		return nil, err
	}

	input := m.runInstancesInput(image, userData)
	logging.Debug("launching instance", "name", m.cfg.Name, "type", m.cfg.InstanceType, "ami", aws.ToString(image.ImageId), "spot", !m.cfg.OnDemand)

	out, err := client.RunInstances(ctx, input)
	if err != nil {
		return nil, spottyerrors.ProviderError("launching instance", err)
	}
	if len(out.Instances) == 0 {
		return nil, spottyerrors.New(spottyerrors.KindProvider, "launching instance returned no instance")
	}
	id := aws.ToString(out.Instances[0].InstanceId)

	logging.UserInfo("Waiting for instance %s to start...", id)
	waiter := ec2.NewInstanceRunningWaiter(client, func(o *ec2.InstanceRunningWaiterOptions) {
		m.setPollDelay(&o.MinDelay, &o.MaxDelay)
	})
	described, err := waiter.WaitForOutput(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}}, m.waitTimeout)
	if err != nil {
		return nil, spottyerrors.ProviderError(fmt.Sprintf("waiting for instance %s", id), err)
	}

	if len(described.Reservations) > 0 && len(described.Reservations[0].Instances) > 0 {
		return toStatus(&described.Reservations[0].Instances[0]), nil
	}
	return &instance.Status{ID: id, State: instance.StateRunning}, nil
}

func (m *Manager) startupUserData() (string, error) {
	data, err := templates.NewStartupData(m.cfg)
	if err != nil {
		return "", spottyerrors.Wrap(spottyerrors.KindGeneral, "failed to prepare startup script", err)
	}
	script, err := m.renderer.Render(templates.StartupScript, data)
	if err != nil {
		return "", spottyerrors.Wrap(spottyerrors.KindGeneral, "failed to render startup script", err)
	}
	return base64.StdEncoding.EncodeToString([]byte(script)), nil
}

func (m *Manager) instanceTags() []types.Tag {
	tags := []types.Tag{
		{Key: aws.String("Name"), Value: aws.String(m.resourceName())},
		{Key: aws.String(TagProject), Value: aws.String(m.cfg.ProjectName)},
		{Key: aws.String(TagInstance), Value: aws.String(m.cfg.Name)},
	}

	info, err := m.gitLookup(m.cfg.ProjectDir)
	if err != nil {
		logging.Warn("instance will not be tagged with a commit", "dir", m.cfg.ProjectDir, "error", err)
	}
	if info != nil {
		tags = append(tags, types.Tag{Key: aws.String(TagCommit), Value: aws.String(info.Describe())})
	}
	return tags
}

func (m *Manager) runInstancesInput(image *types.Image, userData string) *ec2.RunInstancesInput {
	tags := m.instanceTags()

	input := &ec2.RunInstancesInput{
		ImageId:      image.ImageId,
		InstanceType: types.InstanceType(m.cfg.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		KeyName:      aws.String(m.cfg.KeyName),
		UserData:     aws.String(userData),
		TagSpecifications: []types.TagSpecification{
			{ResourceType: types.ResourceTypeInstance, Tags: tags},
			{ResourceType: types.ResourceTypeVolume, Tags: tags},
		},
		InstanceInitiatedShutdownBehavior: types.ShutdownBehaviorTerminate,
	}

	if m.cfg.AvailabilityZone != "" {
		input.Placement = &types.Placement{AvailabilityZone: aws.String(m.cfg.AvailabilityZone)}
	}

	if m.cfg.RootVolumeSize > 0 {
		input.BlockDeviceMappings = append(input.BlockDeviceMappings, types.BlockDeviceMapping{
			DeviceName: image.RootDeviceName,
			Ebs: &types.EbsBlockDevice{
				VolumeSize:          aws.Int32(int32(m.cfg.RootVolumeSize)),
				VolumeType:          types.VolumeTypeGp3,
				DeleteOnTermination: aws.Bool(true),
			},
		})
	}

	for i, v := range m.cfg.Volumes {
		size := v.Size
		if size == 0 {
			size = DefaultVolumeSize
		}
		input.BlockDeviceMappings = append(input.BlockDeviceMappings, types.BlockDeviceMapping{
			DeviceName: aws.String(templates.DeviceName(i)),
			Ebs: &types.EbsBlockDevice{
				VolumeSize:          aws.Int32(int32(size)),
				VolumeType:          types.VolumeTypeGp3,
				DeleteOnTermination: aws.Bool(v.DeletionPolicy == config.DeletionPolicyDelete),
			},
		})
	}

	if !m.cfg.OnDemand {
		spot := &types.SpotMarketOptions{
			SpotInstanceType:             types.SpotInstanceTypeOneTime,
			InstanceInterruptionBehavior: types.InstanceInterruptionBehaviorTerminate,
		}
		if m.cfg.MaxPrice > 0 {
			spot.MaxPrice = aws.String(strconv.FormatFloat(m.cfg.MaxPrice, 'f', -1, 64))
		}
		input.InstanceMarketOptions = &types.InstanceMarketOptionsRequest{
			MarketType:  types.MarketTypeSpot,
			SpotOptions: spot,
		}
	}

	return input
}

// Stop terminates the instance and waits until it is gone.
func (m *Manager) Stop(ctx context.Context) error {
	client, err := m.client(ctx)
	if err != nil {
		return err
	}

	inst, err := m.findInstance(ctx, client)
	if err != nil {
		return err
	}
	if inst == nil {
		return instance.NotRunning(m.cfg.Name)
	}

	id := aws.ToString(inst.InstanceId)
	if err := m.terminate(ctx, client, id); err != nil {
		return err
	}

	logging.UserInfo("Waiting for instance %s to terminate...", id)
	waiter := ec2.NewInstanceTerminatedWaiter(client, func(o *ec2.InstanceTerminatedWaiterOptions) {
		m.setPollDelay(&o.MinDelay, &o.MaxDelay)
	})
	if err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}}, m.waitTimeout); err != nil {
		return spottyerrors.ProviderError(fmt.Sprintf("waiting for instance %s to terminate", id), err)
	}
	return nil
}

func (m *Manager) setPollDelay(minDelay, maxDelay *time.Duration) {
	if m.pollInterval > 0 {
		*minDelay = m.pollInterval
		*maxDelay = m.pollInterval
	}
}

func (m *Manager) terminate(ctx context.Context, client EC2API, id string) error {
	logging.Debug("terminating instance", "id", id)
	if _, err := client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{id}}); err != nil {
		return spottyerrors.ProviderError(fmt.Sprintf("terminating instance %s", id), err)
	}
	return nil
}

// findImages returns images matching name from the given owner, newest first.
func findImages(ctx context.Context, client EC2API, owner, name string) ([]types.Image, error) {
	out, err := client.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{owner},
		Filters: []types.Filter{
			{Name: aws.String("name"), Values: []string{name}},
			{Name: aws.String("state"), Values: []string{string(types.ImageStateAvailable)}},
		},
	})
	if err != nil {
		return nil, spottyerrors.ProviderError("describing images", err)
	}

	images := out.Images
	// CreationDate is ISO 8601, so string order is time order
	slices.SortFunc(images, func(a, b types.Image) int {
		switch ca, cb := aws.ToString(a.CreationDate), aws.ToString(b.CreationDate); {
		case ca > cb:
			return -1
		case ca < cb:
			return 1
		}
		return 0
	})
	return images, nil
}

func (m *Manager) findOwnImage(ctx context.Context, client EC2API, name string) (*types.Image, error) {
	images, err := findImages(ctx, client, "self", name)
	if err != nil || len(images) == 0 {
		return nil, err
	}
	return &images[0], nil
}
