package aws

import (
	"context"
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

// fakeEC2 keeps instances and images in memory. Launched instances are
// running on the first poll. AMI builders report pending, then running, then
// stopped, one state per poll.
type fakeEC2 struct {
	mu sync.Mutex

	instances []*types.Instance
	images    []types.Image
	keyPairs  []string

	// pending state changes per instance, applied after each poll by id
	transitions map[string][]types.InstanceStateName
	polled      map[string][]types.InstanceStateName
	console     map[string]string

	runInputs         []*ec2.RunInstancesInput
	createImageInputs []*ec2.CreateImageInput
	terminated        []string
	deregistered      []string
	deletedSnapshots  []string
	importedKeys      []*ec2.ImportKeyPairInput

	runErr error
}

var _ EC2API = (*fakeEC2)(nil)

func (f *fakeEC2) addInstance(project, name, state string) *types.Instance {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst := &types.Instance{
		InstanceId:      aws.String(fmt.Sprintf("i-existing%d", len(f.instances))),
		State:           &types.InstanceState{Name: types.InstanceStateName(state)},
		InstanceType:    types.InstanceTypeT3Large,
		PublicIpAddress: aws.String("3.120.1.2"),
		LaunchTime:      aws.Time(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		Tags: []types.Tag{
			{Key: aws.String(TagProject), Value: aws.String(project)},
			{Key: aws.String(TagInstance), Value: aws.String(name)},
		},
	}
	f.instances = append(f.instances, inst)
	return inst
}

func tagValue(tags []types.Tag, key string) (string, bool) {
	for _, t := range tags {
		if aws.ToString(t.Key) == key {
			return aws.ToString(t.Value), true
		}
	}
	return "", false
}

func matchesFilters(inst *types.Instance, filters []types.Filter) bool {
	for _, flt := range filters {
		name := aws.ToString(flt.Name)
		switch {
		case strings.HasPrefix(name, "tag:"):
			v, ok := tagValue(inst.Tags, strings.TrimPrefix(name, "tag:"))
			if !ok || !slices.Contains(flt.Values, v) {
				return false
			}
		case name == "instance-state-name":
			if !slices.Contains(flt.Values, string(inst.State.Name)) {
				return false
			}
		}
	}
	return true
}

func (f *fakeEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var res types.Reservation
	for _, inst := range f.instances {
		if len(in.InstanceIds) > 0 {
			id := aws.ToString(inst.InstanceId)
			if slices.Contains(in.InstanceIds, id) {
				res.Instances = append(res.Instances, *inst)
				f.advance(inst)
			}
			continue
		}
		if matchesFilters(inst, in.Filters) {
			res.Instances = append(res.Instances, *inst)
		}
	}

	out := &ec2.DescribeInstancesOutput{}
	if len(res.Instances) > 0 {
		out.Reservations = []types.Reservation{res}
	}
	return out, nil
}

func (f *fakeEC2) advance(inst *types.Instance) {
	id := aws.ToString(inst.InstanceId)
	if f.polled == nil {
		f.polled = map[string][]types.InstanceStateName{}
	}
	f.polled[id] = append(f.polled[id], inst.State.Name)

	next := f.transitions[id]
	if len(next) == 0 {
		return
	}
	inst.State = &types.InstanceState{Name: next[0]}
	f.transitions[id] = next[1:]
}

func (f *fakeEC2) DescribeImages(_ context.Context, in *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := &ec2.DescribeImagesOutput{}
	for _, img := range f.images {
		if len(in.ImageIds) > 0 {
			if slices.Contains(in.ImageIds, aws.ToString(img.ImageId)) {
				out.Images = append(out.Images, img)
			}
			continue
		}
		if !slices.Contains(in.Owners, aws.ToString(img.OwnerId)) {
			continue
		}
		if !imageMatches(img, in.Filters) {
			continue
		}
		out.Images = append(out.Images, img)
	}
	return out, nil
}

func imageMatches(img types.Image, filters []types.Filter) bool {
	for _, flt := range filters {
		switch aws.ToString(flt.Name) {
		case "name":
			pattern := flt.Values[0]
			name := aws.ToString(img.Name)
			if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
				if !strings.HasPrefix(name, prefix) {
					return false
				}
			} else if name != pattern {
				return false
			}
		case "state":
			if !slices.Contains(flt.Values, string(img.State)) {
				return false
			}
		}
	}
	return true
}

func (f *fakeEC2) RunInstances(_ context.Context, in *ec2.RunInstancesInput, _ ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.runInputs = append(f.runInputs, in)
	if f.runErr != nil {
		return nil, f.runErr
	}

	id := fmt.Sprintf("i-new%d", len(f.runInputs))
	state := types.InstanceStateNameRunning
	if in.InstanceInitiatedShutdownBehavior == types.ShutdownBehaviorStop {
		// the builder boots, runs its script and powers off
		state = types.InstanceStateNamePending
		if f.transitions == nil {
			f.transitions = map[string][]types.InstanceStateName{}
		}
		if _, ok := f.transitions[id]; !ok {
			f.transitions[id] = []types.InstanceStateName{types.InstanceStateNameRunning, types.InstanceStateNameStopped}
		}
	}

	inst := &types.Instance{
		InstanceId:      aws.String(id),
		State:           &types.InstanceState{Name: state},
		InstanceType:    in.InstanceType,
		PublicIpAddress: aws.String("3.120.9.9"),
		LaunchTime:      aws.Time(time.Now()),
	}
	if in.InstanceMarketOptions != nil && in.InstanceMarketOptions.MarketType == types.MarketTypeSpot {
		inst.InstanceLifecycle = types.InstanceLifecycleTypeSpot
	}
	for _, spec := range in.TagSpecifications {
		if spec.ResourceType == types.ResourceTypeInstance {
			inst.Tags = spec.Tags
		}
	}
	f.instances = append(f.instances, inst)

	return &ec2.RunInstancesOutput{Instances: []types.Instance{*inst}}, nil
}

func (f *fakeEC2) TerminateInstances(_ context.Context, in *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, inst := range f.instances {
		if slices.Contains(in.InstanceIds, aws.ToString(inst.InstanceId)) {
			inst.State = &types.InstanceState{Name: types.InstanceStateNameTerminated}
			delete(f.transitions, aws.ToString(inst.InstanceId))
		}
	}
	f.terminated = append(f.terminated, in.InstanceIds...)
	return &ec2.TerminateInstancesOutput{}, nil
}

func (f *fakeEC2) CreateImage(_ context.Context, in *ec2.CreateImageInput, _ ...func(*ec2.Options)) (*ec2.CreateImageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createImageInputs = append(f.createImageInputs, in)
	id := fmt.Sprintf("ami-new%d", len(f.createImageInputs))
	f.images = append(f.images, types.Image{
		ImageId: aws.String(id),
		Name:    in.Name,
		OwnerId: aws.String("self"),
		State:   types.ImageStateAvailable,
	})
	return &ec2.CreateImageOutput{ImageId: aws.String(id)}, nil
}

func (f *fakeEC2) DeregisterImage(_ context.Context, in *ec2.DeregisterImageInput, _ ...func(*ec2.Options)) (*ec2.DeregisterImageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := aws.ToString(in.ImageId)
	f.deregistered = append(f.deregistered, id)
	f.images = slices.DeleteFunc(f.images, func(img types.Image) bool { return aws.ToString(img.ImageId) == id })
	return &ec2.DeregisterImageOutput{}, nil
}

func (f *fakeEC2) DeleteSnapshot(_ context.Context, in *ec2.DeleteSnapshotInput, _ ...func(*ec2.Options)) (*ec2.DeleteSnapshotOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletedSnapshots = append(f.deletedSnapshots, aws.ToString(in.SnapshotId))
	return &ec2.DeleteSnapshotOutput{}, nil
}

func (f *fakeEC2) GetConsoleOutput(_ context.Context, in *ec2.GetConsoleOutputInput, _ ...func(*ec2.Options)) (*ec2.GetConsoleOutputOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := aws.ToString(in.InstanceId)
	return &ec2.GetConsoleOutputOutput{
		InstanceId: in.InstanceId,
		Output:     aws.String(base64.StdEncoding.EncodeToString([]byte(f.console[id]))),
	}, nil
}

func (f *fakeEC2) DescribeKeyPairs(_ context.Context, in *ec2.DescribeKeyPairsInput, _ ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := &ec2.DescribeKeyPairsOutput{}
	for _, name := range in.KeyNames {
		if !slices.Contains(f.keyPairs, name) {
			return nil, &smithy.GenericAPIError{
				Code:    "InvalidKeyPair.NotFound",
				Message: fmt.Sprintf("The key pair '%s' does not exist", name),
			}
		}
		out.KeyPairs = append(out.KeyPairs, types.KeyPairInfo{KeyName: aws.String(name)})
	}
	return out, nil
}

func (f *fakeEC2) ImportKeyPair(_ context.Context, in *ec2.ImportKeyPairInput, _ ...func(*ec2.Options)) (*ec2.ImportKeyPairOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.importedKeys = append(f.importedKeys, in)
	f.keyPairs = append(f.keyPairs, aws.ToString(in.KeyName))
	return &ec2.ImportKeyPairOutput{KeyName: in.KeyName}, nil
}
