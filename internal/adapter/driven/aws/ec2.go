package aws

import (
	"context"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

var _ driven.ResourceSource = (*EC2Source)(nil)

// EC2Source lists the instances of one region.
type EC2Source struct {
	api     ec2.DescribeInstancesAPIClient
	region  string
	timeout time.Duration
}

// NewEC2Source lists instances in region through api.
func NewEC2Source(api ec2.DescribeInstancesAPIClient, region string, timeout time.Duration) *EC2Source {
	return &EC2Source{api: api, region: region, timeout: timeout}
}

func (s *EC2Source) Kind() model.ServiceKind { return model.ServiceEC2 }

func (s *EC2Source) FetchAll(ctx context.Context) ([]model.NormalizedResource, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out := []model.NormalizedResource{}
	p := ec2.NewDescribeInstancesPaginator(s.api, &ec2.DescribeInstancesInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, Classify(model.ServiceEC2, err)
		}
		for _, reservation := range page.Reservations {
			for _, inst := range reservation.Instances {
				nr, err := normalizeInstance(inst, s.region)
				if err != nil {
					return nil, Classify(model.ServiceEC2, err)
				}
				out = append(out, nr)
			}
		}
	}

	return out, nil
}

func normalizeInstance(inst ec2types.Instance, region string) (model.NormalizedResource, error) {
	id := awssdk.ToString(inst.InstanceId)

	tags := make(map[string]string, len(inst.Tags))
	for _, t := range inst.Tags {
		tags[awssdk.ToString(t.Key)] = awssdk.ToString(t.Value)
	}

	name := tags["Name"]
	if name == "" {
		name = id
	}

	groups := make([]map[string]string, 0, len(inst.SecurityGroups))
	for _, g := range inst.SecurityGroups {
		groups = append(groups, map[string]string{
			"group_id":   awssdk.ToString(g.GroupId),
			"group_name": awssdk.ToString(g.GroupName),
		})
	}

	a := attrs{
		"instance_type":   string(inst.InstanceType),
		"architecture":    string(inst.Architecture),
		"tags":            tags,
		"security_groups": groups,
	}
	if inst.State != nil {
		a["state"] = string(inst.State.Name)
	}
	if inst.Placement != nil {
		a.str("availability_zone", inst.Placement.AvailabilityZone)
	}
	a.str("public_ip", inst.PublicIpAddress)
	a.str("private_ip", inst.PrivateIpAddress)
	a.str("vpc_id", inst.VpcId)
	a.str("subnet_id", inst.SubnetId)
	a.str("key_name", inst.KeyName)
	a.str("platform_details", inst.PlatformDetails)
	a.when("launch_time", inst.LaunchTime)
	a.boolean("ebs_optimized", inst.EbsOptimized)

	bag, err := a.withRaw(inst)
	if err != nil {
		return model.NormalizedResource{}, err
	}

	return model.NormalizedResource{
		Kind:       model.ServiceEC2,
		ExternalID: id,
		Name:       name,
		Region:     region,
		Attributes: bag,
	}, nil
}
