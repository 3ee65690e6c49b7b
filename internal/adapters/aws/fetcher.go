// Copyright 2025.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package aws

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/hkoosha/ec2ssh/internal/core/domain"
	"go.uber.org/zap"
)

type ec2Fetcher struct {
	logger *zap.SugaredLogger
}

// NewEC2Fetcher creates the instance fetcher backed by the AWS SDK. It uses
// the ambient credential chain (env, shared config, IMDS).
func NewEC2Fetcher(logger *zap.SugaredLogger) *ec2Fetcher {
	return &ec2Fetcher{logger: logger}
}

// FetchAllInstances lists EC2 instances across every enabled region. A
// region that fails to list is logged and skipped; only a total failure
// (no regions at all) returns an error.
func (f *ec2Fetcher) FetchAllInstances(ctx context.Context) ([]domain.Instance, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := ec2.NewFromConfig(cfg)
	regionsOut, err := client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list AWS regions: %w", err)
	}

	var instances []domain.Instance
	for _, region := range regionsOut.Regions {
		name := ""
		if region.RegionName != nil {
			name = *region.RegionName
		}
		regionInstances, err := f.fetchRegion(ctx, cfg.Region, name)
		if err != nil {
			f.logger.Errorw("failed to fetch instances from region", "region", name, "error", err)
			continue
		}
		instances = append(instances, regionInstances...)
	}

	f.logger.Infow("fetched instances from AWS", "count", len(instances))
	return instances, nil
}

func (f *ec2Fetcher) fetchRegion(ctx context.Context, defaultRegion, region string) ([]domain.Instance, error) {
	if region == "" {
		region = defaultRegion
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := ec2.NewFromConfig(cfg)

	var instances []domain.Instance
	paginator := ec2.NewDescribeInstancesPaginator(client, &ec2.DescribeInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, reservation := range page.Reservations {
			for _, inst := range reservation.Instances {
				instances = append(instances, toDomain(inst, region))
			}
		}
	}

	f.logger.Debugw("fetched region", "region", region, "count", len(instances))
	return instances, nil
}

func toDomain(inst types.Instance, region string) domain.Instance {
	name := ""
	for _, tag := range inst.Tags {
		if tag.Key != nil && *tag.Key == "Name" && tag.Value != nil {
			name = *tag.Value
			break
		}
	}

	state := ""
	if inst.State != nil {
		state = string(inst.State.Name)
	}

	return domain.Instance{
		ID:        deref(inst.InstanceId),
		Name:      name,
		Type:      string(inst.InstanceType),
		State:     state,
		PublicIP:  deref(inst.PublicIpAddress),
		PrivateIP: deref(inst.PrivateIpAddress),
		Region:    region,
		KeyName:   deref(inst.KeyName),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
