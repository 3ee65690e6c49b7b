package aws

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
)

func TestToDomain(t *testing.T) {
	inst := types.Instance{
		InstanceId:       aws.String("i-0123456789abcdef0"),
		InstanceType:     types.InstanceTypeT3Medium,
		PublicIpAddress:  aws.String("54.1.2.3"),
		PrivateIpAddress: aws.String("10.0.1.5"),
		KeyName:          aws.String("prod-key"),
		State:            &types.InstanceState{Name: types.InstanceStateNameRunning},
		Tags: []types.Tag{
			{Key: aws.String("env"), Value: aws.String("prod")},
			{Key: aws.String("Name"), Value: aws.String("web-prod-01")},
		},
	}

	got := toDomain(inst, "us-east-1")
	assert.Equal(t, "i-0123456789abcdef0", got.ID)
	assert.Equal(t, "web-prod-01", got.Name)
	assert.Equal(t, "t3.medium", got.Type)
	assert.Equal(t, "running", got.State)
	assert.Equal(t, "54.1.2.3", got.PublicIP)
	assert.Equal(t, "10.0.1.5", got.PrivateIP)
	assert.Equal(t, "us-east-1", got.Region)
	assert.Equal(t, "prod-key", got.KeyName)
}

func TestToDomain_MissingFields(t *testing.T) {
	got := toDomain(types.Instance{InstanceId: aws.String("i-bare")}, "eu-west-1")
	assert.Equal(t, "i-bare", got.ID)
	assert.Empty(t, got.Name, "no Name tag means empty name")
	assert.Empty(t, got.State)
	assert.Empty(t, got.PublicIP)
	assert.Empty(t, got.KeyName)
}
