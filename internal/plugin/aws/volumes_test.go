package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEC2Client implements EC2API for testing.
type mockEC2Client struct {
	describeVolumesFunc func(ctx context.Context, params *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
	deleteVolumeFunc    func(ctx context.Context, params *ec2.DeleteVolumeInput, optFns ...func(*ec2.Options)) (*ec2.DeleteVolumeOutput, error)
}

func (m *mockEC2Client) DescribeVolumes(ctx context.Context, params *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
	if m.describeVolumesFunc != nil {
		return m.describeVolumesFunc(ctx, params, optFns...)
	}
	return &ec2.DescribeVolumesOutput{}, nil
}

func (m *mockEC2Client) DeleteVolume(ctx context.Context, params *ec2.DeleteVolumeInput, optFns ...func(*ec2.Options)) (*ec2.DeleteVolumeOutput, error) {
	if m.deleteVolumeFunc != nil {
		return m.deleteVolumeFunc(ctx, params, optFns...)
	}
	return &ec2.DeleteVolumeOutput{}, nil
}

func newTestVolume() types.Volume {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
	return types.Volume{
		VolumeId:         aws.String("vol-abc123"),
		State:            types.VolumeStateAvailable,
		CreateTime:       &created,
		Size:             aws.Int32(100),
		VolumeType:       types.VolumeTypeGp3,
		AvailabilityZone: aws.String("us-east-1a"),
		Tags: []types.Tag{
			{Key: aws.String("Name"), Value: aws.String("scratch")},
			{Key: aws.String("Keep"), Value: aws.String("true")},
		},
	}
}

func TestListVolumes(t *testing.T) {
	var gotInput *ec2.DescribeVolumesInput
	mock := &mockEC2Client{
		describeVolumesFunc: func(_ context.Context, params *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
			gotInput = params
			return &ec2.DescribeVolumesOutput{Volumes: []types.Volume{newTestVolume()}}, nil
		},
	}

	p := &Plugin{region: "us-east-1", ec2Client: mock}
	volumes, err := p.ListVolumes(context.Background(), "available")

	require.NoError(t, err)
	require.Len(t, volumes, 1)

	require.NotNil(t, gotInput)
	require.Len(t, gotInput.Filters, 1)
	assert.Equal(t, "status", aws.ToString(gotInput.Filters[0].Name))
	assert.Equal(t, []string{"available"}, gotInput.Filters[0].Values)
	assert.Nil(t, gotInput.NextToken)

	v := volumes[0]
	assert.Equal(t, "vol-abc123", v.ID)
	assert.Equal(t, "available", v.Status)
	assert.Equal(t, "us-east-1", v.Region)
	assert.Equal(t, "us-east-1a", v.AvailabilityZone)
	assert.Equal(t, int32(100), v.SizeGiB)
	assert.Equal(t, "gp3", v.Type)
	assert.Equal(t, map[string]string{"Name": "scratch", "Keep": "true"}, v.Tags)
	require.NotNil(t, v.CreatedAt)
	assert.Equal(t, time.UTC, v.CreatedAt.Location())
	assert.Equal(t, time.Date(2025, 1, 2, 2, 4, 5, 0, time.UTC), *v.CreatedAt)
}

func TestListVolumes_MissingCreateTime(t *testing.T) {
	mock := &mockEC2Client{
		describeVolumesFunc: func(_ context.Context, _ *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
			return &ec2.DescribeVolumesOutput{Volumes: []types.Volume{{VolumeId: aws.String("vol-1"), State: types.VolumeStateAvailable}}}, nil
		},
	}

	p := &Plugin{region: "us-east-1", ec2Client: mock}
	volumes, err := p.ListVolumes(context.Background(), "available")

	require.NoError(t, err)
	require.Len(t, volumes, 1)
	assert.Nil(t, volumes[0].CreatedAt)
	assert.NotNil(t, volumes[0].Tags)
	assert.Empty(t, volumes[0].Tags)
}

func TestListVolumes_Empty(t *testing.T) {
	p := &Plugin{region: "us-east-1", ec2Client: &mockEC2Client{}}
	volumes, err := p.ListVolumes(context.Background(), "available")

	require.NoError(t, err)
	assert.Empty(t, volumes)
}

func TestListVolumes_Pagination(t *testing.T) {
	callCount := 0
	var tokens []*string
	mock := &mockEC2Client{
		describeVolumesFunc: func(_ context.Context, params *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
			callCount++
			tokens = append(tokens, params.NextToken)
			switch callCount {
			case 1:
				return &ec2.DescribeVolumesOutput{
					Volumes:   []types.Volume{{VolumeId: aws.String("vol-1"), State: types.VolumeStateAvailable}},
					NextToken: aws.String("page-2"),
				}, nil
			case 2:
				return &ec2.DescribeVolumesOutput{
					Volumes:   []types.Volume{{VolumeId: aws.String("vol-2"), State: types.VolumeStateAvailable}},
					NextToken: aws.String("page-3"),
				}, nil
			default:
				return &ec2.DescribeVolumesOutput{
					Volumes:   []types.Volume{{VolumeId: aws.String("vol-3"), State: types.VolumeStateAvailable}},
					NextToken: aws.String(""),
				}, nil
			}
		},
	}

	p := &Plugin{region: "us-east-1", ec2Client: mock}
	volumes, err := p.ListVolumes(context.Background(), "available")

	require.NoError(t, err)
	assert.Equal(t, 3, callCount)
	require.Len(t, volumes, 3)
	assert.Equal(t, "vol-1", volumes[0].ID)
	assert.Equal(t, "vol-2", volumes[1].ID)
	assert.Equal(t, "vol-3", volumes[2].ID)

	require.Len(t, tokens, 3)
	assert.Nil(t, tokens[0])
	assert.Equal(t, "page-2", aws.ToString(tokens[1]))
	assert.Equal(t, "page-3", aws.ToString(tokens[2]))
}

func TestListVolumes_Error(t *testing.T) {
	mock := &mockEC2Client{
		describeVolumesFunc: func(_ context.Context, _ *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
			return nil, errors.New("access denied")
		},
	}

	p := &Plugin{region: "us-east-1", ec2Client: mock}
	_, err := p.ListVolumes(context.Background(), "available")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "describe volumes")
	assert.Contains(t, err.Error(), "access denied")
}

func TestListVolumes_ErrorOnLaterPage(t *testing.T) {
	callCount := 0
	mock := &mockEC2Client{
		describeVolumesFunc: func(_ context.Context, _ *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
			callCount++
			if callCount == 1 {
				return &ec2.DescribeVolumesOutput{
					Volumes:   []types.Volume{{VolumeId: aws.String("vol-1")}},
					NextToken: aws.String("next"),
				}, nil
			}
			return nil, errors.New("throttled")
		},
	}

	p := &Plugin{region: "us-east-1", ec2Client: mock}
	volumes, err := p.ListVolumes(context.Background(), "available")

	require.Error(t, err)
	assert.Nil(t, volumes)
}

func TestDeleteVolume(t *testing.T) {
	var deleted []string
	mock := &mockEC2Client{
		deleteVolumeFunc: func(_ context.Context, params *ec2.DeleteVolumeInput, _ ...func(*ec2.Options)) (*ec2.DeleteVolumeOutput, error) {
			deleted = append(deleted, aws.ToString(params.VolumeId))
			return &ec2.DeleteVolumeOutput{}, nil
		},
	}

	p := &Plugin{region: "us-east-1", ec2Client: mock}
	err := p.DeleteVolume(context.Background(), "vol-abc123")

	require.NoError(t, err)
	assert.Equal(t, []string{"vol-abc123"}, deleted)
}

func TestDeleteVolume_Error(t *testing.T) {
	mock := &mockEC2Client{
		deleteVolumeFunc: func(_ context.Context, _ *ec2.DeleteVolumeInput, _ ...func(*ec2.Options)) (*ec2.DeleteVolumeOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "VolumeInUse", Message: "vol-abc123 is currently attached"}
		},
	}

	p := &Plugin{region: "us-east-1", ec2Client: mock}
	err := p.DeleteVolume(context.Background(), "vol-abc123")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "vol-abc123")
	assert.Equal(t, "VolumeInUse", ErrorCode(err))
}
