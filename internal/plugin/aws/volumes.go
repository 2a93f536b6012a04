package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/ebsreaper/pkg/resource"
)

// ListVolumes returns every volume whose status matches, following
// pagination until the provider stops returning a NextToken.
func (p *Plugin) ListVolumes(ctx context.Context, status string) ([]resource.Volume, error) {
	var volumes []resource.Volume
	var nextToken *string
	pages := 0

	for {
		output, err := p.ec2Client.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
			Filters: []ec2types.Filter{
				{Name: aws.String("status"), Values: []string{status}},
			},
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("describe volumes: %w", err)
		}
		pages++

		for _, vol := range output.Volumes {
			volumes = append(volumes, p.convertVolume(vol))
		}

		if aws.ToString(output.NextToken) == "" {
			break
		}
		nextToken = output.NextToken
	}

	log.Debug().
		Str("status", status).
		Int("pages", pages).
		Int("count", len(volumes)).
		Msg("volumes listed")

	return volumes, nil
}

// DeleteVolume permanently deletes a volume.
func (p *Plugin) DeleteVolume(ctx context.Context, volumeID string) error {
	_, err := p.ec2Client.DeleteVolume(ctx, &ec2.DeleteVolumeInput{VolumeId: aws.String(volumeID)})
	if err != nil {
		return fmt.Errorf("delete volume %s: %w", volumeID, err)
	}
	return nil
}

func (p *Plugin) convertVolume(vol ec2types.Volume) resource.Volume {
	v := resource.Volume{
		ID:               aws.ToString(vol.VolumeId),
		Status:           string(vol.State),
		Tags:             make(map[string]string, len(vol.Tags)),
		Region:           p.region,
		AvailabilityZone: aws.ToString(vol.AvailabilityZone),
		SizeGiB:          aws.ToInt32(vol.Size),
		Type:             string(vol.VolumeType),
	}
	if vol.CreateTime != nil {
		created := vol.CreateTime.UTC()
		v.CreatedAt = &created
	}
	for _, tag := range vol.Tags {
		v.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return v
}
