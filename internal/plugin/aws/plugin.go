// Package aws implements the AWS side of ebsreaper: volume listing,
// volume deletion and SNS publishing.
package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
)

// Plugin wraps the AWS clients used by a run.
type Plugin struct {
	region string

	// AWS clients (interfaces for testability)
	ec2Client EC2API
	snsClient SNSAPI
}

// Config holds AWS plugin configuration.
type Config struct {
	Region  string
	Profile string
}

// New creates a new AWS plugin. Credentials come from the default chain.
func New(ctx context.Context, cfg Config) (*Plugin, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	log.Debug().Str("region", awsCfg.Region).Msg("aws clients configured")

	return NewWithClients(awsCfg.Region, ec2.NewFromConfig(awsCfg), sns.NewFromConfig(awsCfg)), nil
}

// NewWithClients creates a plugin around already constructed clients.
func NewWithClients(region string, ec2Client EC2API, snsClient SNSAPI) *Plugin {
	return &Plugin{
		region:    region,
		ec2Client: ec2Client,
		snsClient: snsClient,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "aws"
}

// Region returns the region the clients talk to.
func (p *Plugin) Region() string {
	return p.region
}

// ErrorCode returns the AWS API error code carried by err, or "" if none.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
