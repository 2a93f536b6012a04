package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// snsSubjectLimit is the maximum subject length SNS accepts.
const snsSubjectLimit = 100

// Publish sends a message to an SNS topic and returns the message ID.
func (p *Plugin) Publish(ctx context.Context, topicARN, subject, message string) (string, error) {
	if len(subject) > snsSubjectLimit {
		subject = subject[:snsSubjectLimit]
	}

	output, err := p.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", topicARN, err)
	}
	return aws.ToString(output.MessageId), nil
}
