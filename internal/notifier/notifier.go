// Package notifier delivers the run report to operators.
package notifier

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Result is the outcome of a publish attempt. Failures are carried here and
// never returned as an error.
type Result struct {
	Delivered bool
	Skipped   bool // no target configured
	MessageID string
	Err       error
}

// Failed reports whether delivery was attempted and failed.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Notifier sends a report. Implementations must not panic or block the run
// on delivery problems.
type Notifier interface {
	Publish(ctx context.Context, subject, message string) Result
}

// Publisher sends a message to a topic and returns the provider message ID.
type Publisher interface {
	Publish(ctx context.Context, topicARN, subject, message string) (string, error)
}

// New returns an SNS notifier for topicARN, or a log-only notifier when the
// topic is empty.
func New(publisher Publisher, topicARN string) Notifier {
	if topicARN == "" || publisher == nil {
		return NewLogNotifier(log.Logger)
	}
	return NewSNSNotifier(publisher, topicARN)
}

// LogNotifier writes the report to the operational log only.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier that logs to logger.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Publish logs the message. It makes no outbound call.
func (n *LogNotifier) Publish(_ context.Context, subject, message string) Result {
	n.logger.Info().
		Str("subject", subject).
		Str("report", message).
		Msg("no notification topic configured, report logged")
	return Result{Skipped: true}
}

// SNSNotifier publishes the report to an SNS topic.
type SNSNotifier struct {
	publisher Publisher
	topicARN  string
}

// NewSNSNotifier creates a notifier publishing to topicARN.
func NewSNSNotifier(publisher Publisher, topicARN string) *SNSNotifier {
	return &SNSNotifier{publisher: publisher, topicARN: topicARN}
}

// Publish sends the message. Delivery errors are logged and returned in the Result.
func (n *SNSNotifier) Publish(ctx context.Context, subject, message string) Result {
	log.Info().Str("topic", n.topicARN).Msg("publishing report")

	id, err := n.publisher.Publish(ctx, n.topicARN, subject, message)
	if err != nil {
		log.Error().Err(err).Str("topic", n.topicARN).Msg("notification publish failed")
		return Result{Err: err}
	}

	log.Debug().Str("topic", n.topicARN).Str("message_id", id).Msg("report published")
	return Result{Delivered: true, MessageID: id}
}
