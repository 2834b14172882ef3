package messaging

import (
	"context"

	"attendance.service/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"
)

// SQSSender implements MessageSender for AWS SQS.
type SQSSender struct {
	client SQSClient
}

func (s *SQSSender) SendMessage(ctx context.Context, destination string, body []byte) error {
	// carry the caller span to the consumer
	attributes := telemetry.InjectMessageAttributes(ctx)

	_, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(destination),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attributes,
	})
	return err
}

// LogSender writes messages to the log instead of a queue. Used when no queue
// URL is configured.
type LogSender struct{}

func (LogSender) SendMessage(ctx context.Context, destination string, body []byte) error {
	log.Ctx(ctx).Info().Str("destination", destination).RawJSON("body", body).Msg("message not sent, no queue configured")
	return nil
}
