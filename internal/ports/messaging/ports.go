package messaging

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Publisher is what the timer and the API use to emit events. Publishing is
// best effort for DayClosedEvent and must not undo a committed check-out.
type Publisher interface {
	PublishDayClosed(ctx context.Context, event DayClosedEvent) error
	PublishOvertimeSync(ctx context.Context, req OvertimeSyncRequest) error
}

// MessageSender delivers an encoded body to a queue URL.
type MessageSender interface {
	SendMessage(ctx context.Context, queueURL string, body []byte) error
}

// SQSClient is the subset of *sqs.Client the sender calls.
type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}
