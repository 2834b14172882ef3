package worker

import (
	"context"
	"sync"

	"attendance.service/pkg/logger"
	"attendance.service/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

// SQS long polls for at most 10 messages per receive.
const (
	maxBatch        = 10
	longPollSeconds = 20
)

type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// Processor handles one SQS message. shouldRetry with a non-nil err makes the
// message visible again after retryDelay seconds.
type Processor interface {
	Process(ctx context.Context, msg types.Message) (shouldRetry bool, retryDelay int32, err error)
}

// Worker long-polls one queue and hands messages to Concurrency processors.
type Worker struct {
	client      SQSClient
	queueURL    string
	processor   Processor
	Concurrency int
}

func NewWorker(client SQSClient, url string, proc Processor) *Worker {
	return &Worker{
		client:      client,
		queueURL:    url,
		processor:   proc,
		Concurrency: maxBatch,
	}
}

// Start polls until ctx is canceled and returns once in-flight messages finish.
func (w *Worker) Start(ctx context.Context) {
	qlog := log.With().Str("queue", w.queueURL).Logger()
	qlog.Info().Int("concurrency", w.Concurrency).Msg("Queue worker started")

	inbox := make(chan types.Message, w.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < w.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range inbox {
				w.handle(ctx, msg)
			}
		}()
	}

	w.poll(ctx, inbox)
	wg.Wait()
	qlog.Info().Msg("Queue worker stopped")
}

// poll feeds inbox until ctx is canceled, then closes it.
func (w *Worker) poll(ctx context.Context, inbox chan<- types.Message) {
	defer close(inbox)

	for ctx.Err() == nil {
		out, err := w.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:                    &w.queueURL,
			MaxNumberOfMessages:         int32(min(w.Concurrency, maxBatch)),
			WaitTimeSeconds:             longPollSeconds,
			MessageAttributeNames:       []string{"All"},
			MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameApproximateReceiveCount},
		})
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Str("queue", w.queueURL).Msg("Receive failed")
			}
			continue
		}
		for _, msg := range out.Messages {
			inbox <- msg
		}
	}
}

// handle settles one message: delete on success, reschedule through the
// visibility timeout on a retryable failure, and otherwise leave it to expire
// into the dead-letter queue.
func (w *Worker) handle(ctx context.Context, msg types.Message) {
	ctx, span := telemetry.StartConsumerSpan(ctx, w.queueURL, msg)
	defer span.End()
	ctx = logger.EnrichContextWithLogger(ctx)

	retry, delay, err := w.processor.Process(ctx, msg)
	switch {
	case err == nil:
		_, err = w.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{QueueUrl: &w.queueURL, ReceiptHandle: msg.ReceiptHandle})
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to delete processed message")
		}
	case retry:
		log.Ctx(ctx).Warn().Err(err).Int32("retry_delay", delay).Msg("Processing failed, will retry")
		_, vErr := w.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
			QueueUrl:          &w.queueURL,
			ReceiptHandle:     msg.ReceiptHandle,
			VisibilityTimeout: delay,
		})
		if vErr != nil {
			log.Ctx(ctx).Error().Err(vErr).Msg("Failed to reschedule message")
		}
	default:
		log.Ctx(ctx).Error().Err(err).Msg("Dropping message that cannot be processed")
	}
}
