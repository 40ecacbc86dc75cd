package consumer

import (
	"context"
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/services"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type SQSConsumer struct {
	client    SQSAPI
	queueURL  string
	service   services.NotificationService
	logger    *zap.Logger
	errorWait time.Duration
}

func NewSQSConsumer(client SQSAPI, queueURL string, svc services.NotificationService, logger *zap.Logger) *SQSConsumer {
	return &SQSConsumer{
		client:    client,
		queueURL:  queueURL,
		service:   svc,
		logger:    logger,
		errorWait: 5 * time.Second,
	}
}

func (c *SQSConsumer) Start(ctx context.Context) {
	c.logger.Info("SQS consumer started", zap.String("queue", c.queueURL))
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("SQS consumer shutting down")
			return
		default:
			c.poll(ctx)
		}
	}
}

func (c *SQSConsumer) poll(ctx context.Context) {
	output, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     5, // long polling
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Error("SQS receive error", zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(c.errorWait):
		}
		return
	}

	for _, msg := range output.Messages {
		c.processMessage(ctx, msg.Body, msg.ReceiptHandle)
	}
}

func (c *SQSConsumer) processMessage(ctx context.Context, body *string, receiptHandle *string) {
	if receiptHandle == nil || *receiptHandle == "" {
		c.logger.Error("received empty SQS receipt handle")
		return
	}
	if body == nil || *body == "" {
		c.logger.Error("received empty SQS message body")
		// Leave it for the redrive policy.
		return
	}

	event, err := DecodeEvent([]byte(*body))
	if err != nil {
		c.logger.Error("failed to decode order_completed event", zap.Error(err))
		c.deleteMessage(ctx, receiptHandle)
		return
	}

	summary, err := c.service.HandleOrderCompleted(ctx, event)
	if err != nil {
		c.logger.Error("failed to process event",
			zap.String("order_number", event.Order.OrderNumber),
			zap.Error(err),
		)
		if permanent(err) {
			c.deleteMessage(ctx, receiptHandle)
		}
		return
	}

	c.logger.Info("order_completed event handled",
		zap.String("order_number", summary.OrderNumber),
		zap.Bool("duplicate", summary.Duplicate),
		zap.Int("attempts", len(summary.Attempts)),
	)
	c.deleteMessage(ctx, receiptHandle)
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		c.logger.Error("failed to delete SQS message", zap.Error(err))
	}
}
