package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/services"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
}

// KafkaConsumer handles order_completed events from a topic. A message is
// retried in place on transient failure, then committed either way so one
// bad shop config cannot stall the partition.
type KafkaConsumer struct {
	reader   KafkaReader
	service  services.NotificationService
	logger   *zap.Logger
	attempts int
	backoff  time.Duration
}

func NewKafkaConsumer(reader KafkaReader, svc services.NotificationService, logger *zap.Logger) *KafkaConsumer {
	return &KafkaConsumer{reader: reader, service: svc, logger: logger, attempts: 3, backoff: time.Second}
}

func (c *KafkaConsumer) Start(ctx context.Context) {
	c.logger.Info("Kafka consumer started")
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("Kafka consumer shutting down")
				return
			}
			c.logger.Error("Kafka fetch error", zap.Error(err))
			continue
		}

		c.handle(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("Kafka commit failed",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, m kafka.Message) {
	event, err := DecodeEvent(m.Value)
	if err != nil {
		c.logger.Error("invalid order_completed event", zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}

	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}

		_, err = c.service.HandleOrderCompleted(ctx, event)
		if err == nil {
			return
		}
		if permanent(err) {
			break
		}
		c.logger.Warn("event handling failed",
			zap.String("order_number", event.Order.OrderNumber),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	c.logger.Error("dropping order_completed event",
		zap.String("order_number", event.Order.OrderNumber),
		zap.Error(err),
	)
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
