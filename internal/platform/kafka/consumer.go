package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Dead-letter headers describing why a message was parked.
const (
	HeaderDLQOriginalTopic = "dlq-original-topic"
	HeaderDLQError         = "dlq-error"
	HeaderDLQAttempts      = "dlq-attempts"
	HeaderDLQConsumerGroup = "dlq-consumer-group"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
	maxBackoff        = 10 * time.Second
)

// MessageHandler processes one message. A returned error is retried with backoff; once
// retries run out the message goes to the dead-letter topic.
type MessageHandler func(ctx context.Context, msg kafkago.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithRetry sets how many times a failed message is retried and the first backoff delay.
// The delay doubles on each retry.
func WithRetry(maxRetries int, backoff time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.maxRetries = maxRetries
		c.backoff = backoff
	}
}

// WithDeadLetterTopic parks messages that still fail after all retries on topic.
func WithDeadLetterTopic(topic string) ConsumerOption {
	return func(c *Consumer) { c.dlqTopic = topic }
}

// Consumer reads a single topic as part of a consumer group.
type Consumer struct {
	reader     messageReader
	dlqWriter  messageWriter
	topic      string
	groupID    string
	dlqTopic   string
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewConsumer creates a group consumer for topic.
func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger, opts ...ConsumerOption) *Consumer {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0,
		StartOffset:    kafkago.FirstOffset,
	})

	c := newConsumer(reader, groupID, topic, logger, opts...)
	if c.dlqTopic != "" {
		c.dlqWriter = &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Topic:                  c.dlqTopic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireAll,
			MaxAttempts:            3,
			AllowAutoTopicCreation: true,
		}
	}
	return c
}

func newConsumer(reader messageReader, groupID, topic string, logger *zap.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:     reader,
		topic:      topic,
		groupID:    groupID,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		logger:     logger.With(zap.String("topic", topic), zap.String("group_id", groupID)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Consume fetches messages and commits each one once it is handled or dead-lettered.
// It blocks until ctx is cancelled. A message that can be neither handled nor parked stops
// the loop with an error and stays uncommitted, so it is redelivered on restart.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, kafkago.ErrGroupClosed) {
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		if err := c.process(ctx, msg, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to commit offset %d: %w", msg.Offset, err)
		}
	}
}

// process runs handler with retries. A nil return means the message may be committed.
func (c *Consumer) process(ctx context.Context, msg kafkago.Message, handler MessageHandler) error {
	var (
		err     error
		delay   = c.backoff
		attempt int
	)
	for attempt = 1; ; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		if attempt > c.maxRetries {
			break
		}

		c.logger.Warn("message handler failed, retrying",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > maxBackoff {
			delay = maxBackoff
		}
	}

	c.logger.Error("message handler failed, retries exhausted",
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.Int("attempts", attempt),
		zap.Error(err),
	)

	if c.dlqWriter == nil {
		return fmt.Errorf("message at offset %d failed after %d attempts: %w", msg.Offset, attempt, err)
	}
	if dlqErr := c.deadLetter(ctx, msg, err, attempt); dlqErr != nil {
		return fmt.Errorf("failed to dead-letter offset %d: %w (handler error: %v)", msg.Offset, dlqErr, err)
	}

	c.logger.Warn("message moved to dead-letter topic",
		zap.String("dlq_topic", c.dlqTopic),
		zap.Int64("offset", msg.Offset),
	)
	return nil
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafkago.Message, cause error, attempts int) error {
	headers := append([]kafkago.Header(nil), msg.Headers...)
	headers = append(headers,
		kafkago.Header{Key: HeaderDLQOriginalTopic, Value: []byte(c.topic)},
		kafkago.Header{Key: HeaderDLQError, Value: []byte(cause.Error())},
		kafkago.Header{Key: HeaderDLQAttempts, Value: []byte(strconv.Itoa(attempts))},
		kafkago.Header{Key: HeaderDLQConsumerGroup, Value: []byte(c.groupID)},
	)
	return c.dlqWriter.WriteMessages(ctx, kafkago.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    time.Now().UTC(),
	})
}

// Close leaves the consumer group and closes the reader and the dead-letter writer.
func (c *Consumer) Close() error {
	err := c.reader.Close()
	if c.dlqWriter != nil {
		if dlqErr := c.dlqWriter.Close(); err == nil {
			err = dlqErr
		}
	}
	return err
}
