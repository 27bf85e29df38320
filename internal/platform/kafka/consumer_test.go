package kafka

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReader struct {
	pending   []kafkago.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(_ context.Context) (kafkago.Message, error) {
	if len(r.pending) == 0 {
		return kafkago.Message{}, io.EOF
	}
	msg := r.pending[0]
	r.pending = r.pending[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeWriter struct {
	written []kafkago.Message
	err     error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func messages(offsets ...int64) []kafkago.Message {
	out := make([]kafkago.Message, len(offsets))
	for i, o := range offsets {
		out[i] = kafkago.Message{Offset: o, Key: []byte("k"), Value: []byte("v")}
	}
	return out
}

func headerValue(msg kafkago.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func newTestConsumer(reader *fakeReader, writer *fakeWriter) *Consumer {
	c := newConsumer(reader, "booking-service", "booking.commands", zap.NewNop(),
		WithRetry(2, time.Millisecond), WithDeadLetterTopic("booking.commands.dlq"))
	if writer != nil {
		c.dlqWriter = writer
	}
	return c
}

func TestConsume_CommitsHandledMessages(t *testing.T) {
	reader := &fakeReader{pending: messages(1, 2, 3)}
	c := newTestConsumer(reader, &fakeWriter{})

	err := c.Consume(context.Background(), func(context.Context, kafkago.Message) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestConsume_RetriesTransientFailure(t *testing.T) {
	reader := &fakeReader{pending: messages(1, 2)}
	writer := &fakeWriter{}
	c := newTestConsumer(reader, writer)

	calls := map[int64]int{}
	err := c.Consume(context.Background(), func(_ context.Context, m kafkago.Message) error {
		calls[m.Offset]++
		if m.Offset == 1 && calls[m.Offset] < 3 {
			return errors.New("store unavailable")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 3, calls[1], "two retries after the first failure")
	assert.Equal(t, 1, calls[2])
	assert.Equal(t, []int64{1, 2}, reader.committed)
	assert.Empty(t, writer.written)
}

func TestConsume_DeadLettersAfterRetries(t *testing.T) {
	reader := &fakeReader{pending: messages(1, 2)}
	writer := &fakeWriter{}
	c := newTestConsumer(reader, writer)

	calls := map[int64]int{}
	err := c.Consume(context.Background(), func(_ context.Context, m kafkago.Message) error {
		calls[m.Offset]++
		if m.Offset == 1 {
			return errors.New("store unavailable")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 3, calls[1])
	require.Len(t, writer.written, 1)
	parked := writer.written[0]
	assert.Equal(t, "v", string(parked.Value))
	assert.Equal(t, "booking.commands", headerValue(parked, HeaderDLQOriginalTopic))
	assert.Equal(t, "store unavailable", headerValue(parked, HeaderDLQError))
	assert.Equal(t, "3", headerValue(parked, HeaderDLQAttempts))
	assert.Equal(t, []int64{1, 2}, reader.committed, "a parked message is committed")
}

func TestConsume_StopsWithoutCommitWhenDeadLetterFails(t *testing.T) {
	reader := &fakeReader{pending: messages(1, 2)}
	c := newTestConsumer(reader, &fakeWriter{err: errors.New("broker down")})

	err := c.Consume(context.Background(), func(context.Context, kafkago.Message) error {
		return errors.New("store unavailable")
	})
	require.Error(t, err)
	assert.Empty(t, reader.committed, "the failed offset must not be committed")
	assert.Len(t, reader.pending, 1, "later messages are not fetched past the failure")
}

func TestConsume_StopsWithoutCommitWithoutDeadLetterTopic(t *testing.T) {
	reader := &fakeReader{pending: messages(1, 2)}
	c := newConsumer(reader, "booking-service", "booking.commands", zap.NewNop(), WithRetry(1, time.Millisecond))

	err := c.Consume(context.Background(), func(context.Context, kafkago.Message) error {
		return errors.New("store unavailable")
	})
	require.Error(t, err)
	assert.Empty(t, reader.committed)
}

func TestConsume_CancelDuringBackoff(t *testing.T) {
	reader := &fakeReader{pending: messages(1)}
	c := newConsumer(reader, "booking-service", "booking.commands", zap.NewNop(), WithRetry(5, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	err := c.Consume(ctx, func(context.Context, kafkago.Message) error {
		cancel()
		return errors.New("store unavailable")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reader.committed)
}
