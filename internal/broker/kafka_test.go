package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/config"
	"beacon/internal/logger"
)

// fakeReader feeds a fixed message list and cancels the consume context once
// drained so the loop exits.
type fakeReader struct {
	messages  []kafka.Message
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		r.cancel()
		return kafka.Message{}, context.Canceled
	}
	m := r.messages[0]
	r.messages = r.messages[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumeLoopDeliversRawBytesAndCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		cancel: cancel,
		messages: []kafka.Message{
			{Key: []byte("device-1"), Value: []byte(`{"device_id":"device-1"}`)},
			{Key: []byte("device-2"), Value: []byte("unparseable")},
		},
	}

	c := NewKafkaConsumer(config.KafkaConfig{}, logger.NopLogger())
	c.reader = reader

	type delivery struct {
		key   string
		value string
	}
	var got []delivery
	handler := func(_ context.Context, key, value []byte) error {
		got = append(got, delivery{key: string(key), value: string(value)})
		if string(key) == "device-2" {
			return errors.New("handler rejected message")
		}
		return nil
	}

	c.consumeLoop(ctx, "raw_events", handler)

	require.Len(t, got, 2)
	assert.Equal(t, delivery{key: "device-1", value: `{"device_id":"device-1"}`}, got[0])
	assert.Equal(t, delivery{key: "device-2", value: "unparseable"}, got[1])

	// Only the handled message is committed; the failed one stays uncommitted
	// for redelivery.
	require.Len(t, reader.committed, 1)
	assert.Equal(t, []byte("device-1"), reader.committed[0].Key)
}
