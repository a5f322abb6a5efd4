package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStream_PublishAndConsume(t *testing.T) {
	client := newRedis(t)
	producer := NewRedisProducer(client)

	err := producer.Publish(context.Background(), &Message{
		Topic:    "confirmed",
		Key:      "7",
		Payload:  []byte(`{"jobId":7}`),
		Metadata: map[string]string{"entrypoint": "transfer", "contractAddress": "KT1"},
	})
	require.NoError(t, err)

	consumer := NewRedisConsumer(client, "workers", "w-1")
	consumer.block = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		received []*Message
	)
	done := make(chan error, 1)
	go func() {
		done <- consumer.Subscribe(ctx, "confirmed", func(ctx context.Context, msg *Message) error {
			mu.Lock()
			received = append(received, msg)
			mu.Unlock()
			cancel()
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "7", received[0].Key)
	assert.JSONEq(t, `{"jobId":7}`, string(received[0].Payload))
	assert.Equal(t, "transfer", received[0].Metadata["entrypoint"])
	assert.Equal(t, "KT1", received[0].Metadata["contractAddress"])

	pending, err := client.XPending(context.Background(), "confirmed", "workers").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestRedisStream_FailedMessageStaysPending(t *testing.T) {
	client := newRedis(t)
	require.NoError(t, NewRedisProducer(client).Publish(context.Background(), &Message{Topic: "send", Payload: []byte(`{}`)}))

	consumer := NewRedisConsumer(client, "workers", "w-1")
	consumer.block = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- consumer.Subscribe(ctx, "send", func(ctx context.Context, msg *Message) error {
			cancel()
			return errors.New("node down")
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}

	pending, err := client.XPending(context.Background(), "send", "workers").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)
}

func TestKafkaMessageMapping(t *testing.T) {
	km := toKafkaMessage(&Message{
		Topic:    "confirmed",
		Key:      "3",
		Payload:  []byte("x"),
		Metadata: map[string]string{"callerId": "c-1"},
	})
	assert.Equal(t, "confirmed", km.Topic)
	assert.Equal(t, []byte("3"), km.Key)
	require.Len(t, km.Headers, 1)

	back := fromKafkaMessage("confirmed", kafka.Message{Key: km.Key, Value: km.Value, Headers: km.Headers, Partition: 1, Offset: 9})
	assert.Equal(t, "1-9", back.ID)
	assert.Equal(t, "c-1", back.Metadata["callerId"])
	assert.Equal(t, "3", back.Key)
}
