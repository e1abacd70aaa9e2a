package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cinevault/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type fakeBackend struct {
	sent   []published
	err    error
	closed bool
}

func (f *fakeBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, published{channel: channel, data: data, attrs: attrs})
	return "id-1", nil
}

func (f *fakeBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	for _, msg := range f.sent {
		if msg.channel != channel {
			continue
		}
		if err := handler(ctx, Message{ID: "id-1", Data: msg.data, Attributes: msg.attrs}); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

type registered struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

func TestPublishEventRoundTrip(t *testing.T) {
	backend := &fakeBackend{}
	queue := New(backend)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	queue.now = func() time.Time { return fixed }

	require.NoError(t, queue.PublishEvent(context.Background(), "user.registered", registered{UserID: "u-1", Email: "ana@x.com"}))
	require.Len(t, backend.sent, 1)
	assert.Equal(t, "user.registered", backend.sent[0].attrs[attrEventType])
	assert.Equal(t, jsonContentType, backend.sent[0].attrs[attrContentType])

	var got registered
	err := queue.Subscribe(context.Background(), "user.registered", func(_ context.Context, msg Message) error {
		event, err := DecodeEvent(msg, &got)
		require.NoError(t, err)
		assert.Equal(t, "user.registered", event.Type)
		assert.True(t, fixed.Equal(event.OccurredAt))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, registered{UserID: "u-1", Email: "ana@x.com"}, got)
}

func TestPublishEventPropagatesBackendError(t *testing.T) {
	queue := New(&fakeBackend{err: errors.New("broker down")})
	err := queue.PublishEvent(context.Background(), "movie.image.confirmed", map[string]string{"imageId": "i"})
	assert.EqualError(t, err, "broker down")
}

func TestNilMQIsNoop(t *testing.T) {
	var queue *MQ
	assert.NoError(t, queue.PublishEvent(context.Background(), "user.registered", struct{}{}))
	assert.NoError(t, queue.Close())
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	_, err := DecodeEvent(Message{Data: []byte("not json")}, nil)
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	queue, err := NewFromConfig(context.Background(), config.MQConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, queue)

	_, err = NewFromConfig(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)

	_, err = NewFromConfig(context.Background(), config.MQConfig{Backend: "rabbitmq"})
	assert.ErrorContains(t, err, "rabbitmq url is required")
}
