package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"goride-payments/pkg/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	skafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []skafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...skafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaProducerPublish(t *testing.T) {
	fw := &fakeWriter{}
	p := NewKafkaProducerWithWriter(fw, "goride-payments")

	err := p.Publish(context.Background(), "pay-1", map[string]string{"status": "SUCCESS"})
	require.NoError(t, err)
	require.Len(t, fw.msgs, 1)

	assert.Equal(t, "pay-1", string(fw.msgs[0].Key))
	assert.JSONEq(t, `{"status":"SUCCESS"}`, string(fw.msgs[0].Value))
	require.Len(t, fw.msgs[0].Headers, 1)
	assert.Equal(t, "goride-payments", string(fw.msgs[0].Headers[0].Value))

	require.NoError(t, p.Close())
	assert.True(t, fw.closed)
}

func TestKafkaProducerErrors(t *testing.T) {
	p := NewKafkaProducerWithWriter(&fakeWriter{err: errors.New("leader not available")}, "")
	err := p.Publish(context.Background(), "k", "v")
	assert.ErrorContains(t, err, "leader not available")

	err = p.Publish(context.Background(), "k", func() {})
	assert.ErrorContains(t, err, "marshal")
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	redisCache := cache.NewRedisCacheFromClient(client)
	defer redisCache.Close()

	ctx := context.Background()
	sub := redisCache.Subscribe(ctx, "payments:resolved")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := NewRedisPublisher(redisCache, "payments:resolved")
	require.NoError(t, p.Publish(ctx, "ignored", map[string]interface{}{"rideId": 1}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
	assert.Equal(t, float64(1), payload["rideId"])
}

type recordingPublisher struct {
	keys []string
	err  error
}

func (r *recordingPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	r.keys = append(r.keys, key)
	return r.err
}

func (r *recordingPublisher) Close() error { return r.err }

func TestMultiPublisherContinuesPastFailures(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("down")}
	ok := &recordingPublisher{}
	m := NewMultiPublisher(failing, nil, ok)

	assert.Equal(t, 2, m.Len())

	err := m.Publish(context.Background(), "pay-1", nil)
	assert.ErrorContains(t, err, "down")
	assert.Equal(t, []string{"pay-1"}, failing.keys)
	assert.Equal(t, []string{"pay-1"}, ok.keys)

	assert.Error(t, m.Close())
	assert.NoError(t, NewMultiPublisher().Publish(context.Background(), "x", nil))
}

func TestEnvelopeRoundTrip(t *testing.T) {
	raw, err := json.Marshal(NewEnvelope("payment.resolved", map[string]int{"rideId": 7}))
	require.NoError(t, err)

	eventType, data, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, "payment.resolved", eventType)
	assert.JSONEq(t, `{"rideId":7}`, string(data))

	_, _, err = DecodeEnvelope([]byte("not json"))
	assert.Error(t, err)
}
