package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"goride-payments/pkg/events"
	"goride-payments/pkg/logger"

	"github.com/redis/go-redis/v9"
)

type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisRelay forwards payment.resolved events from a Redis channel to stream clients,
// so every server instance can push resolutions applied by any other.
type RedisRelay struct {
	source  subscriber
	channel string
	hub     *Hub
	logger  *logger.Logger
}

func NewRedisRelay(source subscriber, channel string, hub *Hub, log *logger.Logger) *RedisRelay {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisRelay{
		source:  source,
		channel: channel,
		hub:     hub,
		logger:  log.WithField("component", "websocket_relay"),
	}
}

// Run blocks until ctx is done or the subscription fails.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.source.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.forward(ctx, []byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) forward(ctx context.Context, payload []byte) {
	if err := broadcastResolved(ctx, r.hub, payload); err != nil {
		r.logger.WithError(err).Warn("Failed to relay payment event")
	}
}

var errMissingRideID = errors.New("payment.resolved event without rideId")

// broadcastResolved pushes an encoded payment.resolved envelope to the ride's room.
// Other event types are ignored.
func broadcastResolved(ctx context.Context, hub *Hub, payload []byte) error {
	eventType, data, err := events.DecodeEnvelope(payload)
	if err != nil {
		return err
	}
	if eventType != MessageTypeResolved {
		return nil
	}

	var target struct {
		RideID int64 `json:"rideId"`
	}
	if err := json.Unmarshal(data, &target); err != nil || target.RideID <= 0 {
		return errMissingRideID
	}

	return hub.Broadcast(ctx, target.RideID, newMessage(MessageTypeResolved, target.RideID, data))
}
