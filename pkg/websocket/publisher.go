package websocket

import (
	"context"
	"encoding/json"
)

// HubPublisher is an events.Publisher that pushes payment.resolved envelopes to this
// instance's stream clients. It stands in for the Redis relay on single-instance deployments.
type HubPublisher struct {
	hub *Hub
}

func NewHubPublisher(hub *Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return broadcastResolved(ctx, p.hub, payload)
}

func (p *HubPublisher) Close() error {
	return nil
}
