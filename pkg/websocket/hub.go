package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"goride-payments/pkg/logger"
)

// Message is what stream subscribers receive. Data is the event payload as published.
type Message struct {
	Type      string          `json:"type"`
	RideID    int64           `json:"rideId"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

var errHubStopped = errors.New("websocket hub stopped")

type roomMessage struct {
	rideID   int64
	data     []byte
	resolved bool
}

type directMessage struct {
	client   *Client
	data     []byte
	snapshot bool
}

// Hub fans messages out to the clients watching one ride. All room state is owned by Run.
type Hub struct {
	rooms      map[int64]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage
	direct     chan directMessage
	done       chan struct{}
	logger     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		rooms:      make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomMessage, 64),
		direct:     make(chan directMessage, 64),
		done:       make(chan struct{}),
		logger:     log.WithField("component", "websocket_hub"),
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, room := range h.rooms {
				for client := range room {
					close(client.send)
				}
			}
			h.rooms = make(map[int64]map[*Client]bool)
			return

		case client := <-h.register:
			room := h.rooms[client.rideID]
			if room == nil {
				room = make(map[*Client]bool)
				h.rooms[client.rideID] = room
			}
			room[client] = true
			h.logger.WithRideID(client.rideID).Debug("Stream client registered")

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			for client := range h.rooms[msg.rideID] {
				if msg.resolved {
					client.resolved = true
				}
				h.deliver(client, msg.data)
			}

		case msg := <-h.direct:
			if !h.rooms[msg.client.rideID][msg.client] {
				continue
			}
			// A snapshot read before the resolution must not overwrite it.
			if msg.snapshot && msg.client.resolved {
				h.logger.WithRideID(msg.client.rideID).Debug("Dropping snapshot older than delivered resolution")
				continue
			}
			h.deliver(msg.client, msg.data)
		}
	}
}

// Broadcast queues a message for every client watching rideID.
func (h *Hub) Broadcast(ctx context.Context, rideID int64, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if h.stopped() {
		return errHubStopped
	}
	select {
	case h.broadcast <- roomMessage{rideID: rideID, data: data, resolved: msg.Type == MessageTypeResolved}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return errHubStopped
	}
}

// Send queues a message for one registered client.
func (h *Hub) Send(ctx context.Context, client *Client, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if h.stopped() {
		return errHubStopped
	}
	select {
	case h.direct <- directMessage{client: client, data: data, snapshot: msg.Type == MessageTypeSnapshot}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return errHubStopped
	}
}

func (h *Hub) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) drop(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// deliver drops a client whose buffer is full instead of blocking the hub.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.logger.WithRideID(client.rideID).Warn("Stream client too slow, disconnecting")
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	room, ok := h.rooms[client.rideID]
	if !ok || !room[client] {
		return
	}
	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(h.rooms, client.rideID)
	}
}

func newMessage(msgType string, rideID int64, data json.RawMessage) *Message {
	return &Message{
		Type:      msgType,
		RideID:    rideID,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}
}
