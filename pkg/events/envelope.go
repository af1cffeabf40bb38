package events

import (
	"encoding/json"
	"time"
)

// Envelope wraps every published event so consumers can filter by type.
type Envelope struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data"`
}

func NewEnvelope(eventType string, data interface{}) *Envelope {
	return &Envelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// DecodeEnvelope returns the event type and the undecoded data.
func DecodeEnvelope(raw []byte) (string, json.RawMessage, error) {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, err
	}
	return env.Type, env.Data, nil
}
