package events

import (
	"context"
	"errors"
)

// Publisher is implemented by every event sink.
type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// MultiPublisher fans one event out to every sink. A failing sink does not stop the others.
type MultiPublisher struct {
	publishers []Publisher
}

func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	active := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			active = append(active, p)
		}
	}
	return &MultiPublisher{publishers: active}
}

func (m *MultiPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, key, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiPublisher) Close() error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiPublisher) Len() int {
	return len(m.publishers)
}
