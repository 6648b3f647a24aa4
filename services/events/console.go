package eventsvc

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

type consolePublisher struct {
	logger core.Logger
}

var _ core.EventPublisher = (*consolePublisher)(nil)

// NewConsolePublisher logs the events instead of publishing them.
func NewConsolePublisher(logger core.Logger) core.EventPublisher {
	return &consolePublisher{logger: logger}
}

func (p *consolePublisher) Publish(_ context.Context, routingKey string, payload interface{}) error {
	body, err := encode(routingKey, payload)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}
	p.logger.Debug("[EVENT] " + string(body))
	return nil
}

func (p *consolePublisher) Close() error { return nil }

// PublisherMock records the published events.
type PublisherMock struct {
	mu     sync.Mutex
	events []Event
	Err    error // returned by Publish when set
}

var _ core.EventPublisher = (*PublisherMock)(nil)

func NewPublisherMock() *PublisherMock {
	return &PublisherMock{}
}

func (p *PublisherMock) Publish(_ context.Context, routingKey string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, Event{Type: routingKey, Payload: payload})
	return nil
}

func (p *PublisherMock) Close() error { return nil }

// Events returns the events published so far.
func (p *PublisherMock) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Types returns the types of the events published so far.
func (p *PublisherMock) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

func (p *PublisherMock) Reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}
