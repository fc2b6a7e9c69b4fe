package eventsvc

import (
	"context"
	"sync"

	"github.com/trezcool/darasa/core"
)

// LogPublisher only logs the events. Used when no broker is configured.
type LogPublisher struct {
	logger core.Logger
}

var _ core.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger core.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (pub *LogPublisher) Publish(_ context.Context, evt core.Event) error {
	pub.logger.Debug("event "+evt.Name, evt.Payload)
	return nil
}

// MemoryPublisher records the events it receives.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []core.Event
}

var _ core.EventPublisher = (*MemoryPublisher)(nil)

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (pub *MemoryPublisher) Publish(_ context.Context, evt core.Event) error {
	pub.mu.Lock()
	pub.events = append(pub.events, evt)
	pub.mu.Unlock()
	return nil
}

// Events returns the recorded events, optionally only those named `names`.
func (pub *MemoryPublisher) Events(names ...string) []core.Event {
	pub.mu.Lock()
	defer pub.mu.Unlock()

	evts := make([]core.Event, 0, len(pub.events))
	for _, evt := range pub.events {
		if len(names) == 0 || contains(names, evt.Name) {
			evts = append(evts, evt)
		}
	}
	return evts
}

func (pub *MemoryPublisher) Reset() {
	pub.mu.Lock()
	pub.events = nil
	pub.mu.Unlock()
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// NewPublisher connects to the broker at `conf.AMQPURL` when set, and logs the events otherwise.
// The returned func releases the broker connection.
func NewPublisher(conf *core.Config, logger core.Logger) (core.EventPublisher, func(), error) {
	if conf.AMQPURL == "" {
		return NewLogPublisher(logger), func() {}, nil
	}
	pub, err := NewAMQPPublisher(conf.AMQPURL, logger)
	if err != nil {
		return nil, nil, err
	}
	return pub, func() { _ = pub.Close() }, nil
}
