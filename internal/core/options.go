package core

import (
	"log/slog"
)

const defaultQueueSize = 64

// Option configures a Machine.
type Option func(*options)

type options struct {
	entityID  string
	persister Persister
	publisher Publisher
	source    EventSource
	queueSize int
	logger    *slog.Logger
}

func defaultOptions() options {
	return options{
		queueSize: defaultQueueSize,
		logger:    slog.New(slog.DiscardHandler),
	}
}

// WithEntityID fixes the entity id. Machines otherwise get a random UUID.
// Reusing the id of a persisted entity resumes it.
func WithEntityID(id string) Option {
	return func(o *options) { o.entityID = id }
}

func WithPersister(p Persister) Option {
	return func(o *options) { o.persister = p }
}

func WithPublisher(p Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithEventSource forwards every event from s into the machine's queue.
func WithEventSource(s EventSource) Option {
	return func(o *options) { o.source = s }
}

func WithQueueSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.queueSize = size
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
