// Package publisher emits audit events to a Store either synchronously or
// through a bounded in-process buffer drained by a background worker.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "doccontrol/pkg/platform/audit"
)

// Publisher fronts an audit Store.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for dropped or failed events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAsyncBuffer makes Emit non-blocking, buffering up to size events.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

// NewPublisher creates a publisher. In async mode it starts the drain worker;
// call Close to flush it.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Emit records an event. Category and timestamp are filled in when missing.
// In async mode a full buffer drops the event and logs it.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.buffer <- event:
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, dropping event",
				"action", event.Action,
				"subject", event.Subject,
			)
		}
	}
	return nil
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.buffer {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.store.Append(ctx, event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"subject", event.Subject,
				"error", err,
			)
		}
		cancel()
	}
}

// Close drains buffered events. Emit must not be called after Close.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}
