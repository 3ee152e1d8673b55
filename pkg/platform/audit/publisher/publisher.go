// Package publisher fans audit events out to a store and an optional
// security sink, synchronously by default or through a buffered worker.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	audit "keyhaven/pkg/platform/audit"
	"keyhaven/pkg/requestcontext"
)

type Publisher struct {
	store  audit.Store
	sink   audit.Sink
	logger *slog.Logger

	inbox chan audit.Event
	wg    sync.WaitGroup
	once  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to asynchronous mode with the given
// inbox capacity. Emit never blocks the request path; a full inbox drops the
// event with a warning rather than stalling verification.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

// WithSink attaches a security sink in addition to the store.
func WithSink(sink audit.Sink) Option {
	return func(p *Publisher) {
		p.sink = sink
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Emit records an audit event. The event timestamp defaults to the
// request-scoped time when unset.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if p.inbox != nil {
		select {
		case p.inbox <- event:
		default:
			if p.logger != nil {
				p.logger.Warn("audit inbox full, dropping event", "action", event.Action)
			}
		}
		return nil
	}
	return p.deliver(context.WithoutCancel(ctx), event)
}

// List returns the stored events for an address, oldest first.
func (p *Publisher) List(ctx context.Context, address string) ([]audit.Event, error) {
	return p.store.ListByAddress(ctx, address)
}

// Close drains the inbox and stops the worker. Safe to call more than once.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
		if p.sink != nil {
			p.sink.Close()
		}
	})
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.inbox {
		if err := p.deliver(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("audit delivery failed", "action", event.Action, "error", err)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	if p.sink != nil && event.Category == audit.CategorySecurity {
		if err := p.sink.Publish(ctx, event); err != nil && p.logger != nil {
			// Sink failures never fail the caller; the store copy is durable.
			p.logger.Warn("audit sink publish failed", "action", event.Action, "error", err)
		}
	}
	return nil
}
