package events

import (
	"context"
	"sync"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"

	"go.uber.org/zap"
)

// Handler consumes one delivered edge event.
type Handler func(ctx context.Context, event domain.EdgeEvent) error

// LocalBus fans edge events out to in-process subscribers. Delivery never
// blocks the publisher: a subscriber whose buffer is full misses the event.
type LocalBus struct {
	mu      sync.RWMutex
	subs    map[int]chan domain.EdgeEvent
	nextID  int
	dropped int64
	logger  *zap.SugaredLogger
}

func NewLocalBus(logger *zap.SugaredLogger) *LocalBus {
	return &LocalBus{
		subs:   make(map[int]chan domain.EdgeEvent),
		logger: logger,
	}
}

// PublishEdgeEvent implements ports.EventPublisher.
func (b *LocalBus) PublishEdgeEvent(ctx context.Context, event domain.EdgeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.dropped++
			b.logger.Warnw("Dropping edge event for slow subscriber",
				"subscriber", id,
				"kind", event.Kind,
				"target_id", event.TargetID,
			)
		}
	}
	return nil
}

// Subscribe registers a subscriber with the given buffer. The returned cancel
// func unregisters it and closes the channel.
func (b *LocalBus) Subscribe(buffer int) (<-chan domain.EdgeEvent, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan domain.EdgeEvent, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Dropped is the number of deliveries skipped because a subscriber was full.
func (b *LocalBus) Dropped() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Pump feeds every event from ch to handler until ch closes or ctx is done.
func Pump(ctx context.Context, ch <-chan domain.EdgeEvent, handler Handler, logger *zap.SugaredLogger) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := handler(ctx, event); err != nil {
				logger.Warnw("error handling edge event",
					"kind", event.Kind,
					"target_id", event.TargetID,
					"error", err,
				)
			}
		}
	}
}

// Fanout publishes to every publisher and returns the first error.
type Fanout []ports.EventPublisher

func (f Fanout) PublishEdgeEvent(ctx context.Context, event domain.EdgeEvent) error {
	var firstErr error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.PublishEdgeEvent(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
