// Package eventbus implements a small in-process typed publish/subscribe
// bus used to decouple the marketdata, signal, execution and risk
// contexts from one another. Handlers for a topic run concurrently and
// Publish blocks until all of them return, mirroring a fan-out-then-join
// rather than fire-and-forget.
package eventbus

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bud42069/Arbeit-Trage/internal/logger"
)

const meterName = "github.com/bud42069/Arbeit-Trage/internal/eventbus"

// Topic identifies a named channel of events carrying payloads of type T.
// The zero value is not usable; construct with NewTopic.
type Topic[T any] struct {
	name string
}

// NewTopic declares a topic under name. Two topics with the same name and
// different T are a wiring bug - don't do that.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

// Name returns the topic's wire name, mainly for logging.
func (t Topic[T]) Name() string { return t.name }

type handlerFunc func(context.Context, any) error

// Bus is the concrete event bus. The zero value is not usable; use New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]handlerFunc
	log         logger.LoggerInterface

	publishedCounter metric.Int64Counter
	handlerErrCounter metric.Int64Counter
}

// New creates an empty Bus.
func New(log logger.LoggerInterface) *Bus {
	b := &Bus{
		subscribers: make(map[string][]handlerFunc),
		log:         log,
	}
	meter := otel.Meter(meterName)
	b.publishedCounter, _ = meter.Int64Counter(
		"eventbus_published_total",
		metric.WithDescription("Events published, by topic"),
	)
	b.handlerErrCounter, _ = meter.Int64Counter(
		"eventbus_handler_errors_total",
		metric.WithDescription("Handler errors/panics, by topic"),
	)
	return b
}

// Subscribe registers handler to run whenever topic is published. Order
// of registration has no bearing on delivery order - handlers run
// concurrently.
func Subscribe[T any](b *Bus, topic Topic[T], handler func(context.Context, T) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic.name] = append(b.subscribers[topic.name], func(ctx context.Context, payload any) error {
		return handler(ctx, payload.(T))
	})
}

// Publish fans payload out to every handler subscribed to topic and waits
// for all of them to finish. A handler's error or panic is logged and
// counted; it never stops delivery to the other handlers, matching the
// "gather with return_exceptions" semantics this bus was modeled on.
func Publish[T any](ctx context.Context, b *Bus, topic Topic[T], payload T) {
	b.mu.RLock()
	handlers := make([]handlerFunc, len(b.subscribers[topic.name]))
	copy(handlers, b.subscribers[topic.name])
	b.mu.RUnlock()

	if b.publishedCounter != nil {
		b.publishedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic.name)))
	}

	if len(handlers) == 0 {
		if b.log != nil {
			b.log.Debug(ctx, "no subscribers for topic", "topic", topic.name)
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(handlers))
	for _, h := range handlers {
		go func(h handlerFunc) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					if b.handlerErrCounter != nil {
						b.handlerErrCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic.name)))
					}
					if b.log != nil {
						b.log.Error(ctx, "eventbus handler panicked", "topic", topic.name, "panic", r)
					}
				}
			}()
			if err := h(ctx, payload); err != nil {
				if b.handlerErrCounter != nil {
					b.handlerErrCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic.name)))
				}
				if b.log != nil {
					b.log.Error(ctx, "eventbus handler failed", "topic", topic.name, "error", err)
				}
			}
		}(h)
	}
	wg.Wait()
}
