package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/swfcatalog/pkg/api"
	"github.com/kode4food/swfcatalog/pkg/log"
	"github.com/kode4food/swfcatalog/pkg/util"
)

type (
	// Broker delivers published events to the subscribers that declared
	// interest in the event's topic. Events are dispatched in publish order;
	// all subscribers of one event run concurrently and complete before the
	// next event is dispatched
	Broker struct {
		prod      topic.Producer[*api.EventParams]
		cons      topic.Consumer[*api.EventParams]
		logger    *slog.Logger
		subs      []*subscription
		ctx       context.Context
		cancel    context.CancelFunc
		mu        sync.RWMutex
		wg        sync.WaitGroup
		closed    bool
		startOnce sync.Once
		stopOnce  sync.Once
	}

	subscription struct {
		subscriber api.EventSubscriber
		topics     util.Set[string]
	}
)

var (
	ErrTopicRequired   = errors.New("event topic is required")
	ErrBrokerStopped   = errors.New("event broker stopped")
	ErrHandlerPanicked = errors.New("event handler panicked")
)

// NewBroker creates an event broker backed by an in-process topic
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	queue := caravan.NewTopic[*api.EventParams]()
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		prod:   queue.NewProducer(),
		cons:   queue.NewConsumer(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Subscribe registers subscribers for the topics they report supporting.
// A subscriber that is already registered is left untouched
func (b *Broker) Subscribe(subs ...api.EventSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range subs {
		if sub == nil || b.indexOf(sub) >= 0 {
			continue
		}
		b.subs = append(b.subs, &subscription{
			subscriber: sub,
			topics:     util.SetOf(sub.SupportsEventTopics()...),
		})
	}
}

// Unsubscribe removes a previously registered subscriber
func (b *Broker) Unsubscribe(sub api.EventSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if idx := b.indexOf(sub); idx >= 0 {
		b.subs = slices.Delete(b.subs, idx, idx+1)
	}
}

// Publish enqueues an event for dispatch
func (b *Broker) Publish(ctx context.Context, ev *api.EventParams) error {
	if ev == nil || ev.Topic == "" {
		return ErrTopicRequired
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerStopped
	}
	select {
	case b.prod.Send() <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start begins dispatching published events
func (b *Broker) Start() {
	b.startOnce.Do(func() {
		b.wg.Go(func() {
			for {
				select {
				case <-b.ctx.Done():
					return
				case ev, ok := <-b.cons.Receive():
					if !ok {
						return
					}
					b.dispatch(ev)
				}
			}
		})
	})
}

// Stop halts dispatching and releases the underlying topic. Events still
// queued are dropped
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		b.cancel()
		b.wg.Wait()

		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		b.prod.Close()
		b.cons.Close()
	})
}

func (b *Broker) dispatch(ev *api.EventParams) {
	targets := b.subscribersFor(ev.Topic)
	if len(targets) == 0 {
		b.logger.Debug("No subscribers for event", log.Topic(ev.Topic))
		return
	}

	var wg sync.WaitGroup
	for _, sub := range targets {
		wg.Go(func() {
			if err := b.deliver(sub, ev); err != nil {
				b.logger.Error("Event subscriber failed",
					log.Topic(ev.Topic),
					slog.String("subscriber", fmt.Sprintf("%T", sub)),
					log.Error(err))
			}
		})
	}
	wg.Wait()
}

func (b *Broker) deliver(
	sub api.EventSubscriber, ev *api.EventParams,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanicked, r)
		}
	}()
	return sub.OnEvent(b.ctx, ev)
}

func (b *Broker) subscribersFor(topic string) []api.EventSubscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var res []api.EventSubscriber
	for _, s := range b.subs {
		if s.topics.Contains(topic) {
			res = append(res, s.subscriber)
		}
	}
	return res
}

func (b *Broker) indexOf(sub api.EventSubscriber) int {
	return slices.IndexFunc(b.subs, func(s *subscription) bool {
		return s.subscriber == sub
	})
}
