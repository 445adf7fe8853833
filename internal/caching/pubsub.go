package caching

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Message is one payload received on a channel.
type Message struct {
	Channel string
	Payload []byte
}

// Broker fans messages out to subscribers of a channel.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel of messages and a cancel function. The
	// message channel is closed after cancel or when ctx ends.
	Subscribe(ctx context.Context, channel string) (<-chan Message, func(), error)
}

type redisBroker struct {
	client redis.UniversalClient
}

func NewRedisBroker(client redis.UniversalClient) Broker {
	return &redisBroker{client: client}
}

func (b *redisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *redisBroker) Subscribe(ctx context.Context, channel string) (<-chan Message, func(), error) {
	ps := b.client.Subscribe(ctx, channel)
	// Receive blocks until the subscription is confirmed so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan Message, 16)
	var once sync.Once
	cancel := func() { once.Do(func() { _ = ps.Close() }) }

	go func() {
		defer close(out)
		src := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case msg, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					cancel()
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

// memoryBroker serves single-instance deployments running without Redis.
type memoryBroker struct {
	mu   sync.RWMutex
	subs map[string]map[*memorySub]struct{}
}

type memorySub struct {
	ch   chan Message
	once sync.Once
	done chan struct{}
}

func NewMemoryBroker() Broker {
	return &memoryBroker{subs: make(map[string]map[*memorySub]struct{})}
}

func (b *memoryBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[channel] {
		select {
		case sub.ch <- Message{Channel: channel, Payload: payload}:
		case <-sub.done:
		default:
			// slow subscriber; drop rather than block publishers
		}
	}
	return nil
}

func (b *memoryBroker) Subscribe(ctx context.Context, channel string) (<-chan Message, func(), error) {
	sub := &memorySub{ch: make(chan Message, 16), done: make(chan struct{})}

	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*memorySub]struct{})
	}
	b.subs[channel][sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			b.mu.Lock()
			delete(b.subs[channel], sub)
			if len(b.subs[channel]) == 0 {
				delete(b.subs, channel)
			}
			b.mu.Unlock()
			close(sub.done)
			close(sub.ch)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()

	return sub.ch, cancel, nil
}

// subscriberCount is used by tests.
func (b *memoryBroker) subscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}
