package pubsub

import (
	"context"
	"errors"
	"path"
	"sync"

	"github.com/weiawesome/wes-io-live/chat-client/pkg/log"
)

var ErrClosed = errors.New("pubsub closed")

type memorySub struct {
	pattern string
	ch      chan *Event
}

// MemoryPubSub is an in-process bus. Patterns use path.Match syntax,
// which agrees with Redis globs for the channel names used here.
type MemoryPubSub struct {
	buffer int
	mu     sync.RWMutex
	subs   map[*memorySub]struct{}
	closed bool
}

// NewMemoryPubSub creates an in-process bus with per-subscriber queues
// of length buffer.
func NewMemoryPubSub(buffer int) *MemoryPubSub {
	if buffer <= 0 {
		buffer = 256
	}
	return &MemoryPubSub{buffer: buffer, subs: make(map[*memorySub]struct{})}
}

// Publish delivers event to every matching subscriber. A subscriber
// whose queue is full misses the event.
func (m *MemoryPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	for sub := range m.subs {
		if ok, _ := path.Match(sub.pattern, channel); !ok {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			l := log.Ctx(ctx)
			l.Warn().Str("channel", channel).Msg("subscriber queue full, event dropped")
		}
	}
	return nil
}

// SubscribePattern subscribes to channels matching a pattern.
func (m *MemoryPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	sub := &memorySub{pattern: pattern, ch: make(chan *Event, m.buffer)}
	m.subs[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		m.remove(sub)
	}()
	return sub.ch, nil
}

func (m *MemoryPubSub) remove(sub *memorySub) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[sub]; ok {
		delete(m.subs, sub)
		close(sub.ch)
	}
}

// Close closes every subscription.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sub := range m.subs {
		close(sub.ch)
	}
	m.subs = make(map[*memorySub]struct{})
	m.closed = true
	return nil
}
