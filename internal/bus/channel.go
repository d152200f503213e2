// Package bus provides event bus implementations for Harrier.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
)

// ChannelBus is the Community tier event bus: in-process pub/sub over
// buffered Go channels. Delivery is at-most-once; a subscriber whose
// buffer is full misses the message rather than stalling the publisher.
type ChannelBus struct {
	mu         sync.RWMutex
	bufferSize int
	// (tenant, topic) -> subscription id -> subscription
	subs   map[string]map[string]*channelSubscription
	closed bool
}

type channelSubscription struct {
	id      string
	topic   string
	inbox   chan *domain.Message
	cancel  context.CancelFunc
	detach  func()
	once    sync.Once
}

// NewChannelBus creates an in-process bus with the given per-subscriber
// buffer size.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		bufferSize: bufferSize,
		subs:       make(map[string]map[string]*channelSubscription),
	}
}

// Publish delivers a message to every subscriber of (tenantID, topic).
func (b *ChannelBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	msg := &domain.Message{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}

	for _, sub := range b.subs[subKey(tenantID, topic)] {
		select {
		case sub.inbox <- msg:
		default:
			// Subscriber buffer full; drop for this subscriber.
		}
	}
	return nil
}

// Subscribe registers a handler for (tenantID, topic). The handler runs
// on a dedicated goroutine until Unsubscribe or Close.
func (b *ChannelBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	subCtx, cancel := context.WithCancel(ctx)
	key := subKey(tenantID, topic)
	sub := &channelSubscription{
		id:     uuid.New().String(),
		topic:  topic,
		inbox:  make(chan *domain.Message, b.bufferSize),
		cancel: cancel,
	}
	sub.detach = func() { b.remove(key, sub.id) }

	if b.subs[key] == nil {
		b.subs[key] = make(map[string]*channelSubscription)
	}
	b.subs[key][sub.id] = sub

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case msg := <-sub.inbox:
				if msg == nil {
					return
				}
				_ = handler(subCtx, msg)
			}
		}
	}()

	return sub, nil
}

// Ping reports bus health.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	return nil
}

// Close cancels every subscription and rejects further publishes.
// Safe to call more than once.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, group := range b.subs {
		for _, sub := range group {
			sub.cancel()
		}
	}
	b.subs = make(map[string]map[string]*channelSubscription)
	return nil
}

// remove drops a subscription from the routing table.
func (b *ChannelBus) remove(key, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if group, ok := b.subs[key]; ok {
		delete(group, id)
		if len(group) == 0 {
			delete(b.subs, key)
		}
	}
}

func subKey(tenantID, topic string) string {
	return tenantID + ":" + topic
}

// Unsubscribe stops delivery and removes the subscription from the bus.
func (s *channelSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.cancel()
		if s.detach != nil {
			s.detach()
		}
	})
	return nil
}

// Topic returns the subscribed topic.
func (s *channelSubscription) Topic() string {
	return s.topic
}
