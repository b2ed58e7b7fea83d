package bus

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kandev/agui-gateway/internal/common/logger"
)

// MemoryEventBus implements EventBus using in-memory fan-out. Handlers run
// synchronously in publish order: subscribers mirror ordered run event
// streams, and asynchronous dispatch would let later events overtake earlier
// ones.
type MemoryEventBus struct {
	subscriptions map[string][]*memorySubscription
	mu            sync.RWMutex
	logger        *logger.Logger
	closed        bool
}

// memorySubscription represents an in-memory subscription
type memorySubscription struct {
	bus     *MemoryEventBus
	subject string
	pattern *regexp.Regexp // For wildcard matching
	handler EventHandler
	active  bool
	mu      sync.Mutex
}

// Unsubscribe removes the subscription
func (s *memorySubscription) Unsubscribe() error {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()

	// Remove from bus subscriptions
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if subs, ok := s.bus.subscriptions[s.subject]; ok {
		for i, sub := range subs {
			if sub == s {
				s.bus.subscriptions[s.subject] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}

	return nil
}

// IsValid returns whether the subscription is still active
func (s *memorySubscription) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// NewMemoryEventBus creates a new in-memory event bus
func NewMemoryEventBus(log *logger.Logger) *MemoryEventBus {
	return &MemoryEventBus{
		subscriptions: make(map[string][]*memorySubscription),
		logger:        log,
	}
}

// Publish delivers an event to all matching subscribers, in subscription
// order, before returning.
func (b *MemoryEventBus) Publish(ctx context.Context, subject string, event *Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("event bus is closed")
	}

	// Snapshot matching subscriptions so handlers run outside the lock
	var matched []*memorySubscription
	for pattern, subs := range b.subscriptions {
		for _, sub := range subs {
			if b.matches(subject, pattern, sub.pattern) {
				matched = append(matched, sub)
			}
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		sub.mu.Lock()
		active := sub.active
		sub.mu.Unlock()
		if !active {
			continue
		}

		if err := sub.handler(ctx, event); err != nil {
			b.logger.Error("Event handler error",
				zap.String("subject", subject),
				zap.Error(err))
		}
	}

	b.logger.Debug("Published event",
		zap.String("subject", subject),
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type))

	return nil
}

// Subscribe creates a subscription to a subject pattern
func (b *MemoryEventBus) Subscribe(subject string, handler EventHandler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("event bus is closed")
	}

	sub := &memorySubscription{
		bus:     b,
		subject: subject,
		pattern: compilePattern(subject),
		handler: handler,
		active:  true,
	}

	b.subscriptions[subject] = append(b.subscriptions[subject], sub)

	b.logger.Debug("Subscribed to subject", zap.String("subject", subject))
	return sub, nil
}

// Close closes the event bus
func (b *MemoryEventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true

	// Deactivate all subscriptions
	for _, subs := range b.subscriptions {
		for _, sub := range subs {
			sub.mu.Lock()
			sub.active = false
			sub.mu.Unlock()
		}
	}

	b.subscriptions = make(map[string][]*memorySubscription)

	b.logger.Info("Memory event bus closed")
}

// IsConnected returns true (always connected for in-memory)
func (b *MemoryEventBus) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

// matches checks if a subject matches a pattern
// Supports NATS-style wildcards: * (single token) and > (multiple tokens)
func (b *MemoryEventBus) matches(subject, pattern string, regex *regexp.Regexp) bool {
	// If no wildcards, do exact match
	if !strings.Contains(pattern, "*") && !strings.Contains(pattern, ">") {
		return subject == pattern
	}

	// Use the compiled regex
	if regex != nil {
		return regex.MatchString(subject)
	}

	return false
}

// compilePattern converts NATS-style pattern to regex
func compilePattern(pattern string) *regexp.Regexp {
	// If no wildcards, no need for regex
	if !strings.Contains(pattern, "*") && !strings.Contains(pattern, ">") {
		return nil
	}

	// Escape special regex characters except * and >
	escaped := regexp.QuoteMeta(pattern)

	// Replace escaped \* with regex for single token (anything except .)
	escaped = strings.ReplaceAll(escaped, `\*`, `[^.]+`)

	// Replace > with regex for remaining tokens; QuoteMeta leaves it
	// unescaped since it is not a regex metacharacter
	escaped = strings.ReplaceAll(escaped, `>`, `.+`)

	// Anchor the pattern
	escaped = "^" + escaped + "$"

	regex, err := regexp.Compile(escaped)
	if err != nil {
		return nil
	}

	return regex
}
