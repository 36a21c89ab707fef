// Package activity journals agent actions and streams them to live viewers.
package activity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ashureev/psiobot/internal/domain"
)

// Journal is the durable side of the hub.
type Journal interface {
	Record(ctx context.Context, a *domain.Action) error
	Recent(ctx context.Context, limit int) ([]*domain.Action, error)
}

// Hub records actions to the journal and fans them out to subscribers.
// A slow subscriber misses events rather than blocking the agent.
type Hub struct {
	journal Journal
	logger  *slog.Logger

	mu   sync.RWMutex
	subs map[uint64]chan *domain.Action
	next uint64
}

// NewHub creates a hub. A nil journal keeps actions in logs and streams only.
func NewHub(journal Journal, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		journal: journal,
		logger:  logger,
		subs:    make(map[uint64]chan *domain.Action),
	}
}

// Record journals a and publishes it. Subscribers receive the action even
// when the journal write fails.
func (h *Hub) Record(ctx context.Context, a *domain.Action) error {
	var err error
	if h.journal != nil {
		err = h.journal.Record(ctx, a)
	}

	h.logger.Info("Action", "kind", a.Kind, "target", a.Target, "ok", a.OK, "error", a.Error)
	h.publish(a)
	return err
}

// Recent returns journaled actions, newest first.
func (h *Hub) Recent(ctx context.Context, limit int) ([]*domain.Action, error) {
	if h.journal == nil {
		return nil, nil
	}
	return h.journal.Recent(ctx, limit)
}

// Subscribe registers a subscriber with a buffer of size buffer.
func (h *Hub) Subscribe(buffer int) (uint64, <-chan *domain.Action) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan *domain.Action, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	h.subs[id] = ch
	h.logger.Debug("Activity subscriber registered", "subscriber", id)
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
		h.logger.Debug("Activity subscriber unregistered", "subscriber", id)
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) publish(a *domain.Action) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- a:
		default:
			h.logger.Debug("Activity subscriber lagging, event dropped", "subscriber", id)
		}
	}
}
