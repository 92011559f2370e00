package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/crestline-erp/approvalflow/internal/application/port"
)

// Hub is the in-process live emitter: one subscription per connected
// client, keyed by role. Delivery is best-effort with no replay — a
// subscriber whose buffer is full simply misses the event and recovers by
// re-querying the pending list.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int64]chan port.PendingEvent
	nextID int64
	closed atomic.Bool
	logger Logger
}

// NewHub creates an empty hub.
func NewHub(logger Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[int64]chan port.PendingEvent),
		logger: logger,
	}
}

// Subscribe registers a buffered subscription for a role. The returned
// cancel function removes the subscription and closes the channel.
func (h *Hub) Subscribe(role string, buffer int) (<-chan port.PendingEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan port.PendingEvent, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[role] == nil {
		h.subs[role] = make(map[int64]chan port.PendingEvent)
	}
	h.subs[role][id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if subs, ok := h.subs[role]; ok {
			if c, ok := subs[id]; ok {
				delete(subs, id)
				close(c)
			}
			if len(subs) == 0 {
				delete(h.subs, role)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Emit implements port.EventSink. Sends never block: a slow subscriber
// drops the event.
func (h *Hub) Emit(_ context.Context, role string, evt port.PendingEvent) {
	if h.closed.Load() {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[role] {
		select {
		case ch <- evt:
		default:
			if h.logger != nil {
				h.logger.Info("Subscriber buffer full, event dropped",
					"role", role,
					"record_id", evt.RecordID,
				)
			}
		}
	}
}

// SubscriberCount returns the number of live subscriptions for a role.
func (h *Hub) SubscriberCount(role string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[role])
}

// Close drops all subscriptions and closes their channels. Subsequent
// emits are no-ops.
func (h *Hub) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for role, subs := range h.subs {
		for id, ch := range subs {
			delete(subs, id)
			close(ch)
		}
		delete(h.subs, role)
	}
}

var _ port.EventSink = (*Hub)(nil)
