// Package realtime fans table-change notifications out to subscribers.
// Store adapters publish; services subscribe and invalidate or re-list.
package realtime

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Hub implements port.ChangeFeed.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func()
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{subs: map[string]map[int]func(){}, logger: logger}
}

// Subscribe registers fn for changes on table. The returned func removes it.
func (h *Hub) Subscribe(table string, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if h.subs[table] == nil {
		h.subs[table] = map[int]func(){}
	}
	h.subs[table][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[table], id)
			if len(h.subs[table]) == 0 {
				delete(h.subs, table)
			}
		})
	}
}

// Publish notifies every subscriber of table. Callbacks run synchronously
// outside the lock; a panicking callback is logged and does not stop the rest.
func (h *Hub) Publish(table string) {
	h.mu.RLock()
	fns := make([]func(), 0, len(h.subs[table]))
	for _, fn := range h.subs[table] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		h.invoke(table, fn)
	}
}

func (h *Hub) invoke(table string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("realtime: subscriber panicked", zap.String("table", table), zap.Any("panic", r))
		}
	}()
	fn()
}

// Tables lists tables that currently have subscribers, sorted.
func (h *Hub) Tables() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.subs))
	for t := range h.subs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
