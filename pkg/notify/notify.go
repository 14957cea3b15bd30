// Package notify delivers pipeline notifications to the places an operator
// may be looking: logs, live dashboard connections and message brokers.
package notify

import (
	"context"
	"sync"
	"time"

	"CraneGuard/internal/entity"
	"CraneGuard/pkg/utils"
	"github.com/sirupsen/logrus"
)

type Sink interface {
	Notify(ctx context.Context, n entity.Notification) error
}

type SinkFunc func(ctx context.Context, n entity.Notification) error

func (f SinkFunc) Notify(ctx context.Context, n entity.Notification) error {
	return f(ctx, n)
}

// Fanout stamps an id on each notification and hands it to every sink. A sink
// failure is logged and does not stop delivery to the others.
type Fanout struct {
	sinks []Sink
	ids   utils.IUtils
	log   *logrus.Logger
}

func NewFanout(logger *logrus.Logger, ids utils.IUtils, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, ids: ids, log: logger}
}

func (f *Fanout) Notify(ctx context.Context, n entity.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.ID == "" {
		if id, err := f.ids.NewULIDFromTimestamp(n.CreatedAt); err == nil {
			n.ID = id
		}
	}

	for _, sink := range f.sinks {
		if err := sink.Notify(ctx, n); err != nil {
			f.log.WithFields(logrus.Fields{
				"notification_id": n.ID,
				"kind":            n.Kind,
				"error":           err.Error(),
			}).Warn("Notification sink failed")
		}
	}
	return nil
}

type LogSink struct {
	log *logrus.Logger
}

func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{log: logger}
}

func (s *LogSink) Notify(_ context.Context, n entity.Notification) error {
	entry := s.log.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"kind":            n.Kind,
		"zone":            n.ZoneID,
		"description":     n.Description,
	})
	if n.Kind == entity.NotificationHumanDetected {
		entry.Warn(n.Title)
	} else {
		entry.Error(n.Title)
	}
	return nil
}

// Hub fans notifications out to subscribed channels, dropping for
// subscribers that are not keeping up.
type Hub struct {
	mu      sync.Mutex
	clients map[int]chan entity.Notification
	nextID  int
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int]chan entity.Notification)}
}

func (h *Hub) Subscribe() (int, <-chan entity.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan entity.Notification, 8)
	h.clients[id] = ch
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[id]; ok {
		close(ch)
		delete(h.clients, id)
	}
}

func (h *Hub) Notify(_ context.Context, n entity.Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.clients {
		select {
		case ch <- n:
		default:
		}
	}
	return nil
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}
