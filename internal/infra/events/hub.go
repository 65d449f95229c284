package events

import (
	"sync"

	"github.com/rs/zerolog"

	"gallery-dl-web/internal/domain/model"
)

// Buffer per subscriber. A consumer that falls this far behind is dropped
// rather than allowed to block publishers.
const subscriberBuffer = 64

// Subscription is one observer's live event stream. The first event on the
// channel is always the session snapshot it was opened with.
type Subscription struct {
	sessionID string
	ch        chan model.JobEvent
	hub       *Hub
	once      sync.Once
}

func (s *Subscription) Events() <-chan model.JobEvent { return s.ch }

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Hub fans job-state changes out to subscribed observers. Subscribers are
// scoped to a session and only ever see that session's events.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	log  zerolog.Logger
}

func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[*Subscription]struct{}),
		log:  logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers an observer and queues the given snapshot as its first
// event. The caller is responsible for making snapshot-vs-mutation ordering
// atomic (the job repository subscribes under its own lock).
func (h *Hub) Subscribe(sessionID string, snapshot []*model.Job) *Subscription {
	sub := &Subscription{
		sessionID: sessionID,
		ch:        make(chan model.JobEvent, subscriberBuffer),
		hub:       h,
	}
	sub.ch <- model.JobEvent{Kind: model.EventSnapshot, SessionID: sessionID, Jobs: snapshot}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Publish delivers evt to every subscriber of its session without blocking.
// A subscriber with a full buffer is closed and removed.
func (h *Hub) Publish(evt model.JobEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.sessionID != evt.SessionID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			h.log.Warn().Str("session_id", sub.sessionID).Msg("dropping slow event subscriber")
			h.remove(sub)
		}
	}
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		h.remove(sub)
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(sub *Subscription) {
	delete(h.subs, sub)
	sub.once.Do(func() { close(sub.ch) })
}

// Close drops every subscriber, ending their streams.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		h.remove(sub)
	}
}
