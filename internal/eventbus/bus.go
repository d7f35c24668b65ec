// Package eventbus implements the non-blocking, lossy pub/sub fanout that
// carries orchestrator activity to subscribers: discussion lifecycle
// transitions, turn streaming deltas, and summary progress.
package eventbus

import (
	"sync"
	"time"
)

// EventType names the kind of Event carried on the bus (spec §7 WebSocket
// event channel).
type EventType string

const (
	EventDiscussionCreated   EventType = "discussion.created"
	EventDiscussionStarted   EventType = "discussion.started"
	EventDiscussionStopped   EventType = "discussion.stopped"
	EventDiscussionCompleted EventType = "discussion.completed"
	EventDiscussionError     EventType = "discussion.error"
	EventDiscussionDeleted   EventType = "discussion.deleted"
	EventModelThinking       EventType = "model.thinking"
	EventTurnStarted         EventType = "turn.started"
	EventTurnToken           EventType = "turn.token"
	EventTurnStreaming       EventType = "turn.streaming"
	EventTurnCompleted       EventType = "turn.completed"
	EventTurnFailed          EventType = "turn.failed"
	EventRoundCompleted      EventType = "round.completed"
	EventSummaryStarted      EventType = "summary.started"
	EventSummaryToken        EventType = "summary.token"
	EventSummaryStreaming    EventType = "summary.streaming"
	EventSummaryCompleted    EventType = "summary.completed"
)

// Event is one notification published to a discussion's subscribers.
type Event struct {
	Type         EventType   `json:"type"`
	DiscussionID string      `json:"discussion_id"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload,omitempty"`
}

// subscriberBuffer is the per-subscriber channel capacity. A slow consumer
// drops events past this point rather than stalling the publisher (spec
// §5: "event delivery is best-effort, never blocking the turn loop").
const subscriberBuffer = 64

// Bus fans Events out to subscribers of a given discussion ID. Publish never
// blocks: a full subscriber channel silently drops the event.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{} // discussionID -> set of channels
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a new listener for discussionID and returns its
// channel plus an unsubscribe function the caller must call exactly once
// (typically on WebSocket disconnect).
func (b *Bus) Subscribe(discussionID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[discussionID] == nil {
		b.subs[discussionID] = make(map[chan Event]struct{})
	}
	b.subs[discussionID][ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[discussionID]; ok {
			if _, present := set[ch]; present {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(b.subs, discussionID)
			}
		}
	}

	return ch, unsubscribe
}

// Publish broadcasts event to every subscriber of event.DiscussionID. Full
// channels are skipped rather than blocking the caller (mirrors the
// teacher's TurnExecutor.broadcast select/default pattern).
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[event.DiscussionID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports how many listeners are attached to discussionID.
func (b *Bus) SubscriberCount(discussionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[discussionID])
}

// Close tears down every subscriber channel across every discussion. It must
// be called at most once; cmd/server does not call it on shutdown.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for discussionID, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, discussionID)
	}
}
