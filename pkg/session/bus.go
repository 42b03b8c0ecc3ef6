package session

import (
	"sync"

	"call-review/pkg/models"
)

type EventType string

const (
	EventPlayback    EventType = "playback"
	EventScore       EventType = "score"
	EventScoreFailed EventType = "score_failed"
	EventReset       EventType = "reset"
	EventClosed      EventType = "closed"
)

// Event is a change notification emitted by a session so any UI layer can
// subscribe without coupling the engine to a rendering model.
type Event struct {
	Type        EventType                `json:"type"`
	SessionID   string                   `json:"session_id"`
	CategoryID  string                   `json:"category_id,omitempty"`
	CriterionID string                   `json:"criterion_id,omitempty"`
	Playback    *models.PlaybackState    `json:"playback,omitempty"`
	Statistics  *models.SessionStatistics `json:"statistics,omitempty"`
	Notice      *models.Notice           `json:"notice,omitempty"`
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// that falls behind drops events and catches up from the next snapshot.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

func (b *Bus) Subscribe() (int, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, 16)
	b.subs[id] = ch
	return id, ch
}

func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
