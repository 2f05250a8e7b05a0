// Package notify signals that cached or live views derived from the store
// have changed. Signals are best effort: a failed publish never fails the
// mutation that caused it.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"rental_marketplace/pkg/logger"
)

const (
	TopicAdminQueue = "admin:queue"
	TopicExplore    = "explore"
	TopicAdminUsers = "admin:users"
)

func OwnerProperties(ownerID uuid.UUID) string { return "owner:" + ownerID.String() + ":properties" }
func Property(id uuid.UUID) string { return "property:" + id.String() }
func UserChats(userID uuid.UUID) string { return "chats:user:" + userID.String() }
func Chat(id uuid.UUID) string { return "chat:" + id.String() }

// Event names the topics whose views are stale. Data is optional and carried
// to live subscribers as is.
type Event struct {
	Topics []string
	At     time.Time
	Data   any
}

// Envelope is the wire form delivered per topic.
type Envelope struct {
	Topic string          `json:"topic"`
	At    time.Time       `json:"at"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type Subscriber interface {
	// Subscribe delivers envelopes for topic until ctx is done or the returned
	// close function is called.
	Subscribe(ctx context.Context, topic string) (<-chan Envelope, func(), error)
}

// LogPublisher only records signals in the log. It is used when no broker is configured.
type LogPublisher struct {
	log logger.Logger
}

func NewLogPublisher(log logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) {
	p.log.Debug("Change signal", "topics", event.Topics, "at", event.At)
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Topics returns every topic signalled so far, in publish order.
func (r *Recorder) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var topics []string
	for _, e := range r.events {
		topics = append(topics, e.Topics...)
	}
	return topics
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func dedupe(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := topics[:0:0]
	for _, t := range topics {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
