// Package audit carries scan outcomes from the API to durable storage.
//
// The API publishes one Event per scan decision onto a queue; the worker
// drains the queue into a Sink.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"qrattend/internal/queue"
)

// MessageType tags scan audit messages on the queue.
const MessageType = "scan"

// Event is one scan decision.
type Event struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	Outcome   string    `json:"outcome"`
	RecordID  string    `json:"record_id,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`
}

// Sink stores audit events.
type Sink interface {
	Ingest(ctx context.Context, evt Event) error
}

// Publisher encodes events onto a queue.
type Publisher struct {
	q queue.Queue
}

func NewPublisher(q queue.Queue) *Publisher {
	return &Publisher{q: q}
}

// Publish assigns an id if missing and enqueues evt.
func (p *Publisher) Publish(ctx context.Context, evt Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.ScannedAt.IsZero() {
		evt.ScannedAt = time.Now().UTC()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	return p.q.Publish(ctx, queue.Message{Type: MessageType, Body: body})
}

// Drain consumes scan messages from q into sink until ctx is done. Bad
// messages and sink failures are logged and skipped.
func Drain(ctx context.Context, q queue.Queue, sink Sink, logger *log.Logger) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init: %w", err)
	}
	for msg := range messages {
		if msg.Type != MessageType {
			continue
		}
		var evt Event
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			logger.Printf("audit: drop undecodable message: %v", err)
			continue
		}
		if err := sink.Ingest(ctx, evt); err != nil {
			logger.Printf("audit: ingest %s failed: %v", evt.ID, err)
		}
	}
	return nil
}

// MemorySink keeps events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Ingest(_ context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

// Events returns a copy of everything ingested.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// LogSink writes each event to a logger. Used when no database is configured.
type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) Ingest(_ context.Context, evt Event) error {
	s.Logger.Printf("scan audit: id=%s student=%s actor=%s outcome=%s record=%s at=%s",
		evt.ID, evt.StudentID, evt.ActorID, evt.Outcome, evt.RecordID, evt.ScannedAt.Format(time.RFC3339))
	return nil
}
