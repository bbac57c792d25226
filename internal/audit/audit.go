package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is one audit record.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Subject   string            `json:"subject,omitempty"`
	Role      string            `json:"role,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives dispatched events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(append(data, '\n'))
}

// LogrusSink writes each event as a structured log entry at Info level.
type LogrusSink struct {
	logger logrus.FieldLogger
}

func NewLogrusSink(logger logrus.FieldLogger) *LogrusSink {
	return &LogrusSink{logger: logger}
}

func (s *LogrusSink) Emit(_ context.Context, event Event) {
	if s == nil || s.logger == nil {
		return
	}
	fields := logrus.Fields{
		"component":  "audit",
		"event_type": event.EventType,
		"success":    event.Success,
	}
	if event.Subject != "" {
		fields["subject"] = event.Subject
	}
	if event.Role != "" {
		fields["role"] = event.Role
	}
	if event.SessionID != "" {
		fields["session_id"] = event.SessionID
	}
	if event.IP != "" {
		fields["ip"] = event.IP
	}
	if event.Error != "" {
		fields["error_code"] = event.Error
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}
	s.logger.WithFields(fields).Info("audit")
}
