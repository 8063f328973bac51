// Package status carries user-facing feedback messages.
package status

import (
	"sync"

	"go.uber.org/zap"
)

// Severity classifies a status message
type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Error   Severity = "error"
)

// Reporter accepts user-visible feedback. Messages are not persisted.
type Reporter interface {
	Report(message string, severity Severity)
}

// Message is one reported status line
type Message struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
}

// LogReporter writes status messages to a zap logger
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter creates a reporter that logs each message
func NewLogReporter(logger *zap.Logger) *LogReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(message string, severity Severity) {
	field := zap.String("severity", string(severity))
	switch severity {
	case Error:
		r.logger.Warn(message, field)
	default:
		r.logger.Info(message, field)
	}
}

// Recorder keeps reported messages in memory
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Report(message string, severity Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Text: message, Severity: severity})
}

// Messages returns a copy of everything reported so far
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the most recent message
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}

// Multi fans a message out to several reporters
type Multi []Reporter

func (m Multi) Report(message string, severity Severity) {
	for _, r := range m {
		if r != nil {
			r.Report(message, severity)
		}
	}
}

// Discard drops every message
var Discard Reporter = discard{}

type discard struct{}

func (discard) Report(string, Severity) {}
