// Package notify provides portal.Notifier implementations for front ends
// that render toasts elsewhere, or not at all.
package notify

import (
	"context"
	"log/slog"
	"sync"

	portal "github.com/chimerakang/portal-go"
)

// Log writes notifications to a structured logger.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a Notifier logging to l, or to slog.Default when l is nil.
func NewLog(l *slog.Logger) *Log {
	if l == nil {
		l = slog.Default()
	}
	return &Log{logger: l}
}

// Notify logs message at a level matching severity.
func (n *Log) Notify(ctx context.Context, severity portal.Severity, message string) {
	level := slog.LevelInfo
	switch severity {
	case portal.SeverityError:
		level = slog.LevelError
	case portal.SeverityWarning:
		level = slog.LevelWarn
	}
	n.logger.Log(ctx, level, message, "severity", string(severity))
}

// Entry is one recorded notification.
type Entry struct {
	Severity portal.Severity
	Message  string
}

// Recorder keeps notifications in memory, in order.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// Notify records the notification.
func (r *Recorder) Notify(_ context.Context, severity portal.Severity, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Severity: severity, Message: message})
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Reset drops all recorded entries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

// Multi returns a Notifier that forwards to every non-nil n in order.
func Multi(ns ...portal.Notifier) portal.Notifier {
	var out multi
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

type multi []portal.Notifier

func (m multi) Notify(ctx context.Context, severity portal.Severity, message string) {
	for _, n := range m {
		n.Notify(ctx, severity, message)
	}
}
