// Package audit records session lifecycle events.
package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// Session actions.
const (
	ActionLogin          = "login"
	ActionRegister       = "register"
	ActionLogout         = "logout"
	ActionExpired        = "expired"
	ActionDecodeFailed   = "decode_failed"
	ActionAccountDeleted = "account_deleted"
	ActionRevoked        = "revoked"
)

// Results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Event is one audited session transition.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Action    string    `json:"action"`
	Result    string    `json:"result"`
	Status    int       `json:"status,omitempty"`
	Details   string    `json:"details,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Handler processes audit events. Implementations should not block.
type Handler func(event Event)

// Logger delivers events to handlers on a background goroutine.
// A nil *Logger discards events.
type Logger struct {
	handlers []Handler
	queue    chan Event
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// Option configures Logger behavior.
type Option func(*Logger)

// WithHandler adds a custom event handler.
func WithHandler(h Handler) Option {
	return func(l *Logger) { l.handlers = append(l.handlers, h) }
}

// WithWriter adds a handler that writes one JSON object per line to w.
func WithWriter(w io.Writer) Option {
	var mu sync.Mutex
	return WithHandler(func(e Event) {
		data, err := json.Marshal(e)
		if err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		_, _ = fmt.Fprintf(w, "%s\n", data)
	})
}

// WithSlog adds a handler that logs events at info level, failures at warn.
func WithSlog(logger *slog.Logger) Option {
	return WithHandler(func(e Event) {
		level := slog.LevelInfo
		if e.Result == ResultFailure {
			level = slog.LevelWarn
		}
		attrs := []slog.Attr{
			slog.String("action", e.Action),
			slog.String("result", e.Result),
		}
		if e.UserID != "" {
			attrs = append(attrs, slog.String("user_id", e.UserID))
		}
		if e.RequestID != "" {
			attrs = append(attrs, slog.String("request_id", e.RequestID))
		}
		if e.Status != 0 {
			attrs = append(attrs, slog.Int("status", e.Status))
		}
		if e.Error != "" {
			attrs = append(attrs, slog.String("error", e.Error))
		}
		logger.LogAttrs(context.Background(), level, "portal/audit: "+e.Action, attrs...)
	})
}

// New creates an audit logger whose queue holds bufferSize events (default 1000).
func New(bufferSize int, opts ...Option) *Logger {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	l := &Logger{
		queue: make(chan Event, bufferSize),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.wg.Add(1)
	go l.process()
	return l
}

// Log queues an event. The request id is taken from ctx when the event has none.
func (l *Logger) Log(ctx context.Context, event Event) {
	if l == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = RequestID(ctx)
	}

	select {
	case <-l.done:
		return
	default:
	}
	select {
	case l.queue <- event:
	case <-l.done:
	}
}

func (l *Logger) process() {
	defer l.wg.Done()

	for {
		select {
		case event := <-l.queue:
			l.emit(event)
		case <-l.done:
			for {
				select {
				case event := <-l.queue:
					l.emit(event)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) emit(event Event) {
	for _, h := range l.handlers {
		h(event)
	}
}

// Done is closed once Close has been called.
func (l *Logger) Done() <-chan struct{} { return l.done }

// Close flushes queued events and stops the logger. It is safe to call twice.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		close(l.done)
		l.wg.Wait()
	})
	return nil
}

type contextKey string

const contextKeyRequestID contextKey = "audit.request_id"

// RequestID retrieves the request ID from context.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

// WithRequestID stores the request ID in context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}
