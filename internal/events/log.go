package events

import (
	"github.com/charmbracelet/log"
)

// LogSink writes events to a charmbracelet logger. Fragments are logged at
// debug level since a single reply produces many.
type LogSink struct {
	Logger *log.Logger
}

// NewLogSink logs to l, or to the default logger when l is nil.
func NewLogSink(l *log.Logger) *LogSink {
	if l == nil {
		l = log.Default()
	}
	return &LogSink{Logger: l}
}

func (s *LogSink) Emit(e Event) {
	kv := []any{"kind", e.Kind}
	if e.Author != "" {
		kv = append(kv, "author", e.Author)
	}

	switch e.Kind {
	case KindFragment:
		s.Logger.Debug(e.Text, kv...)
	case KindWarn:
		s.Logger.Warn(e.Text, kv...)
	case KindError:
		s.Logger.Error(e.Text, kv...)
	default:
		s.Logger.Info(e.Text, kv...)
	}
}
