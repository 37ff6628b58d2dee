package logging

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

const Filtered = "[FILTERED]"

// DefaultFilters are matched case-insensitively against attribute keys; a key
// containing any of them is filtered, so "passw" covers "password".
var DefaultFilters = []string{
	"email", "first_name", "last_name", "birth_date", "nationality", "university",
	"interest", "comments", "arrival_date", "departure_date", "room_type",
	"passw", "secret", "token", "_key", "crypt", "salt", "certificate", "otp", "ssn",
	"credit_card", "card_number", "cvv", "cvc", "ccv",
}

var (
	emailPattern     = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(\.[A-Za-z0-9\-]+)+`)
	secretAssignment = regexp.MustCompile(`(?i)\b(api[_-]?key|auth[_-]?token|access[_-]?token)(["']?\s*[:=]\s*["']?)[^\s&"',;]+`)
)

// ScrubString masks e-mail addresses and credential assignments in free text.
func ScrubString(s string) string {
	s = emailPattern.ReplaceAllString(s, Filtered)
	return secretAssignment.ReplaceAllString(s, "${1}${2}"+Filtered)
}

// RedactingHandler filters sensitive attributes before passing records on.
type RedactingHandler struct {
	next    slog.Handler
	filters []string
}

func NewRedactingHandler(next slog.Handler, filters ...string) *RedactingHandler {
	if len(filters) == 0 {
		filters = DefaultFilters
	}
	lowered := make([]string, len(filters))
	for i, f := range filters {
		lowered[i] = strings.ToLower(f)
	}
	return &RedactingHandler{next: next, filters: lowered}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, ScrubString(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redact(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(redacted), filters: h.filters}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), filters: h.filters}
}

func (h *RedactingHandler) redact(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	if h.sensitive(a.Key) {
		return slog.String(a.Key, Filtered)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, ScrubString(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		attrs := make([]any, len(group))
		for i, ga := range group {
			attrs[i] = h.redact(ga)
		}
		return slog.Group(a.Key, attrs...)
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, ScrubString(err.Error()))
		}
	}
	return a
}

func (h *RedactingHandler) sensitive(key string) bool {
	key = strings.ToLower(key)
	for _, f := range h.filters {
		if strings.Contains(key, f) {
			return true
		}
	}
	return false
}

// New builds a JSON logger writing to w with redaction applied.
func New(w io.Writer, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(NewRedactingHandler(handler))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
