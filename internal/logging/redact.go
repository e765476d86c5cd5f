package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redaction lists attribute keys whose values are never logged and the
// placeholder written instead.
type Redaction struct {
	Keys        []string
	Replacement string
}

// DefaultRedaction covers credentials that pass through request logging.
func DefaultRedaction() Redaction {
	return Redaction{
		Keys:        []string{"authorization", "cookie", "set-cookie", "x-api-key", "token", "api_token", "password", "secret"},
		Replacement: "***REDACTED***",
	}
}

var bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._~+/=-]+`)

// RedactingHandler replaces sensitive attribute values before they reach the
// wrapped handler.
type RedactingHandler struct {
	next        slog.Handler
	keys        map[string]struct{}
	replacement string
}

func NewRedactingHandler(next slog.Handler, r Redaction) *RedactingHandler {
	return &RedactingHandler{next: next, keys: toLowerSet(r.Keys), replacement: r.Replacement}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, h.redactString(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	red := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		red[i] = h.redactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(red), keys: h.keys, replacement: h.replacement}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), keys: h.keys, replacement: h.replacement}
}

func (h *RedactingHandler) redactAttr(a slog.Attr) slog.Attr {
	if _, ok := h.keys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, h.replacement)
	}
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redactString(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		red := make([]slog.Attr, len(group))
		for i, g := range group {
			red[i] = h.redactAttr(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(red...)}
	}
	return a
}

func (h *RedactingHandler) redactString(s string) string {
	return bearerPattern.ReplaceAllString(s, "Bearer "+h.replacement)
}

func toLowerSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, v := range items {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}
