package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/BakiChantier/chantier-direct-sub000/internal/config"
)

// ParseLevel maps a configured level, defaulting to info / Convertit le niveau configuré
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// New builds the application logger writing to out / Construit le logger de l'application
// The returned close function flushes Loki and is never nil.
func New(conf config.LoggingConfig, out io.Writer, addSource bool) (*slog.Logger, func() error) {
	level := ParseLevel(conf.Level)

	opts := &slog.HandlerOptions{Level: level, AddSource: addSource}
	var console slog.Handler
	if strings.EqualFold(conf.Format, "json") {
		console = slog.NewJSONHandler(out, opts)
	} else {
		console = slog.NewTextHandler(out, opts)
	}

	if !conf.LokiEnabled {
		return slog.New(console), func() error { return nil }
	}

	loki := NewLokiHandler(conf.LokiURL, conf.LokiLabels, conf.LokiBatchSize, true, level)
	return slog.New(Fanout(console, loki)), loki.Close
}

// Fanout sends every record to all handlers / Envoie chaque enregistrement à tous les handlers
func Fanout(handlers ...slog.Handler) slog.Handler {
	return fanout(handlers)
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
