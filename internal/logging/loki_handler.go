// Package logging configures slog for the marketplace: a console handler
// (text or JSON) and an optional Loki push handler fed through a fan-out.
package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const flushInterval = 5 * time.Second

// LokiHandler pushes JSON log lines to Loki in batches / Envoie les logs à Loki par lots
type LokiHandler struct {
	sink   *lokiSink
	attrs  []slog.Attr
	groups []string
	level  slog.Level
}

// lokiSink is shared by every handler derived with WithAttrs / Partagé par les handlers dérivés
type lokiSink struct {
	url       string
	labels    map[string]string
	client    *http.Client
	errOut    io.Writer
	batchSize int
	enabled   bool

	mu    sync.Mutex
	batch [][]string // [unix nanos, line]
	timer *time.Timer
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

// NewLokiHandler creates a handler for the Loki base url / Crée un handler pour l'URL Loki
// A zero batchSize pushes every record immediately.
func NewLokiHandler(url string, labels map[string]string, batchSize int, enabled bool, level slog.Level) *LokiHandler {
	if labels == nil {
		labels = map[string]string{}
	}
	sink := &lokiSink{
		url:       url + "/loki/api/v1/push",
		labels:    labels,
		client:    &http.Client{Timeout: 5 * time.Second},
		errOut:    os.Stderr,
		batchSize: batchSize,
		enabled:   enabled,
	}
	if enabled && batchSize > 0 {
		sink.timer = time.AfterFunc(flushInterval, sink.tick)
	}
	return &LokiHandler{sink: sink, level: level}
}

// Enabled reports whether level is pushed / Indique si le niveau est envoyé
func (h *LokiHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.sink.enabled && level >= h.level
}

// Handle encodes the record as one JSON line / Encode l'enregistrement en une ligne JSON
func (h *LokiHandler) Handle(_ context.Context, r slog.Record) error {
	if !h.sink.enabled {
		return nil
	}

	line := map[string]any{
		"time":  r.Time.Format(time.RFC3339Nano),
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, a := range h.attrs {
		put(line, "", a)
	}
	prefix := h.prefix()
	r.Attrs(func(a slog.Attr) bool {
		put(line, prefix, a)
		return true
	})

	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("failed to marshal log to JSON: %w", err)
	}
	return h.sink.add(r.Time, string(data))
}

// prefix joins the open groups / Concatène les groupes ouverts
func (h *LokiHandler) prefix() string {
	var b strings.Builder
	for _, g := range h.groups {
		b.WriteString(g)
		b.WriteByte('.')
	}
	return b.String()
}

// put stores a under prefix, flattening groups / Ajoute a sous prefix en aplatissant les groupes
func put(line map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner += a.Key + "."
		}
		for _, ga := range v.Group() {
			put(line, inner, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	if err, ok := v.Any().(error); ok {
		line[prefix+a.Key] = err.Error()
		return
	}
	line[prefix+a.Key] = v.Any()
}

// WithAttrs returns a handler carrying attrs / Retourne un handler avec attrs
func (h *LokiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	// Keys are qualified now so later groups do not apply to them
	// Les clés sont qualifiées ici, les groupes suivants ne s'y appliquent pas
	prefix := h.prefix()
	clone := *h
	clone.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		switch {
		case a.Value.Kind() == slog.KindGroup && a.Key == "":
			// An inline group lands directly under the open groups
			a.Key = strings.TrimSuffix(prefix, ".")
		case a.Key == "":
			continue
		default:
			a.Key = prefix + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

// WithGroup returns a handler nesting keys under name / Retourne un handler groupé
func (h *LokiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

// Close flushes pending lines and stops the timer / Vide le lot et arrête le minuteur
func (h *LokiHandler) Close() error {
	if h.sink.timer != nil {
		h.sink.timer.Stop()
	}
	return h.sink.flush()
}

func (s *lokiSink) add(at time.Time, line string) error {
	s.mu.Lock()
	s.batch = append(s.batch, []string{strconv.FormatInt(at.UnixNano(), 10), line})
	full := s.batchSize == 0 || len(s.batch) >= s.batchSize
	s.mu.Unlock()

	if full {
		return s.flush()
	}
	return nil
}

func (s *lokiSink) tick() {
	_ = s.flush()
	s.timer.Reset(flushInterval)
}

func (s *lokiSink) flush() error {
	s.mu.Lock()
	if len(s.batch) == 0 {
		s.mu.Unlock()
		return nil
	}
	values := s.batch
	s.batch = nil
	s.mu.Unlock()

	body, err := json.Marshal(map[string][]lokiStream{
		"streams": {{Stream: s.labels, Values: values}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create loki request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Loki being down must not break the application / Loki indisponible ne bloque pas l'application
	resp, err := s.client.Do(req)
	if err != nil {
		fmt.Fprintf(s.errOut, "loki push failed: %v\n", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		fmt.Fprintf(s.errOut, "loki returned %d: %s\n", resp.StatusCode, msg)
	}
	return nil
}
