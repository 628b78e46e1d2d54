package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestJoin(t *testing.T) {
	tests := []struct {
		prefix, subject, want string
	}{
		{"chantier", OfferSubmitted, "chantier.offer.submitted"},
		{"", ProjectSubmitted, "project.submitted"},
	}
	for _, tt := range tests {
		if got := join(tt.prefix, tt.subject); got != tt.want {
			t.Errorf("join(%q, %q) = %q, want %q", tt.prefix, tt.subject, got, tt.want)
		}
	}
}

func TestEncode(t *testing.T) {
	data, err := encode(ProjectModerated, map[string]any{"projet_id": 3, "status": "VALIDATED"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var env struct {
		Subject string         `json:"subject"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if env.Subject != ProjectModerated || env.Data["status"] != "VALIDATED" {
		t.Errorf("Unexpected envelope: %+v", env)
	}
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p := NewLogPublisher("chantier", logger)

	if err := p.Publish(context.Background(), MessageSent, map[string]int64{"message_id": 9}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !strings.Contains(buf.String(), "chantier.message.sent") {
		t.Errorf("Expected subject in log output, got %q", buf.String())
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

type countingMetrics struct {
	ok, failed map[string]int
}

func (c *countingMetrics) RecordEvent(subject string, ok bool) {
	if ok {
		c.ok[subject]++
		return
	}
	c.failed[subject]++
}

func TestWithMetrics(t *testing.T) {
	m := &countingMetrics{ok: map[string]int{}, failed: map[string]int{}}
	p := WithMetrics(NewLogPublisher("", nil), m)

	if err := p.Publish(context.Background(), OfferSubmitted, map[string]int64{"offre_id": 1}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	// Channels cannot be JSON encoded / Les canaux ne sont pas sérialisables
	if err := p.Publish(context.Background(), OfferSubmitted, make(chan int)); err == nil {
		t.Error("Expected encode error")
	}

	if m.ok[OfferSubmitted] != 1 || m.failed[OfferSubmitted] != 1 {
		t.Errorf("Unexpected counts ok=%v failed=%v", m.ok, m.failed)
	}
	if WithMetrics(p, nil) != p {
		t.Error("WithMetrics(nil) should return the publisher unchanged")
	}
}
