package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/afero"
)

// HealthResponse represents the response structure for health check endpoints.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
}

var startTime = time.Now()

// Version is overridden at build time with -ldflags.
var Version = "dev"

// HealthCheck handles /health. It never checks dependencies, use /readiness for that.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   Version,
		Uptime:    formatUptime(time.Since(startTime)),
	})
}

// ReadinessCheck handles /readiness: 200 when the database and the file store answer, 503 otherwise.
func (h *Handler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{
		"database": h.checkDatabase(ctx),
		"storage":  h.checkStorage(),
	}

	status, code := "ok", http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status, code = "error", http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

func (h *Handler) checkDatabase(ctx context.Context) string {
	var one int
	if err := h.container.DB.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return "error"
	}
	return "ok"
}

// checkStorage writes then removes a probe file / Écrit puis supprime un fichier sonde
func (h *Handler) checkStorage() string {
	const probe = ".readiness"
	fs := h.container.Storage.Fs()
	if err := afero.WriteFile(fs, probe, []byte("ok"), 0o600); err != nil {
		return "error"
	}
	_ = fs.Remove(probe)
	return "ok"
}

// formatUptime renders durations like "1d 5h 23m", "2h 15m 30s" or "45s".
func formatUptime(d time.Duration) string {
	total := int(d.Seconds())
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
