package web

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const visitorTTL = 3 * time.Minute

// RateLimiter keeps one token bucket per visitor key / Un seau à jetons par visiteur
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	cancel   context.CancelFunc
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter and its cleanup goroutine / Crée un limiteur et sa goroutine de nettoyage
func NewRateLimiter(ctx context.Context, rps float64, burst int) *RateLimiter {
	cleanupCtx, cancel := context.WithCancel(ctx)
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(rps),
		burst:    burst,
		cancel:   cancel,
	}
	go rl.cleanup(cleanupCtx, 5*time.Minute)
	return rl
}

// Stop ends the cleanup goroutine / Arrête la goroutine de nettoyage
func (rl *RateLimiter) Stop() {
	rl.cancel()
}

// Allow consumes one token for key / Consomme un jeton pour key
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()
	return v.limiter.Allow()
}

// Len returns the tracked visitors / Nombre de visiteurs suivis
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

func (rl *RateLimiter) cleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.evict(time.Now().Add(-visitorTTL))
		case <-ctx.Done():
			return
		}
	}
}

func (rl *RateLimiter) evict(before time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, v := range rl.visitors {
		if v.lastSeen.Before(before) {
			delete(rl.visitors, key)
		}
	}
}

// getIPWithTrustedProxies extracts the client IP / Extrait l'IP du client
// Forwarding headers are only read when RemoteAddr is a trusted proxy,
// given as a single IP or a CIDR range.
func getIPWithTrustedProxies(r *http.Request, trustedProxies []string) string {
	remoteIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remoteIP = r.RemoteAddr
	}
	if !isTrustedProxy(remoteIP, trustedProxies) {
		return remoteIP
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		clientIP := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if net.ParseIP(clientIP) != nil {
			return clientIP
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(realIP) != nil {
		return realIP
	}
	return remoteIP
}

func isTrustedProxy(remoteIP string, trusted []string) bool {
	ip := net.ParseIP(remoteIP)
	for _, entry := range trusted {
		if strings.Contains(entry, "/") {
			if _, network, err := net.ParseCIDR(entry); err == nil && ip != nil && network.Contains(ip) {
				return true
			}
			continue
		}
		if entry == remoteIP {
			return true
		}
	}
	return false
}

// hashIP avoids keeping raw addresses in memory / Évite de garder les adresses en clair
func hashIP(ip string) string {
	h := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(h[:])
}

func (m *Middleware) ipKey(r *http.Request) string {
	return hashIP(getIPWithTrustedProxies(r, m.conf.Security.TrustedProxies))
}

// limitWith builds a middleware around one limiter / Construit un middleware autour d'un limiteur
func (m *Middleware) limitWith(rl *RateLimiter, name, message string, retryAfter int, key func(*http.Request) (string, string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.conf.RateLimiter.Enabled || rl == nil {
				next.ServeHTTP(w, r)
				return
			}
			k, label := key(r)
			if label == "" {
				label = name
			}
			if !rl.Allow(k) {
				m.metrics.RecordRateLimitHit(label)
				sendRateLimitError(w, message, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) byIP(r *http.Request) (string, string) {
	return m.ipKey(r), ""
}

// RateLimit applies the global per-IP limit / Limite globale par IP
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return m.limitWith(m.globalLimiter, "global", "Too many requests. Please try again later.", 60, m.byIP)(next)
}

// RateLimitStrict protects authentication endpoints / Protège les routes d'authentification
func (m *Middleware) RateLimitStrict(next http.Handler) http.Handler {
	return m.limitWith(m.strictLimiter, "strict", "Too many requests. Please try again later.", 60, m.byIP)(next)
}

// RateLimitByUser limits authenticated callers by id / Limite les appelants authentifiés par id
func (m *Middleware) RateLimitByUser(next http.Handler) http.Handler {
	return m.limitWith(m.userLimiter, "user", "Too many requests. Please try again later.", 60, func(r *http.Request) (string, string) {
		if userID, ok := UserIDFrom(r.Context()); ok {
			return "user_" + strconv.FormatInt(userID, 10), "user_authenticated"
		}
		return m.ipKey(r), "user_ip"
	})(next)
}

// RateLimitResend throttles verification email requests / Limite les renvois d'email de vérification
func (m *Middleware) RateLimitResend(next http.Handler) http.Handler {
	return m.limitWith(m.resendLimiter, "resend", "You can only resend verification emails 3 times per 10 seconds. Please wait.", 10, m.byIP)(next)
}

// RateLimitContact throttles the public contact form / Limite le formulaire de contact
func (m *Middleware) RateLimitContact(next http.Handler) http.Handler {
	return m.limitWith(m.contactLimit, "contact", "Too many messages. Please try again later.", 3600, m.byIP)(next)
}

// RateLimitErrorResponse is the body of a 429 / Corps d'une réponse 429
type RateLimitErrorResponse struct {
	Error      string    `json:"error"`
	Message    string    `json:"message"`
	Code       int       `json:"code"`
	RetryAfter int       `json:"retry_after_seconds"`
	Timestamp  time.Time `json:"timestamp"`
}

func sendRateLimitError(w http.ResponseWriter, message string, retryAfter int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	writeJSON(w, http.StatusTooManyRequests, RateLimitErrorResponse{
		Error:      "rate_limit_exceeded",
		Message:    message,
		Code:       http.StatusTooManyRequests,
		RetryAfter: retryAfter,
		Timestamp:  time.Now().UTC(),
	})
}
