package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/unrolled/secure"

	"github.com/BakiChantier/chantier-direct-sub000/internal/config"
	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/metrics"
	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
	"github.com/BakiChantier/chantier-direct-sub000/internal/service/auth"
)

const (
	bearerPrefix    = "Bearer "
	RequestIDHeader = "X-Request-ID"
	CSRFHeader      = "X-CSRF-Token"
)

// RequestID generates unique request ID / Génère un ID unique pour la requête
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging logs HTTP requests and prevents token leaks / Enregistre les requêtes et prévient les fuites
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if strings.Contains(r.URL.RawQuery, "access_token=") ||
			strings.Contains(r.URL.RawQuery, "refresh_token=") {
			slog.Error("token in query string rejected", "path", r.URL.Path, "ip", r.RemoteAddr)
			ErrorResponse(w, "forbidden", http.StatusForbidden)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		level := slog.LevelInfo
		if rw.statusCode >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(r.Context(), level, "request",
			"request_id", GetRequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}

// MetricsMiddleware tracks HTTP request metrics / Suit les métriques des requêtes HTTP
// Routes are labelled by their mux pattern to keep ids out of the label set.
func (m *Middleware) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		m.metrics.IncrementActiveConnections()
		defer m.metrics.DecrementActiveConnections()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.metrics.RecordHTTPRequest(r.Method, route, rw.statusCode)
		m.metrics.RecordHTTPDuration(r.Method, route, time.Since(start))
	})
}

// Timeout bounds the request context / Borne le contexte de la requête
func Timeout(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, duration, `{"error":"request timeout"}`)
	}
}

// Middleware holds middleware configuration and dependencies / Contient la configuration middleware
type Middleware struct {
	conf          *config.Config
	globalLimiter *RateLimiter
	strictLimiter *RateLimiter
	userLimiter   *RateLimiter
	resendLimiter *RateLimiter
	contactLimit  *RateLimiter
	metrics       *metrics.Metrics
	userRepo      ports.UserRepository
	secure        *secure.Secure
}

// responseWriter wraps ResponseWriter to capture status / Encapsule ResponseWriter pour capturer le statut
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

// WriteHeader captures status code / Capture le code de statut
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the original writer
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// NewMiddleware creates middleware with rate limiters / Crée le middleware avec limiteurs
func NewMiddleware(conf *config.Config, metrics *metrics.Metrics, userRepo ports.UserRepository) *Middleware {
	mw := &Middleware{
		conf:     conf,
		metrics:  metrics,
		userRepo: userRepo,
		secure:   newSecureHeaders(conf),
	}

	if conf.RateLimiter.Enabled {
		ctx := context.Background()

		mw.globalLimiter = NewRateLimiter(ctx, conf.RateLimiter.RPS, conf.RateLimiter.Burst)

		strictRPS := conf.RateLimiter.RPS
		strictBurst := conf.RateLimiter.Burst
		if conf.IsProduction() {
			strictRPS = strictRPS / 2
			if strictBurst > 2 {
				strictBurst = strictBurst / 2
			}
		}
		mw.strictLimiter = NewRateLimiter(ctx, strictRPS, strictBurst)
		mw.userLimiter = NewRateLimiter(ctx, conf.RateLimiter.RPS*2, conf.RateLimiter.Burst*2)
		mw.resendLimiter = NewRateLimiter(ctx, 0.3, 3)
		// About 5 messages per hour and visitor / Environ 5 messages par heure et visiteur
		mw.contactLimit = NewRateLimiter(ctx, 5.0/3600, 5)
	}

	return mw
}

// Stop releases the rate limiter goroutines / Libère les goroutines des limiteurs
func (m *Middleware) Stop() {
	for _, rl := range []*RateLimiter{m.globalLimiter, m.strictLimiter, m.userLimiter, m.resendLimiter, m.contactLimit} {
		if rl != nil {
			rl.Stop()
		}
	}
}

// tokenFrom reads the access token from the cookie or the bearer header / Lit le token depuis le cookie ou l'en-tête
func tokenFrom(r *http.Request) (token string, viaCookie bool) {
	if authorization := r.Header.Get("Authorization"); strings.HasPrefix(authorization, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(authorization, bearerPrefix)), false
	}
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

// authenticate validates the token and stores the identity / Valide le token et stocke l'identité
func (m *Middleware) authenticate(r *http.Request) (*http.Request, error) {
	tokenStr, viaCookie := tokenFrom(r)
	if tokenStr == "" {
		return r, errors.New("missing access token")
	}

	claims, err := auth.ValidateJWT(tokenStr, m.conf.Auth.JWTSecret)
	if err != nil {
		m.metrics.RecordInvalidToken()
		return r, err
	}

	userID, err := claims.UserID()
	if err != nil {
		slog.Error("failed to parse user ID from token", "subject", claims.Subject, "err", err)
		return r, err
	}

	ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
	ctx = context.WithValue(ctx, userIDContextKey, userID)
	ctx = context.WithValue(ctx, cookieAuthContextKey, viaCookie)
	return r.WithContext(ctx), nil
}

// Auth validates JWT tokens / Valide les tokens JWT
func (m *Middleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, err := m.authenticate(r)
		if err != nil {
			ErrorResponse(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OptionalAuth identifies the caller when a valid token is sent / Identifie l'appelant si un token valide est envoyé
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authed, err := m.authenticate(r); err == nil {
			r = authed
		}
		next.ServeHTTP(w, r)
	})
}

// Cors handles CORS headers / Gère les en-têtes CORS
func (m *Middleware) Cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		for _, allowed := range m.conf.Cors.AllowedOrigins {
			if origin != "" && (allowed == "*" || allowed == origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				break
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+CSRFHeader)
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CSRF protects cookie sessions with a double submit token / Protège les sessions cookie par double soumission
// Bearer clients are not exposed to CSRF and skip the check.
func (m *Middleware) CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authenticatedByCookie(r.Context()) || r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie("csrf_token")
		if err != nil || cookie.Value == "" {
			m.metrics.RecordCSRFFailure()
			ErrorResponse(w, "Forbidden", http.StatusForbidden)
			return
		}

		headerToken := r.Header.Get(CSRFHeader)
		if headerToken == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(headerToken)) != 1 {
			m.metrics.RecordCSRFFailure()
			slog.Warn("CSRF token mismatch", "path", r.URL.Path, "header_len", len(headerToken))
			ErrorResponse(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequirePermission checks user permission / Vérifie la permission de l'utilisateur
func (m *Middleware) RequirePermission(permission domain.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFrom(r.Context())
			if !ok {
				slog.Error("RequirePermission used without Auth", "path", r.URL.Path)
				ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			hasPermission, err := m.userRepo.UserHasPermission(r.Context(), userID, permission)
			if err != nil {
				slog.Error("failed to check user permission", "user_id", userID, "permission", permission, "err", err)
				ErrorResponse(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			if !hasPermission {
				m.metrics.RecordPermissionDenial(permission.String())
				slog.Warn("permission denied",
					"user_id", userID,
					"permission", permission,
					"path", r.URL.Path,
					"method", r.Method,
				)
				ErrorResponse(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
