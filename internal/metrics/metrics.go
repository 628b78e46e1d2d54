// Package metrics exposes the Prometheus collectors of the marketplace.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chantier"

// Metrics holds all Prometheus metric collectors / Contient tous les collecteurs de métriques Prometheus
type Metrics struct {
	// Authentication
	LoginAttempts      *prometheus.CounterVec
	RegistrationTotal  *prometheus.CounterVec // by role
	EmailVerifications *prometheus.CounterVec
	TokenRefreshes     *prometheus.CounterVec
	AccountLockouts    prometheus.Counter
	SessionsOpened     *prometheus.CounterVec // by role

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ActiveConnections   prometheus.Gauge

	// Security
	RateLimitHits     *prometheus.CounterVec
	CSRFFailures      prometheus.Counter
	InvalidTokens     prometheus.Counter
	TokenBindingFails prometheus.Counter
	PermissionDenials *prometheus.CounterVec

	// Marketplace / Place de marché
	ProjectsCreated   prometheus.Counter
	Moderations       *prometheus.CounterVec // decision: VALIDATED, REJECTED
	ProjectStatus     *prometheus.CounterVec // status reached: ATTRIBUE, TERMINE, ANNULE
	OffersSubmitted   prometheus.Counter
	OfferDecisions    *prometheus.CounterVec // status: ACCEPTEE, REFUSEE, RETIREE
	DocumentsUploaded *prometheus.CounterVec // document type
	DocumentReviews   *prometheus.CounterVec // status: VALIDATED, REJECTED, EXPIRED
	MessagesSent      prometheus.Counter
	ContactRequests   prometheus.Counter

	// Delivery / Envois
	EmailsSent      *prometheus.CounterVec // template, status
	EventsPublished *prometheus.CounterVec // subject, status

	// System
	DatabaseConnections prometheus.Gauge
	BackgroundTasks     *prometheus.GaugeVec
	JobRuns             *prometheus.CounterVec // job, status
}

// NewMetrics initializes Metrics instance / Initialise une instance Metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	counter := func(subsystem, name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help})
	}
	counterVec := func(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
	}
	gauge := func(subsystem, name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help})
	}

	return &Metrics{
		LoginAttempts:      counterVec("auth", "login_attempts_total", "Login attempts by status (success, failure, locked, unverified)", "status"),
		RegistrationTotal:  counterVec("auth", "registrations_total", "Registrations by role", "role"),
		EmailVerifications: counterVec("auth", "email_verifications_total", "Email verification attempts by status", "status"),
		TokenRefreshes:     counterVec("auth", "token_refreshes_total", "Token refresh operations by status", "status"),
		AccountLockouts:    counter("auth", "account_lockouts_total", "Account lockouts after failed logins"),
		SessionsOpened:     counterVec("auth", "sessions_opened_total", "Successful logins by role", "role"),

		HTTPRequestsTotal: counterVec("http", "requests_total", "HTTP requests by method, route and status code", "method", "path", "status_code"),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),
		ActiveConnections: gauge("http", "active_connections", "Requests currently in flight"),

		RateLimitHits:     counterVec("security", "rate_limit_hits_total", "Rate limit violations by endpoint", "endpoint"),
		CSRFFailures:      counter("security", "csrf_failures_total", "CSRF validation failures"),
		InvalidTokens:     counter("security", "invalid_tokens_total", "Invalid or expired access tokens"),
		TokenBindingFails: counter("security", "token_binding_failures_total", "Refresh token IP/UA binding mismatches"),
		PermissionDenials: counterVec("security", "permission_denials_total", "Permission check failures by permission", "permission"),

		ProjectsCreated:   counter("projects", "created_total", "Projects submitted for moderation"),
		Moderations:       counterVec("projects", "moderations_total", "Moderation decisions", "decision"),
		ProjectStatus:     counterVec("projects", "status_changes_total", "Business status changes by target status", "status"),
		OffersSubmitted:   counter("offers", "submitted_total", "Offers submitted"),
		OfferDecisions:    counterVec("offers", "decisions_total", "Offer status changes by target status", "status"),
		DocumentsUploaded: counterVec("documents", "uploaded_total", "Compliance documents uploaded by type", "type"),
		DocumentReviews:   counterVec("documents", "reviews_total", "Document status changes by review outcome", "status"),
		MessagesSent:      counter("messages", "sent_total", "Private messages sent"),
		ContactRequests:   counter("contact", "requests_total", "Contact form submissions"),

		EmailsSent:      counterVec("email", "sent_total", "Outgoing emails by template and status", "template", "status"),
		EventsPublished: counterVec("events", "published_total", "Domain events by subject and status", "subject", "status"),

		DatabaseConnections: gauge("db", "connections_open", "Open database connections"),
		BackgroundTasks: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "task_running",
			Help:      "Background task status (1=scheduled, 0=stopped)",
		}, []string{"task_name"}),
		JobRuns: counterVec("scheduler", "job_runs_total", "Scheduled job executions by job and status", "job", "status"),
	}
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordLoginAttempt records a login attempt: success, failure, locked or unverified
func (m *Metrics) RecordLoginAttempt(status string) {
	m.LoginAttempts.WithLabelValues(status).Inc()
}

// RecordRegistration counts a new account of role / Compte une inscription
func (m *Metrics) RecordRegistration(role string) {
	m.RegistrationTotal.WithLabelValues(role).Inc()
}

func (m *Metrics) RecordEmailVerification(status string) {
	m.EmailVerifications.WithLabelValues(status).Inc()
}

// RecordTokenRefresh records success, invalid, expired or binding_failure
func (m *Metrics) RecordTokenRefresh(status string) {
	m.TokenRefreshes.WithLabelValues(status).Inc()
}

// RecordSession counts a login by role / Compte une connexion par rôle
func (m *Metrics) RecordSession(role string) {
	m.SessionsOpened.WithLabelValues(role).Inc()
}

func (m *Metrics) RecordAccountLockout() {
	m.AccountLockouts.Inc()
}

// RecordHTTPRequest records an HTTP request with method, route pattern and status code.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCodeToString(statusCode)).Inc()
}

func (m *Metrics) RecordHTTPDuration(method, path string, duration time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) IncrementActiveConnections() { m.ActiveConnections.Inc() }
func (m *Metrics) DecrementActiveConnections() { m.ActiveConnections.Dec() }

func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) RecordCSRFFailure()         { m.CSRFFailures.Inc() }
func (m *Metrics) RecordInvalidToken()        { m.InvalidTokens.Inc() }
func (m *Metrics) RecordTokenBindingFailure() { m.TokenBindingFails.Inc() }

// RecordPermissionDenial increments permission denial counter / Incrémente le compteur de refus de permission
func (m *Metrics) RecordPermissionDenial(permission string) {
	m.PermissionDenials.WithLabelValues(permission).Inc()
}

func (m *Metrics) RecordProjectCreated() { m.ProjectsCreated.Inc() }

// RecordModeration counts a moderation decision / Compte une décision de modération
func (m *Metrics) RecordModeration(decision string) {
	m.Moderations.WithLabelValues(decision).Inc()
}

func (m *Metrics) RecordProjectStatus(status string) {
	m.ProjectStatus.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordOfferSubmitted() { m.OffersSubmitted.Inc() }

// RecordOfferDecision counts offers reaching status, n at once / Compte n offres passées au statut
func (m *Metrics) RecordOfferDecision(status string, n int) {
	m.OfferDecisions.WithLabelValues(status).Add(float64(n))
}

func (m *Metrics) RecordDocumentUploaded(docType string) {
	m.DocumentsUploaded.WithLabelValues(docType).Inc()
}

func (m *Metrics) RecordDocumentReview(status string, n int) {
	m.DocumentReviews.WithLabelValues(status).Add(float64(n))
}

func (m *Metrics) RecordMessageSent()    { m.MessagesSent.Inc() }
func (m *Metrics) RecordContactRequest() { m.ContactRequests.Inc() }

// RecordEmail counts an email delivery attempt / Compte une tentative d'envoi d'email
func (m *Metrics) RecordEmail(template string, ok bool) {
	m.EmailsSent.WithLabelValues(template, outcome(ok)).Inc()
}

func (m *Metrics) RecordEvent(subject string, ok bool) {
	m.EventsPublished.WithLabelValues(subject, outcome(ok)).Inc()
}

// RecordJobRun counts a scheduled job execution / Compte une exécution de tâche planifiée
func (m *Metrics) RecordJobRun(job string, ok bool) {
	m.JobRuns.WithLabelValues(job, outcome(ok)).Inc()
}

// UpdateDatabaseConnections updates the database connections gauge.
func (m *Metrics) UpdateDatabaseConnections(count int) {
	m.DatabaseConnections.Set(float64(count))
}

// SetBackgroundTaskStatus sets 1 for a scheduled task and 0 once stopped.
func (m *Metrics) SetBackgroundTaskStatus(taskName string, running bool) {
	status := 0.0
	if running {
		status = 1.0
	}
	m.BackgroundTasks.WithLabelValues(taskName).Set(status)
}

// statusCodeToString keeps cardinality low / Limite la cardinalité des codes HTTP
func statusCodeToString(code int) string {
	switch code {
	case 200, 201, 204, 400, 401, 403, 404, 409, 413, 415, 422, 429, 500, 503:
		return strconv.Itoa(code)
	}
	if code >= 100 && code < 600 {
		return strconv.Itoa(code/100) + "xx"
	}
	return "unknown"
}
