// Package metrics exposes Prometheus counters for the authentication flows.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/tasktracker/internal/auth"
)

// Recorder is what the services report to. Collector implements it; Nop
// is for tests and tools that do not scrape.
type Recorder interface {
	LoginAttempt(result string)
	ExternalLogin(result string)
	Registration(result string)
	TokenValidated(err error)
}

// Result labels shared by the login counters.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultLocked   = "locked"
	ResultCreated  = "created"
	ResultError    = "error"
	ResultConflict = "conflict"
)

// Collector holds the registered counters.
type Collector struct {
	logins        *prometheus.CounterVec
	externalLogin *prometheus.CounterVec
	registrations *prometheus.CounterVec
	tokenChecks   *prometheus.CounterVec
}

// NewCollector creates the counters and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasktracker_login_attempts_total",
			Help: "Password login attempts by result.",
		}, []string{"result"}),
		externalLogin: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasktracker_external_logins_total",
			Help: "Google sign-in callbacks by result.",
		}, []string{"result"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasktracker_registrations_total",
			Help: "Account registrations by result.",
		}, []string{"result"}),
		tokenChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasktracker_token_validations_total",
			Help: "Session token validations by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.logins,
		c.externalLogin,
		c.registrations,
		c.tokenChecks,
	)

	return c
}

func (c *Collector) LoginAttempt(result string) {
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) ExternalLogin(result string) {
	c.externalLogin.WithLabelValues(result).Inc()
}

func (c *Collector) Registration(result string) {
	c.registrations.WithLabelValues(result).Inc()
}

// TokenValidated labels failures by kind: expired, signature or malformed.
func (c *Collector) TokenValidated(err error) {
	c.tokenChecks.WithLabelValues(tokenResult(err)).Inc()
}

func tokenResult(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, auth.ErrExpired):
		return "expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "signature"
	default:
		return "malformed"
	}
}

// Handler returns the HTTP handler Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) LoginAttempt(string)  {}
func (Nop) ExternalLogin(string) {}
func (Nop) Registration(string)  {}
func (Nop) TokenValidated(error) {}
