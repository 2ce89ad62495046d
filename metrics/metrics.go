package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "login_broker"

// Verification results.
const (
	VerifyValid     = "valid"
	VerifyRefreshed = "refreshed"
	VerifyMissing   = "missing_credentials"
	VerifyNotFound  = "not_found"
	VerifyMismatch  = "token_mismatch"
	VerifyExpired   = "expired"
	VerifyError     = "error"
)

// Metrics counts login flow events. A nil *Metrics records nothing.
type Metrics struct {
	initiations   *prometheus.CounterVec
	callbacks     *prometheus.CounterVec
	verifications *prometheus.CounterVec
	logouts       prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		initiations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_initiations_total",
			Help:      "Login initiation requests by result.",
		}, []string{"result"}),
		callbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_callbacks_total",
			Help:      "Provider callbacks by final stage and error code.",
		}, []string{"stage", "code"}),
		verifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_verifications_total",
			Help:      "Session verifications by result.",
		}, []string{"result"}),
		logouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Logout requests.",
		}),
	}
}

func (m *Metrics) LoginInitiated(accepted bool) {
	if m == nil {
		return
	}
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.initiations.WithLabelValues(result).Inc()
}

// CallbackCompleted records where a callback ended. code is empty on success.
func (m *Metrics) CallbackCompleted(stage, code string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(stage, code).Inc()
}

func (m *Metrics) Verified(result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) LoggedOut() {
	if m == nil {
		return
	}
	m.logouts.Inc()
}

// Handler exposes the gathered metrics in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
