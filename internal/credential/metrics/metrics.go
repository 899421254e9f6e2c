package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for credential issuance and verification.
// All methods are safe on a nil receiver.
type Metrics struct {
	CredentialsIssued  prometheus.Counter
	CredentialsRevoked prometheus.Counter
	Disclosures        prometheus.Counter

	// Verification outcomes by error code ("ok" on success)
	Verifications *prometheus.CounterVec

	// Issuance latency including ledger submission and finalization
	IssueLatency prometheus.Histogram

	// Finalize attempts per issuance
	FinalizeAttempts prometheus.Histogram

	VerifyLatency prometheus.Histogram
}

// New creates and registers the credential metrics.
func New() *Metrics {
	return &Metrics{
		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "anchorcred_credentials_issued_total",
			Help: "Credentials issued and anchored on the ledger",
		}),
		CredentialsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "anchorcred_credentials_revoked_total",
			Help: "Credentials revoked by their issuer",
		}),
		Disclosures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "anchorcred_disclosures_total",
			Help: "Selective disclosures produced",
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "anchorcred_verifications_total",
			Help: "Credential verifications by outcome",
		}, []string{"outcome"}),
		IssueLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "anchorcred_issue_duration_seconds",
			Help:    "Duration of issuance including ledger inclusion",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FinalizeAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "anchorcred_finalize_attempts",
			Help:    "Finalize attempts needed before the issuance transaction was confirmed",
			Buckets: []float64{1, 2, 3, 5, 8, 13},
		}),
		VerifyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "anchorcred_verify_duration_seconds",
			Help:    "Duration of a single credential verification",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncIssued() {
	if m != nil {
		m.CredentialsIssued.Inc()
	}
}

func (m *Metrics) IncRevoked() {
	if m != nil {
		m.CredentialsRevoked.Inc()
	}
}

func (m *Metrics) IncDisclosures() {
	if m != nil {
		m.Disclosures.Inc()
	}
}

// IncVerification records an outcome label such as "ok" or "digest_mismatch".
func (m *Metrics) IncVerification(outcome string) {
	if m != nil {
		m.Verifications.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveIssueLatency(d time.Duration) {
	if m != nil {
		m.IssueLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveFinalizeAttempts(n int) {
	if m != nil {
		m.FinalizeAttempts.Observe(float64(n))
	}
}

func (m *Metrics) ObserveVerifyLatency(d time.Duration) {
	if m != nil {
		m.VerifyLatency.Observe(d.Seconds())
	}
}
