package metrics

import (
	"github.com/mssola/useragent"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Issue outcomes.
const (
	OutcomeCreated     = "created"
	OutcomeExisting    = "existing"
	OutcomeNotEligible = "not_eligible"
	OutcomeInvariant   = "invariant_violation"
	OutcomeUnavailable = "storage_unavailable"
	OutcomeError       = "error"
)

// Metrics holds Prometheus collectors for the credential lifecycle.
type Metrics struct {
	IssueOutcomes    *prometheus.CounterVec
	IssueRetries     prometheus.Counter
	IssueDuration    prometheus.Histogram
	Revocations      prometheus.Counter
	SequenceAssigned prometheus.Counter
	RenderDuration   *prometheus.HistogramVec
	RenderFailures   *prometheus.CounterVec
	VerifyLookups    *prometheus.CounterVec
	ListingIntegrity prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IssueOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_credential_issue_total",
			Help: "Issuance requests by outcome",
		}, []string{"outcome"}),
		IssueRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "academy_credential_issue_retries_total",
			Help: "Issuance transactions retried after a transient failure",
		}),
		IssueDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "academy_credential_issue_duration_seconds",
			Help:    "Issuance latency including retries",
			Buckets: prometheus.DefBuckets,
		}),
		Revocations: f.NewCounter(prometheus.CounterOpts{
			Name: "academy_credential_revocations_total",
			Help: "Credentials revoked",
		}),
		SequenceAssigned: f.NewCounter(prometheus.CounterOpts{
			Name: "academy_credential_sequence_assigned_total",
			Help: "Receipt numbers assigned",
		}),
		RenderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "academy_credential_render_duration_seconds",
			Help:    "Document render latency by variant",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"variant"}),
		RenderFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_credential_render_failures_total",
			Help: "Document renders that failed in the PDF or QR library",
		}, []string{"variant"}),
		VerifyLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_credential_verify_total",
			Help: "Public verification lookups by result and client class",
		}, []string{"result", "client"}),
		ListingIntegrity: f.NewCounter(prometheus.CounterOpts{
			Name: "academy_credential_listing_integrity_errors_total",
			Help: "Offering listing rows with broken enrollment invariants",
		}),
	}
}

func (m *Metrics) ObserveIssue(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.IssueOutcomes.WithLabelValues(outcome).Inc()
	m.IssueDuration.Observe(seconds)
}

func (m *Metrics) IncIssueRetry() {
	if m == nil {
		return
	}
	m.IssueRetries.Inc()
}

func (m *Metrics) IncRevocation() {
	if m == nil {
		return
	}
	m.Revocations.Inc()
}

func (m *Metrics) IncSequenceAssigned() {
	if m == nil {
		return
	}
	m.SequenceAssigned.Inc()
}

func (m *Metrics) ObserveRender(variant string, seconds float64) {
	if m == nil {
		return
	}
	m.RenderDuration.WithLabelValues(variant).Observe(seconds)
}

func (m *Metrics) IncRenderFailure(variant string) {
	if m == nil {
		return
	}
	m.RenderFailures.WithLabelValues(variant).Inc()
}

func (m *Metrics) IncListingIntegrity() {
	if m == nil {
		return
	}
	m.ListingIntegrity.Inc()
}

// ObserveVerify counts a lookup. The user agent is reduced to a coarse
// client class so the label set stays bounded.
func (m *Metrics) ObserveVerify(valid bool, userAgent string) {
	if m == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.VerifyLookups.WithLabelValues(result, ClientClass(userAgent)).Inc()
}

// ClientClass buckets a User-Agent into bot, mobile, desktop or unknown.
func ClientClass(userAgent string) string {
	if userAgent == "" {
		return "unknown"
	}
	ua := useragent.New(userAgent)
	switch {
	case ua.Bot():
		return "bot"
	case ua.Mobile():
		return "mobile"
	default:
		return "desktop"
	}
}
