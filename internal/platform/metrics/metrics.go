package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	DonationsSubmitted      *prometheus.CounterVec
	NewsletterSubscriptions *prometheus.CounterVec
	FailureActivities       prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		DonationsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provegapi_donations_submitted_total",
			Help: "Donation submissions by outcome.",
		}, []string{"outcome"}),
		NewsletterSubscriptions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provegapi_newsletter_subscriptions_total",
			Help: "Newsletter subscription submissions by outcome.",
		}, []string{"outcome"}),
		FailureActivities: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provegapi_failure_activities_total",
			Help: "Failure-audit activities written after rejected submissions.",
		}),
	}
}

// DonationOutcome records one donation submission result.
func (m *Metrics) DonationOutcome(ok bool) {
	if m == nil {
		return
	}
	m.DonationsSubmitted.WithLabelValues(outcome(ok)).Inc()
}

// NewsletterOutcome records one newsletter submission result.
func (m *Metrics) NewsletterOutcome(ok bool) {
	if m == nil {
		return
	}
	m.NewsletterSubscriptions.WithLabelValues(outcome(ok)).Inc()
}

// FailureActivityCreated records a successfully written audit activity.
func (m *Metrics) FailureActivityCreated() {
	if m == nil {
		return
	}
	m.FailureActivities.Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
