package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Confirmation outcomes.
const (
	OutcomeConfirmed       = "confirmed"
	OutcomeAlreadyAssigned = "already_assigned"
	OutcomeRejected        = "rejected"
)

// Collector holds the dispatch core's Prometheus metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	blastsCreated      prometheus.Counter
	blastConfirmations *prometheus.CounterVec
	blastDeclines      prometheus.Counter
	blastsExpired      prometheus.Counter
	alertsAutoPinged   prometheus.Counter
	alertsNew          prometheus.Counter
	pushFailures       prometheus.Counter
	routeOptimizations prometheus.Counter
	routeSavings       prometheus.Histogram
}

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		blastsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_blasts_created_total",
			Help: "Blasts broadcast to couriers",
		}),
		blastConfirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_blast_confirmations_total",
			Help: "Confirmation attempts by outcome",
		}, []string{"outcome"}),
		blastDeclines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_blast_declines_total",
			Help: "Courier declines",
		}),
		blastsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_blasts_expired_total",
			Help: "Blasts closed by the expiry sweep",
		}),
		alertsAutoPinged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_alerts_auto_pinged_total",
			Help: "Alerts that escalated into auto_ping",
		}),
		alertsNew: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_alerts_new_total",
			Help: "Alerts first seen by the evaluator",
		}),
		pushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_push_failures_total",
			Help: "Best-effort push notifications that failed",
		}),
		routeOptimizations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_route_optimizations_total",
			Help: "Route optimizations computed",
		}),
		routeSavings: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_route_savings_miles",
			Help:    "Miles saved versus the input order",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
	}

	reg.MustRegister(
		c.blastsCreated,
		c.blastConfirmations,
		c.blastDeclines,
		c.blastsExpired,
		c.alertsAutoPinged,
		c.alertsNew,
		c.pushFailures,
		c.routeOptimizations,
		c.routeSavings,
	)

	return c
}

func (c *Collector) BlastCreated() {
	if c != nil {
		c.blastsCreated.Inc()
	}
}

func (c *Collector) Confirmation(outcome string) {
	if c != nil {
		c.blastConfirmations.WithLabelValues(outcome).Inc()
	}
}

func (c *Collector) Declined() {
	if c != nil {
		c.blastDeclines.Inc()
	}
}

func (c *Collector) BlastsExpired(n int) {
	if c != nil {
		c.blastsExpired.Add(float64(n))
	}
}

func (c *Collector) AutoPinged() {
	if c != nil {
		c.alertsAutoPinged.Inc()
	}
}

func (c *Collector) NewAlerts(n int) {
	if c != nil {
		c.alertsNew.Add(float64(n))
	}
}

func (c *Collector) PushFailed() {
	if c != nil {
		c.pushFailures.Inc()
	}
}

func (c *Collector) RouteOptimized(savingsMiles float64) {
	if c != nil {
		c.routeOptimizations.Inc()
		c.routeSavings.Observe(savingsMiles)
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
