package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsConfirmationsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.Confirmation(OutcomeConfirmed)
	c.Confirmation(OutcomeAlreadyAssigned)
	c.Confirmation(OutcomeAlreadyAssigned)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.blastConfirmations.WithLabelValues(OutcomeConfirmed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.blastConfirmations.WithLabelValues(OutcomeAlreadyAssigned)))
}

func TestCollectorRegistersEveryMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.BlastCreated()
	c.Declined()
	c.BlastsExpired(2)
	c.AutoPinged()
	c.NewAlerts(3)
	c.PushFailed()
	c.RouteOptimized(4.5)
	c.Confirmation(OutcomeRejected)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 9)
	assert.Equal(t, 3.0, testutil.ToFloat64(c.alertsNew))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.BlastCreated()
		c.Confirmation(OutcomeConfirmed)
		c.RouteOptimized(1)
	})
}
