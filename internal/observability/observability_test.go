package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()
	m.RowsDropped.WithLabelValues("unknown_club").Add(2)
	m.ShotsLoaded.WithLabelValues("csv").Inc()

	assert.InDelta(t, 2, testutil.ToFloat64(m.RowsDropped.WithLabelValues("unknown_club")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ShotsLoaded.WithLabelValues("csv")), 0)

	// A second instance must not collide with the first.
	assert.NotPanics(t, func() { NewMetricsForTesting() })
}
