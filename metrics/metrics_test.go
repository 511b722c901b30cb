package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// Incrementing through the declared label sets panics on arity drift,
// so this pins each collector's labels.
func TestCollectorLabelSets(t *testing.T) {
	for _, outcome := range []string{"selected", "fallback", "hardcoded"} {
		DecisionCount.WithLabelValues(outcome).Inc()
	}
	for _, result := range []string{"success", "timeout", "error"} {
		FailoverAttempts.WithLabelValues(result).Inc()
	}
	for _, event := range []string{"hit", "miss", "invalidate"} {
		LoadCacheEvents.WithLabelValues(event).Inc()
	}
	ProviderRequests.WithLabelValues("OpenAI", "success").Inc()
	ProviderRequests.WithLabelValues("OpenAI", "error").Inc()
	DecisionDuration.Observe(0.05)

	assert.Equal(t, 3, testutil.CollectAndCount(DecisionCount))
	assert.Equal(t, 3, testutil.CollectAndCount(FailoverAttempts))
	assert.Equal(t, 3, testutil.CollectAndCount(LoadCacheEvents))
	assert.Equal(t, 2, testutil.CollectAndCount(ProviderRequests))
	assert.Equal(t, 1, testutil.CollectAndCount(DecisionDuration))

	assert.Equal(t, float64(1), testutil.ToFloat64(DecisionCount.WithLabelValues("hardcoded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(LoadCacheEvents.WithLabelValues("invalidate")))
}
