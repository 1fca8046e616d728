// SPDX-License-Identifier: MIT
package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCounters(t *testing.T) {
	before := testutil.ToFloat64(sessionsActive)

	SessionOpened()
	SessionOpened()
	SessionClosed()

	assert.Equal(t, before+1, testutil.ToFloat64(sessionsActive))
}

func TestCommandOutcomeLabels(t *testing.T) {
	CommandProcessed("start_login", "ok")
	CommandProcessed("start_login", "ok")
	CommandProcessed("start_login", "rejected")

	assert.Equal(t, float64(2), testutil.ToFloat64(commandsTotal.WithLabelValues("start_login", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(commandsTotal.WithLabelValues("start_login", "rejected")))
}

// findHistogram digs the labelled histogram out of a gathered family.
func findHistogram(t *testing.T, name string, labels map[string]string) *dto.Histogram {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] == lp.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return m.GetHistogram()
			}
		}
	}
	return nil
}

func TestPlatformRequestRecordsOutcome(t *testing.T) {
	PlatformRequest("login", time.Now().Add(-5*time.Millisecond), nil)
	PlatformRequest("login", time.Now(), errors.New("boom"))

	success := findHistogram(t, "ocelbridge_platform_request_seconds",
		map[string]string{"operation": "login", "outcome": "success"})
	require.NotNil(t, success)
	assert.GreaterOrEqual(t, success.GetSampleCount(), uint64(1))

	failure := findHistogram(t, "ocelbridge_platform_request_seconds",
		map[string]string{"operation": "login", "outcome": "failure"})
	require.NotNil(t, failure)
	assert.GreaterOrEqual(t, failure.GetSampleCount(), uint64(1))
}

func TestUploadMetrics(t *testing.T) {
	UploadAccepted(2048)
	UploadRejected()

	assert.GreaterOrEqual(t, testutil.ToFloat64(uploadsTotal.WithLabelValues("accepted")), float64(1))
	assert.GreaterOrEqual(t, testutil.ToFloat64(uploadsTotal.WithLabelValues("rejected")), float64(1))
}
