// SPDX-License-Identifier: MIT
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ocelbridge_sessions_active",
		Help: "Number of currently registered relay sessions",
	})

	sessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocelbridge_sessions_total",
		Help: "Total number of relay sessions created",
	})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocelbridge_commands_total",
		Help: "Commands processed by kind and outcome",
	}, []string{"command", "outcome"}) // outcome=ok|rejected|error

	eventsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocelbridge_events_emitted_total",
		Help: "Events emitted to clients by type",
	}, []string{"type"})

	reaperEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocelbridge_reaper_evictions_total",
		Help: "Sessions evicted by the idle reaper",
	})

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocelbridge_uploads_total",
		Help: "Upload attempts by outcome",
	}, []string{"outcome"}) // outcome=accepted|rejected|error

	uploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ocelbridge_upload_bytes",
		Help:    "Size distribution of accepted uploads",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})

	platformRequestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ocelbridge_platform_request_seconds",
		Help:    "Platform API request duration by operation and outcome",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"}) // operation=login|mfa|create_type

	typesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocelbridge_types_created_total",
		Help: "Type definitions created on the platform by kind",
	}, []string{"kind"}) // kind=object|event
)

// SessionOpened records a new relay session.
func SessionOpened() {
	sessionsTotal.Inc()
	sessionsActive.Inc()
}

// SessionClosed records a torn-down relay session.
func SessionClosed() {
	sessionsActive.Dec()
}

// CommandProcessed records one dispatched command.
func CommandProcessed(command, outcome string) {
	commandsTotal.WithLabelValues(command, outcome).Inc()
}

// EventEmitted records one outbound event.
func EventEmitted(eventType string) {
	eventsEmittedTotal.WithLabelValues(eventType).Inc()
}

// ReaperEvicted records one idle-timeout eviction.
func ReaperEvicted() {
	reaperEvictionsTotal.Inc()
}

// UploadAccepted records a stored upload of the given size.
func UploadAccepted(size int64) {
	uploadsTotal.WithLabelValues("accepted").Inc()
	uploadBytes.Observe(float64(size))
}

// UploadRejected records an upload refused by validation.
func UploadRejected() {
	uploadsTotal.WithLabelValues("rejected").Inc()
}

// UploadFailed records an upload that failed to store.
func UploadFailed() {
	uploadsTotal.WithLabelValues("error").Inc()
}

// PlatformRequest records one platform API call.
func PlatformRequest(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	platformRequestSeconds.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

// TypeCreated records a created type definition.
func TypeCreated(kind string) {
	typesCreatedTotal.WithLabelValues(kind).Inc()
}
