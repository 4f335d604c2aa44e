// Copyright (C) 2025 Bering AI (dev@beringchat.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the chat service.
//
// Metrics cover request counters by endpoint and outcome, active stream
// gauges, stream duration and time-to-first-fragment histograms, and an
// error counter categorized by failure type. They are exposed on
// /metrics and are meant for Prometheus + Grafana dashboards.
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "bering"
const chatSubsystem = "chat"

// =============================================================================
// Labels
// =============================================================================

// Endpoint identifies a metered route for metric labels.
type Endpoint string

const (
	EndpointChat       Endpoint = "chat"
	EndpointChatStream Endpoint = "chat_stream"
	EndpointHistory    Endpoint = "history"
	EndpointModels     Endpoint = "models"
	EndpointUser       Endpoint = "user"
)

// ErrorCode categorizes failures for the error counter.
type ErrorCode string

const (
	ErrorCodeValidation       ErrorCode = "validation"
	ErrorCodeAuth             ErrorCode = "auth"
	ErrorCodeUpstream         ErrorCode = "upstream"
	ErrorCodeEmptyCompletion  ErrorCode = "empty_completion"
	ErrorCodeClientDisconnect ErrorCode = "client_disconnect"
	ErrorCodeInternal         ErrorCode = "internal"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// ChatMetrics holds all Prometheus metrics for the chat service.
// Initialize once at startup via InitMetrics().
type ChatMetrics struct {
	// RequestsTotal counts requests by endpoint and status (success, error).
	RequestsTotal *prometheus.CounterVec

	// FragmentsTotal counts stream fragments emitted to clients.
	FragmentsTotal *prometheus.CounterVec

	// TimeToFirstFragmentSeconds measures latency to the first emitted
	// fragment of a stream.
	TimeToFirstFragmentSeconds *prometheus.HistogramVec

	// StreamDurationSeconds measures total stream duration by outcome.
	StreamDurationSeconds *prometheus.HistogramVec

	// ActiveStreams tracks currently open streaming connections.
	ActiveStreams *prometheus.GaugeVec

	// ErrorsTotal counts errors by endpoint and error code.
	ErrorsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, set by InitMetrics. Nil when
// metrics are disabled (tests construct handlers without calling
// InitMetrics and every call site nil-checks).
var DefaultMetrics *ChatMetrics

// InitMetrics creates and registers all chat metrics on the default
// registry. Call once at startup; a second call panics on duplicate
// registration, which is the desired loud failure.
func InitMetrics() *ChatMetrics {
	DefaultMetrics = &ChatMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "requests_total",
				Help:      "Total requests by endpoint and status.",
			},
			[]string{"endpoint", "status"},
		),
		FragmentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "fragments_total",
				Help:      "Stream fragments emitted to clients.",
			},
			[]string{"endpoint"},
		),
		TimeToFirstFragmentSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "time_to_first_fragment_seconds",
				Help:      "Latency from request start to first emitted fragment.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"endpoint"},
		),
		StreamDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "stream_duration_seconds",
				Help:      "Total stream duration by outcome.",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"endpoint", "status"},
		),
		ActiveStreams: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "active_streams",
				Help:      "Currently open streaming connections.",
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "errors_total",
				Help:      "Errors by endpoint and category.",
			},
			[]string{"endpoint", "error_code"},
		),
	}
	return DefaultMetrics
}

// =============================================================================
// Recording Helpers
// =============================================================================

// RecordRequest records a completed request.
func (m *ChatMetrics) RecordRequest(endpoint Endpoint, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
}

// RecordError records a categorized failure.
func (m *ChatMetrics) RecordError(endpoint Endpoint, code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(endpoint), string(code)).Inc()
}

// RecordFragment counts one emitted stream fragment.
func (m *ChatMetrics) RecordFragment(endpoint Endpoint) {
	m.FragmentsTotal.WithLabelValues(string(endpoint)).Inc()
}

// StreamStarted increments the active stream gauge.
func (m *ChatMetrics) StreamStarted(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Inc()
}

// StreamEnded decrements the active stream gauge.
func (m *ChatMetrics) StreamEnded(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Dec()
}

// RecordTimeToFirstFragment records latency to the first fragment.
func (m *ChatMetrics) RecordTimeToFirstFragment(endpoint Endpoint, seconds float64) {
	m.TimeToFirstFragmentSeconds.WithLabelValues(string(endpoint)).Observe(seconds)
}

// RecordStreamDuration records the total duration of a stream.
func (m *ChatMetrics) RecordStreamDuration(endpoint Endpoint, seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.StreamDurationSeconds.WithLabelValues(string(endpoint), status).Observe(seconds)
}
