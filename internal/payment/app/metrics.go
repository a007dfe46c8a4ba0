package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionsCreatedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "journal_payments",
			Name:      "transactions_created_total",
			Help:      "Total transactions created.",
		},
		[]string{"service_type"},
	)

	gatewayInvocationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "journal_payments",
			Name:      "gateway_invocations_total",
			Help:      "Total gateway checkout invocations by normalized outcome.",
		},
		[]string{"provider", "outcome"}, // outcome: "success", "failure", "network_error"
	)

	gatewayRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "journal_payments",
			Name:      "gateway_request_duration_seconds",
			Help:      "Duration of HTTP requests to payment gateways.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	webhookEventsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "journal_payments",
			Name:      "webhook_events_total",
			Help:      "Total gateway webhook events processed.",
		},
		[]string{"provider", "status"},
	)

	redirectFallbackCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "journal_payments",
			Name:      "redirect_fallbacks_total",
			Help:      "Redirect handoffs that needed a fallback navigation step.",
		},
		[]string{"stage"}, // "secondary", "manual"
	)
)
