package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memberclub",
		Name:      "http_requests_total",
		Help:      "HTTP requests processed, partitioned by method and status.",
	}, []string{"method", "status"})

	paymentsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memberclub",
		Name:      "payment_intents_created_total",
		Help:      "Payment intents created, partitioned by channel.",
	}, []string{"channel"})

	paymentsVerifiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "memberclub",
		Name:      "payment_intents_verified_total",
		Help:      "Payment intents reconciled by an admin.",
	})

	paymentsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "memberclub",
		Name:      "payment_intents_rejected_total",
		Help:      "Payment intents rejected by an admin.",
	})

	membersActivatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "memberclub",
		Name:      "members_activated_total",
		Help:      "Members whose dues settlement was confirmed.",
	})
)
