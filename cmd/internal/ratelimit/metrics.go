package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultAllowed = "allowed"
	resultLimited = "limited"
	resultError   = "error"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "portal_ratelimit_requests_total",
		Help: "Requests seen by the rate limiter, by scope and result.",
	},
	[]string{"scope", "result"},
)
