package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PostingsTotal counts ledger postings by type and outcome.
var PostingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ledger_postings_total",
	Help: "Number of ledger postings attempted, by transaction type and outcome.",
}, []string{"type", "outcome"})

// LoginAttempts counts login attempts by outcome.
var LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "auth_login_attempts_total",
	Help: "Number of login attempts, by outcome.",
}, []string{"outcome"})
