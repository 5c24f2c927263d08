package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_ledger_entries_total",
		Help: "Ledger entries written, partitioned by event type and direction.",
	}, []string{"event_type", "direction"})

	replaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "credit_ledger_idempotent_replays_total",
		Help: "Credit/debit calls answered from an existing entry.",
	})

	sinkFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "credit_ledger_sink_failures_total",
		Help: "Store-credit sink pushes that exhausted retries and left an unsynced entry.",
	})
)
