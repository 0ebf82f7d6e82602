package offlinesync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	drainsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daybook_sync_drains_total",
			Help: "Completed drain cycles by outcome status",
		},
		[]string{"status"},
	)

	entriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daybook_sync_entries_total",
			Help: "Entries processed by result (committed, duplicate, rejected, retained)",
		},
		[]string{"result"},
	)

	pendingEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "daybook_sync_pending_entries",
			Help: "Entries waiting in the on-device queue",
		},
	)
)
