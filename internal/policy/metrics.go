package policy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PendingCreated - созданные pending-записи согласования
	PendingCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "policy",
		Name:      "approvals_pending_created_total",
		Help:      "Количество созданных pending-записей согласования",
	})

	// Resolved - разрешенные согласования по исходу
	Resolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "policy",
		Name:      "approvals_resolved_total",
		Help:      "Количество разрешенных согласований по исходу",
	}, []string{"status"})

	// Flagged - сделки помеченные монитором аномалий
	Flagged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "policy",
		Name:      "anomalies_flagged_total",
		Help:      "Количество сделок с аномалиями по клиентам",
	}, []string{"client_id"})
)
