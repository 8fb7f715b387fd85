package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Delivered - успешно доставленные уведомления
	Delivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "notify",
		Name:      "delivered_total",
		Help:      "Количество успешно доставленных уведомлений",
	})

	// Dropped - уведомления отброшенные из-за переполнения очереди
	Dropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "notify",
		Name:      "dropped_total",
		Help:      "Количество уведомлений отброшенных при переполнении очереди",
	})

	// DeliveryFailures - неудачные доставки (после всех retry)
	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "notify",
		Name:      "delivery_failures_total",
		Help:      "Количество неудачных доставок после всех повторов",
	})

	// QueueDepth - текущая глубина очереди доставки
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tradeguard",
		Subsystem: "notify",
		Name:      "queue_depth",
		Help:      "Текущее количество уведомлений в очереди",
	})
)
