package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed - успешно обработанные job по клиентам и типам
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "worker",
		Name:      "jobs_processed_total",
		Help:      "Количество успешно обработанных job",
	}, []string{"client_id", "type"})

	// JobFailures - job завершившиеся ошибкой
	JobFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "worker",
		Name:      "job_failures_total",
		Help:      "Количество job завершившихся ошибкой",
	}, []string{"client_id"})

	// JobsSkipped - job пропущенные гейтами (биллинг, пауза, kill)
	JobsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "worker",
		Name:      "jobs_skipped_total",
		Help:      "Количество job пропущенных гейтами по причинам",
	}, []string{"client_id", "reason"})

	// QueueDepthGauge - глубина очереди job по клиентам
	QueueDepthGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tradeguard",
		Subsystem: "worker",
		Name:      "queue_depth",
		Help:      "Глубина очереди job клиента",
	}, []string{"client_id"})

	// StatusGauge - текущий статус воркера (1 для активного статуса)
	StatusGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tradeguard",
		Subsystem: "worker",
		Name:      "status",
		Help:      "Текущий статус воркера (1 = в этом статусе)",
	}, []string{"client_id", "status"})

	// Heartbeats - отправленные heartbeat
	Heartbeats = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "worker",
		Name:      "heartbeats_total",
		Help:      "Количество отправленных heartbeat",
	}, []string{"client_id"})
)

// setStatusGauge выставляет 1 активному статусу и 0 остальным
func setStatusGauge(clientID, active string) {
	statuses := []string{"starting", "running", "paused", "stopped", "error"}
	for _, s := range statuses {
		v := 0.0
		if s == active {
			v = 1.0
		}
		StatusGauge.WithLabelValues(clientID, s).Set(v)
	}
}
