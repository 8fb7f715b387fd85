package guard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики риск-контура
// ============================================================
//
// Метрики наблюдательные: control plane НИКОГДА не читает их обратно
// для принятия решений (решения только из GuardState).

// ============ Состояние ============

// KillSwitchActive - 1 если kill switch активен
var KillSwitchActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradeguard",
		Subsystem: "guard",
		Name:      "kill_switch_active",
		Help:      "Whether the kill switch is currently active (1) or armed (0)",
	},
)

// GlobalPnl - накопленный реализованный PNL клиента
var GlobalPnl = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "tradeguard",
		Subsystem: "guard",
		Name:      "global_pnl_usd",
		Help:      "Cumulative realized PnL per client in USD",
	},
	[]string{"client"},
)

// APIErrorWindow - размер скользящего окна ошибок API
var APIErrorWindow = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "tradeguard",
		Subsystem: "guard",
		Name:      "api_error_window_size",
		Help:      "Number of API errors within the sliding 60s window per client",
	},
	[]string{"client"},
)

// ============ Счетчики событий ============

// KillSwitchActivations - активации по причинам
var KillSwitchActivations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "guard",
		Name:      "kill_switch_activations_total",
		Help:      "Total kill switch activations by reason",
	},
	[]string{"reason"},
)

// BreachesTotal - пробития лимитов circuit breaker
var BreachesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "guard",
		Name:      "breaches_total",
		Help:      "Circuit breaker breaches by type (drawdown, run_loss, api_errors, stale_data)",
	},
	[]string{"client", "type"},
)

// StateSaveFailures - неудачные записи GuardState
//
// Решение принимается in-memory, о потере durability оператор
// узнает из этой метрики и логов.
var StateSaveFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "guard",
		Name:      "state_save_failures_total",
		Help:      "Failed guard state persistence attempts per client",
	},
	[]string{"client"},
)

// FillsRecorded - обработанные исполнения
var FillsRecorded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "guard",
		Name:      "fills_recorded_total",
		Help:      "Fills recorded by side",
	},
	[]string{"client", "side"},
)
