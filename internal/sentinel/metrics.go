package sentinel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Triggers - сработавшие пороги по типам
	Triggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "sentinel",
		Name:      "triggers_total",
		Help:      "Количество срабатываний порогов по типам",
	}, []string{"type"})

	// Suppressed - срабатывания подавленные cooldown-окном
	Suppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "sentinel",
		Name:      "suppressed_total",
		Help:      "Количество срабатываний подавленных cooldown",
	}, []string{"type"})

	// CheckErrors - ошибки выполнения проверок
	CheckErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tradeguard",
		Subsystem: "sentinel",
		Name:      "check_errors_total",
		Help:      "Количество ошибок выполнения проверок",
	}, []string{"check"})

	// BtcMomentum - последнее измеренное пятиминутное изменение BTC в процентах
	BtcMomentum = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tradeguard",
		Subsystem: "sentinel",
		Name:      "btc_momentum_pct",
		Help:      "Пятиминутное изменение цены BTC в процентах",
	})

	// GasPriceWei - последняя измеренная цена газа
	GasPriceWei = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tradeguard",
		Subsystem: "sentinel",
		Name:      "gas_price_wei",
		Help:      "Последняя измеренная цена газа в wei",
	})
)
