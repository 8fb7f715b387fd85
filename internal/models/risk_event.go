package models

import "time"

// RiskEvent - событие внешнего риска, зафиксированное Global Sentinel
//
// Append-only журнал. Последнее событие каждого типа используется
// для cooldown-дедупликации повторных срабатываний.
type RiskEvent struct {
	ID        int                    `json:"id" db:"id"`
	Type      string                 `json:"type" db:"type"`         // btc_drop, gas_spike, api_down
	Severity  string                 `json:"severity" db:"severity"` // info, warn, error
	Details   map[string]interface{} `json:"details,omitempty" db:"details"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// Типы риск-событий
const (
	RiskEventBtcDrop  = "btc_drop"  // пятиминутный momentum BTC ниже порога
	RiskEventGasSpike = "gas_spike" // цена газа выше порога в wei
	RiskEventAPIDown  = "api_down"  // биржа отдает non-OK health
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
