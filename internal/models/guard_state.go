package models

import "time"

// GuardState - персистентное состояние circuit breaker для одного клиента
//
// Одна строка на клиента. Мутируется ТОЛЬКО через методы guard.Breaker -
// никакой другой код не должен писать в эти поля.
//
// Инвариант: при InventoryBase > 0 отношение InventoryCost / InventoryBase
// всегда является корректной средневзвешенной ценой покупки.
type GuardState struct {
	ClientID string `json:"client_id" db:"client_id"`

	// Накопленный реализованный PNL за все время жизни клиента
	GlobalPnl float64 `json:"global_pnl" db:"global_pnl"`
	// Реализованный PNL с момента последнего resetRun (начала запуска)
	RunPnl float64 `json:"run_pnl" db:"run_pnl"`

	// Инвентарь: количество базового актива и его суммарная стоимость
	InventoryBase float64 `json:"inventory_base" db:"inventory_base"`
	InventoryCost float64 `json:"inventory_cost" db:"inventory_cost"`

	// Последний подтвержденный тик рыночных данных (для staleness)
	LastTickerTimestamp  *time.Time `json:"last_ticker_timestamp,omitempty" db:"last_ticker_timestamp"`
	LastTickerRecordedAt *time.Time `json:"last_ticker_recorded_at,omitempty" db:"last_ticker_recorded_at"`
	LastTickerSource     string     `json:"last_ticker_source" db:"last_ticker_source"`
	LastTickerLatencyMs  int64      `json:"last_ticker_latency_ms" db:"last_ticker_latency_ms"`

	// Скользящее окно таймстемпов ошибок API (последние 60 секунд, JSON в БД)
	APIErrorTimestamps []time.Time `json:"api_error_timestamps" db:"api_error_timestamps"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AvgCost возвращает средневзвешенную цену текущего инвентаря
func (g *GuardState) AvgCost() float64 {
	if g.InventoryBase <= 0 {
		return 0
	}
	return g.InventoryCost / g.InventoryBase
}

// TickerHeartbeat - подтверждение получения рыночных данных
type TickerHeartbeat struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Symbol    string    `json:"symbol"`
	LatencyMs int64     `json:"latency_ms"`
}

// Стороны сделки
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Fill - исполнение ордера, отчитываемое в circuit breaker
type Fill struct {
	Side   string  `json:"side"` // buy, sell
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
	Fee    float64 `json:"fee"`
}
