package models

import "time"

// ClientRecord представляет клиента платформы
//
// Запись принадлежит биллинговой/админской подсистеме,
// control plane читает ее перед каждым job (см. worker.Orchestrator).
type ClientRecord struct {
	ID            string     `json:"id" db:"id"`
	BillingStatus string     `json:"billing_status" db:"billing_status"` // trialing, active, past_due, canceled
	TrialEndsAt   *time.Time `json:"trial_ends_at,omitempty" db:"trial_ends_at"`
	IsPaused      bool       `json:"is_paused" db:"is_paused"`
	KillRequested bool       `json:"kill_requested" db:"kill_requested"`
	PlanID        string     `json:"plan_id" db:"plan_id"`

	// API ключи бирж хранятся в зашифрованном виде (AES-GCM, pkg/crypto)
	// Расшифровываются только при сборке конфига для запуска стратегии
	APIKeyEncrypted    string `json:"-" db:"api_key_encrypted"`
	APISecretEncrypted string `json:"-" db:"api_secret_encrypted"`

	// Переопределения лимитов circuit breaker (null = дефолты деплоя)
	MaxGlobalDrawdownUsd *float64 `json:"max_global_drawdown_usd,omitempty" db:"max_global_drawdown_usd"`
	MaxRunLossUsd        *float64 `json:"max_run_loss_usd,omitempty" db:"max_run_loss_usd"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Статусы биллинга
const (
	BillingTrialing = "trialing"
	BillingActive   = "active"
	BillingPastDue  = "past_due"
	BillingCanceled = "canceled"
)

// BillingActive возвращает true если биллинг позволяет торговать
//
// Правило: active и past_due торгуют, trialing торгует до конца trial.
// Неизвестный/просроченный статус = НЕ торгуем (fail-safe)
func (c *ClientRecord) BillingActive(now time.Time) bool {
	switch c.BillingStatus {
	case BillingActive, BillingPastDue:
		return true
	case BillingTrialing:
		return c.TrialEndsAt != nil && now.Before(*c.TrialEndsAt)
	default:
		return false
	}
}

// ClientStrategy - стратегия, разрешенная клиенту
type ClientStrategy struct {
	ClientID   string  `json:"client_id" db:"client_id"`
	StrategyID string  `json:"strategy_id" db:"strategy_id"`
	Enabled    bool    `json:"enabled" db:"enabled"`
	Weight     float64 `json:"weight" db:"weight"` // доля портфеля (0 = не торгуется)
	RunMode    string  `json:"run_mode" db:"run_mode"`
}

// Режимы запуска стратегии
const (
	RunModeLive  = "live"
	RunModePaper = "paper"
)
