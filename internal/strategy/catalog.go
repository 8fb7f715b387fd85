// Package strategy содержит каталог стратегий и контракт их запуска.
//
// Сама торговая логика (сигналы, сетка, скоринг) живет во внешних
// модулях стратегий. Control plane знает только Definition и Runner.
package strategy

import (
	"context"
	"fmt"

	"tradeguard/internal/models"
)

// Тарифные планы платформы, по возрастанию
const (
	PlanStarter    = "starter"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// planRank - порядок планов для проверки минимального плана
var planRank = map[string]int{
	PlanStarter:    1,
	PlanPro:        2,
	PlanEnterprise: 3,
}

// Definition - описание стратегии в каталоге
type Definition struct {
	ID   string
	Name string

	// MinPlan - минимальный план для запуска
	MinPlan string

	// Modes - разрешенные режимы запуска (live, paper)
	Modes []string

	// DefaultConfig - конфиг по умолчанию, переопределяется payload'ом job
	DefaultConfig map[string]interface{}
}

// AllowedForPlan проверяет доступность стратегии на плане клиента
func (d *Definition) AllowedForPlan(planID string) bool {
	need, ok := planRank[d.MinPlan]
	if !ok {
		// Неизвестный минимальный план = стратегия закрыта (fail-safe)
		return false
	}
	have, ok := planRank[planID]
	if !ok {
		return false
	}
	return have >= need
}

// SupportsMode проверяет разрешен ли режим запуска
func (d *Definition) SupportsMode(mode string) bool {
	for _, m := range d.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// Credentials - расшифрованные API ключи клиента для live-запуска
type Credentials struct {
	APIKey    string
	APISecret string
}

// RiskReporter - канал отчетности запуска в circuit breaker клиента.
//
// Исполнитель отчитывается о сделках, ошибках API и получении
// рыночных данных. Без этих сигналов защита от staleness и лимиты
// PnL не видят, что происходит внутри запуска.
type RiskReporter interface {
	RecordFill(fill models.Fill) error
	RecordAPIError(errType string) error
	RecordTicker(hb models.TickerHeartbeat) error
}

// RunInput - собранный конфиг запуска стратегии
type RunInput struct {
	ClientID    string
	Strategy    *Definition
	Pair        string
	RunMode     string
	Weight      float64
	Config      map[string]interface{}
	Credentials Credentials

	// Risk всегда заполнен оркестратором при реальном запуске
	Risk RiskReporter
}

// Runner - исполнитель стратегии (внешний модуль, мокается в тестах)
type Runner interface {
	Run(ctx context.Context, input RunInput) error
}

// Catalog - реестр известных стратегий
type Catalog struct {
	defs map[string]*Definition
}

// NewCatalog создает каталог со встроенным набором стратегий
func NewCatalog() *Catalog {
	c := &Catalog{defs: make(map[string]*Definition)}

	c.Register(&Definition{
		ID:      "grid-basic",
		Name:    "Grid (basic)",
		MinPlan: PlanStarter,
		Modes:   []string{"live", "paper"},
		DefaultConfig: map[string]interface{}{
			"levels":      10,
			"spacing_pct": 0.5,
		},
	})
	c.Register(&Definition{
		ID:      "grid-adaptive",
		Name:    "Grid (adaptive spacing)",
		MinPlan: PlanPro,
		Modes:   []string{"live", "paper"},
		DefaultConfig: map[string]interface{}{
			"levels":         20,
			"vol_lookback_m": 60,
		},
	})
	c.Register(&Definition{
		ID:      "momentum-5m",
		Name:    "Momentum 5m",
		MinPlan: PlanPro,
		Modes:   []string{"paper"},
		DefaultConfig: map[string]interface{}{
			"window_m": 5,
		},
	})
	c.Register(&Definition{
		ID:      "basis-carry",
		Name:    "Basis carry",
		MinPlan: PlanEnterprise,
		Modes:   []string{"live", "paper"},
	})

	return c
}

// Register добавляет стратегию в каталог
func (c *Catalog) Register(def *Definition) {
	c.defs[def.ID] = def
}

// Get возвращает стратегию по идентификатору
func (c *Catalog) Get(id string) (*Definition, error) {
	def, ok := c.defs[id]
	if !ok {
		return nil, fmt.Errorf("strategy %q not in catalog", id)
	}
	return def, nil
}

// MergeConfig накладывает переопределения из job поверх дефолтов
func (d *Definition) MergeConfig(overrides map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(d.DefaultConfig)+len(overrides))
	for k, v := range d.DefaultConfig {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
