package policy

import (
	"fmt"

	"tradeguard/internal/models"
	"tradeguard/pkg/utils"
)

// AnomalyThresholds - пороги мягкого мониторинга
type AnomalyThresholds struct {
	// MaxExposureUsd - абсолютный порог плановой экспозиции
	MaxExposureUsd float64

	// SizeBaselineMultiple - множитель базового размера сделки,
	// выше которого размер считается аномальным
	SizeBaselineMultiple float64
}

// DefaultAnomalyThresholds возвращает пороги по умолчанию
func DefaultAnomalyThresholds() AnomalyThresholds {
	return AnomalyThresholds{
		MaxExposureUsd:       50_000,
		SizeBaselineMultiple: 3.0,
	}
}

// TradeContext - наблюдаемый контекст сделки
type TradeContext struct {
	ClientID        string
	StrategyID      string
	PlannedExposure float64 // плановая экспозиция в USD
	TradeSizeUsd    float64 // размер сделки в USD
	BaselineSizeUsd float64 // базовый размер сделки клиента
	RegimeScore     float64 // композитная оценка рыночного режима
}

// AnomalyMonitor - мягкий мониторинг: только аудит, никогда не блокирует
type AnomalyMonitor struct {
	audit      AuditStore
	thresholds AnomalyThresholds
}

// NewAnomalyMonitor создает монитор аномалий
func NewAnomalyMonitor(audit AuditStore, thresholds AnomalyThresholds) *AnomalyMonitor {
	return &AnomalyMonitor{audit: audit, thresholds: thresholds}
}

// Observe проверяет контекст сделки на аномалии
//
// Непустой набор находок дает ровно одну запись аудита со всеми
// находками и одну строку лога. Пустой набор не дает ничего.
// Ошибки записи логируются и не возвращаются: монитор не имеет
// права влиять на торговый путь.
func (m *AnomalyMonitor) Observe(ctx TradeContext) {
	var findings []string

	if ctx.PlannedExposure > m.thresholds.MaxExposureUsd {
		findings = append(findings, fmt.Sprintf(
			"planned exposure %.2f USD above limit %.2f",
			ctx.PlannedExposure, m.thresholds.MaxExposureUsd))
	}

	aboveBaseline := ctx.BaselineSizeUsd > 0 &&
		ctx.TradeSizeUsd > ctx.BaselineSizeUsd*m.thresholds.SizeBaselineMultiple

	if aboveBaseline {
		findings = append(findings, fmt.Sprintf(
			"trade size %.2f USD exceeds %.1fx baseline %.2f",
			ctx.TradeSizeUsd, m.thresholds.SizeBaselineMultiple, ctx.BaselineSizeUsd))
	}

	if ctx.RegimeScore < 0 && aboveBaseline {
		findings = append(findings, fmt.Sprintf(
			"above-baseline size with negative regime score %.2f", ctx.RegimeScore))
	}

	if len(findings) == 0 {
		return
	}

	Flagged.WithLabelValues(ctx.ClientID).Inc()

	if err := m.audit.AddEntry(ctx.ClientID, "strategy:"+ctx.StrategyID, models.AuditActionAnomalyFlagged, map[string]interface{}{
		"findings":         findings,
		"planned_exposure": ctx.PlannedExposure,
		"trade_size_usd":   ctx.TradeSizeUsd,
		"baseline_usd":     ctx.BaselineSizeUsd,
		"regime_score":     ctx.RegimeScore,
	}); err != nil {
		utils.L().Errorw("failed to write anomaly audit entry",
			"client_id", ctx.ClientID,
			"error", err,
		)
	}

	utils.L().Warnw("trade anomalies flagged",
		"client_id", ctx.ClientID,
		"strategy_id", ctx.StrategyID,
		"findings", findings,
	)
}
