package utils

import (
	"math"
)

// math.go - математические утилиты control plane
//
// Все функции являются чистыми (pure functions) без побочных эффектов.

// RoundUsd округляет сумму в USD до 2 знаков (для уведомлений и логов)
func RoundUsd(value float64) float64 {
	return math.Round(value*100) / 100
}

// PercentChange возвращает изменение значения в процентах
//
// Используется Global Sentinel для расчета пятиминутного momentum BTC:
// PercentChange(price5mAgo, priceNow) < -threshold => btc_drop.
//
// Возвращает 0 если старое значение некорректно (<= 0).
func PercentChange(oldValue, newValue float64) float64 {
	if oldValue <= 0 {
		return 0
	}
	return (newValue - oldValue) / oldValue * 100
}

// ClampInt ограничивает значение диапазоном [min, max]
func ClampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
