package utils

import (
	"time"
)

// time.go - утилиты для работы со временем
//
// Используются для автоочистки журналов (risk_events, audit_log)
// и фильтрации данных по временным диапазонам.

// GetDayStart возвращает начало текущего дня (00:00:00) в UTC
func GetDayStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// PruneOlderThan удаляет из слайса таймстемпы старше окна
//
// Используется circuit breaker для скользящего окна ошибок API (60s).
// Возвращает новый слайс, исходный не мутируется.
func PruneOlderThan(timestamps []time.Time, cutoff time.Time) []time.Time {
	pruned := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	return pruned
}
