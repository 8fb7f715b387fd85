package utils

import (
	"testing"
	"time"
)

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name     string
		oldValue float64
		newValue float64
		expected float64
	}{
		{"drop 5 percent", 100, 95, -5},
		{"rise 10 percent", 50, 55, 10},
		{"no change", 42, 42, 0},
		{"invalid old value", 0, 100, 0},
		{"negative old value", -10, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentChange(tt.oldValue, tt.newValue)
			if diff := got - tt.expected; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("PercentChange(%f, %f) = %f, expected %f", tt.oldValue, tt.newValue, got, tt.expected)
			}
		})
	}
}

func TestRoundUsd(t *testing.T) {
	if got := RoundUsd(2.69769); got != 2.70 {
		t.Errorf("RoundUsd(2.69769) = %f, expected 2.70", got)
	}
	if got := RoundUsd(-0.005); got != -0.0 && got != 0.0 && got != -0.01 {
		t.Errorf("RoundUsd(-0.005) = %f", got)
	}
}

func TestPruneOlderThan(t *testing.T) {
	now := time.Now()
	timestamps := []time.Time{
		now.Add(-90 * time.Second),
		now.Add(-59 * time.Second),
		now.Add(-5 * time.Second),
	}

	pruned := PruneOlderThan(timestamps, now.Add(-60*time.Second))
	if len(pruned) != 2 {
		t.Fatalf("pruned length = %d, expected 2", len(pruned))
	}
	if len(timestamps) != 3 {
		t.Error("source slice must not be mutated")
	}
}

func TestGetDayStart(t *testing.T) {
	now := time.Date(2025, 6, 15, 18, 30, 45, 0, time.UTC)
	start := GetDayStart(now)
	if start.Hour() != 0 || start.Minute() != 0 || start.Second() != 0 {
		t.Errorf("GetDayStart = %v, expected midnight", start)
	}
	if start.Day() != 15 {
		t.Errorf("day = %d, expected 15", start.Day())
	}
}

func TestInitLoggerAndL(t *testing.T) {
	InitLogger(LoggerConfig{Level: "debug", Output: "console"})
	if L() == nil {
		t.Fatal("L() returned nil after InitLogger")
	}
	// Не должно паниковать
	L().Debugw("test entry", "k", "v")
}
