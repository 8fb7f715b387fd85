package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradeguard/internal/models"
	"tradeguard/internal/venue"
)

// mockSignals отдает заготовленные свечи или ошибку
type mockSignals struct {
	candles []venue.Candle
	err     error
}

func (m *mockSignals) GetTickerHistory(_ context.Context, _ string, _ int) ([]venue.Candle, error) {
	return m.candles, m.err
}

func (m *mockSignals) GetGasPrice(_ context.Context) (uint64, error) {
	return 0, errors.New("not implemented")
}

func (m *mockSignals) GetHealth(_ context.Context, _ string) (venue.Health, error) {
	return venue.Health{}, errors.New("not implemented")
}

// mockRisk фиксирует отчетность запуска
type mockRisk struct {
	fills     []models.Fill
	apiErrors []string
	tickers   []models.TickerHeartbeat
}

func (m *mockRisk) RecordFill(fill models.Fill) error {
	m.fills = append(m.fills, fill)
	return nil
}

func (m *mockRisk) RecordAPIError(errType string) error {
	m.apiErrors = append(m.apiErrors, errType)
	return nil
}

func (m *mockRisk) RecordTicker(hb models.TickerHeartbeat) error {
	m.tickers = append(m.tickers, hb)
	return nil
}

func testDefinition() *Definition {
	return &Definition{ID: "grid_spot", Name: "Grid Spot"}
}

func TestPaperRunReportsTicker(t *testing.T) {
	signals := &mockSignals{candles: []venue.Candle{
		{OpenTime: time.Now().Add(-time.Minute), Close: 64100},
		{OpenTime: time.Now(), Close: 64200},
	}}
	risk := &mockRisk{}
	runner := NewPaperRunner(signals)

	err := runner.Run(context.Background(), RunInput{
		ClientID: "client-1",
		Strategy: testDefinition(),
		Pair:     "BTCUSDT",
		RunMode:  "paper",
		Weight:   1.0,
		Risk:     risk,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(risk.tickers) != 1 {
		t.Fatalf("tickers recorded = %d, want 1", len(risk.tickers))
	}
	hb := risk.tickers[0]
	if hb.Source != "venue_rest" {
		t.Errorf("Source = %q, want venue_rest", hb.Source)
	}
	if hb.Symbol != "BTCUSDT" {
		t.Errorf("Symbol = %q, want BTCUSDT", hb.Symbol)
	}
	if hb.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}
	if len(risk.apiErrors) != 0 {
		t.Errorf("apiErrors = %v, want none", risk.apiErrors)
	}
}

func TestPaperRunReportsAPIError(t *testing.T) {
	signals := &mockSignals{err: errors.New("connection refused")}
	risk := &mockRisk{}
	runner := NewPaperRunner(signals)

	err := runner.Run(context.Background(), RunInput{
		ClientID: "client-1",
		Strategy: testDefinition(),
		Pair:     "BTCUSDT",
		RunMode:  "paper",
		Risk:     risk,
	})
	if err == nil {
		t.Fatal("expected error on unavailable market data")
	}

	if len(risk.apiErrors) != 1 || risk.apiErrors[0] != "market_data" {
		t.Errorf("apiErrors = %v, want [market_data]", risk.apiErrors)
	}
	if len(risk.tickers) != 0 {
		t.Errorf("tickers = %d, want 0", len(risk.tickers))
	}
}

func TestPaperRunRejectsLiveMode(t *testing.T) {
	runner := NewPaperRunner(&mockSignals{})

	err := runner.Run(context.Background(), RunInput{
		ClientID: "client-1",
		Strategy: testDefinition(),
		Pair:     "BTCUSDT",
		RunMode:  "live",
	})
	if err == nil {
		t.Fatal("expected error for live mode")
	}
}

func TestPaperRunWithoutRiskReporter(t *testing.T) {
	// Запуск без отчетности не должен паниковать (тесты каталога,
	// ручные прогоны)
	signals := &mockSignals{candles: []venue.Candle{{Close: 100}}}
	runner := NewPaperRunner(signals)

	err := runner.Run(context.Background(), RunInput{
		ClientID: "client-1",
		Strategy: testDefinition(),
		Pair:     "BTCUSDT",
		RunMode:  "paper",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}
