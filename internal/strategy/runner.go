package strategy

import (
	"context"
	"fmt"
	"time"

	"tradeguard/internal/models"
	"tradeguard/internal/venue"
	"tradeguard/pkg/utils"
)

// PaperRunner - исполнитель paper-режима
//
// Настоящие модули стратегий живут вне control plane и подключаются
// через интерфейс Runner. PaperRunner закрывает paper-режим: проверяет
// доступность рыночных данных по паре и фиксирует симулированный
// запуск в логе, не трогая биржи.
type PaperRunner struct {
	signals venue.Signals
	clock   func() time.Time
}

// NewPaperRunner создает paper-исполнитель поверх клиента рыночных данных
func NewPaperRunner(signals venue.Signals) *PaperRunner {
	return &PaperRunner{signals: signals, clock: time.Now}
}

// Run выполняет симулированный запуск стратегии
//
// Результаты обращений к рыночным данным отчитываются в input.Risk:
// успешная выборка свечей подтверждает свежесть данных, ошибка
// выборки считается ошибкой API и двигает счетчик breaker'а.
func (p *PaperRunner) Run(ctx context.Context, input RunInput) error {
	if input.RunMode != "paper" {
		return fmt.Errorf("paper runner cannot execute %q run for strategy %s", input.RunMode, input.Strategy.ID)
	}

	// Без свежих свечей симуляция бессмысленна, запуск фейлится
	start := p.clock()
	candles, err := p.signals.GetTickerHistory(ctx, input.Pair, 12)
	if err != nil {
		if input.Risk != nil {
			if rerr := input.Risk.RecordAPIError("market_data"); rerr != nil {
				utils.L().Errorw("api error not recorded", "client_id", input.ClientID, "error", rerr)
			}
		}
		return fmt.Errorf("market data unavailable for %s: %w", input.Pair, err)
	}
	if len(candles) == 0 {
		return fmt.Errorf("no candles for %s", input.Pair)
	}

	if input.Risk != nil {
		hb := models.TickerHeartbeat{
			Timestamp: p.clock(),
			Source:    "venue_rest",
			Symbol:    input.Pair,
			LatencyMs: p.clock().Sub(start).Milliseconds(),
		}
		if rerr := input.Risk.RecordTicker(hb); rerr != nil {
			utils.L().Errorw("ticker heartbeat not recorded", "client_id", input.ClientID, "error", rerr)
		}
	}

	last := candles[len(candles)-1]
	utils.L().Infow("paper run completed",
		"client_id", input.ClientID,
		"strategy", input.Strategy.ID,
		"pair", input.Pair,
		"weight", input.Weight,
		"last_close", last.Close,
	)

	return nil
}

var _ Runner = (*PaperRunner)(nil)
