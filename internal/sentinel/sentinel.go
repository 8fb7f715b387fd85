// Package sentinel реализует глобальный мониторинг внешних рисков.
//
// Раз в цикл опрашивает внешние сигналы (momentum BTC, цена газа,
// здоровье венью) и при срабатывании любого порога активирует
// глобальный kill switch. Повторные срабатывания одного типа
// подавляются cooldown-окном.
package sentinel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradeguard/internal/guard"
	"tradeguard/internal/models"
	"tradeguard/internal/venue"
	"tradeguard/pkg/utils"
)

// EventStore - журнал риск-событий (реализуется repository.RiskEventRepository)
type EventStore interface {
	Insert(eventType, severity string, details map[string]interface{}) (*models.RiskEvent, error)
	LatestByType(eventType string) (*models.RiskEvent, error)
	DeleteOlderThan(olderThan time.Time) (int64, error)
}

// Thresholds - пороги срабатывания мониторинга
type Thresholds struct {
	// BtcDropPct - падение BTC за 5 минут в процентах (положительное число).
	// Momentum ниже -BtcDropPct активирует kill switch.
	BtcDropPct float64

	// GasSpikeWei - цена газа в wei, выше которой активируется kill switch
	GasSpikeWei uint64

	// Venues - список венью для проверки здоровья
	Venues []string

	// Cooldown - окно подавления повторных срабатываний одного типа
	Cooldown time.Duration

	// Interval - период цикла проверок
	Interval time.Duration

	// Retention - сколько хранить записи журнала риск-событий.
	// Старше этого окна записи удаляются раз в сутки.
	Retention time.Duration
}

// DefaultThresholds возвращает пороги по умолчанию
func DefaultThresholds() Thresholds {
	return Thresholds{
		BtcDropPct:  5.0,
		GasSpikeWei: 150_000_000_000, // 150 gwei
		Cooldown:    15 * time.Minute,
		Interval:    30 * time.Second,
		Retention:   90 * 24 * time.Hour,
	}
}

// Sentinel - глобальный страж внешних рисков
//
// lastFired держит время последнего срабатывания каждого типа в памяти
// и сидируется из журнала при старте: рестарт процесса не приводит
// к шквалу повторных уведомлений, а значение не старше одного цикла.
type Sentinel struct {
	signals    venue.Signals
	events     EventStore
	kill       *guard.KillSwitch
	notifier   guard.Notifier
	thresholds Thresholds

	mu        sync.Mutex
	lastFired map[string]time.Time

	clock func() time.Time
}

// New создает Sentinel (запуск через Run, перед этим Seed)
func New(signals venue.Signals, events EventStore, kill *guard.KillSwitch, notifier guard.Notifier, thresholds Thresholds) *Sentinel {
	if thresholds.Cooldown <= 0 {
		thresholds.Cooldown = 15 * time.Minute
	}
	if thresholds.Interval <= 0 {
		thresholds.Interval = 30 * time.Second
	}
	if thresholds.Retention <= 0 {
		thresholds.Retention = 90 * 24 * time.Hour
	}

	return &Sentinel{
		signals:    signals,
		events:     events,
		kill:       kill,
		notifier:   notifier,
		thresholds: thresholds,
		lastFired:  make(map[string]time.Time),
		clock:      time.Now,
	}
}

// Seed загружает время последних срабатываний из журнала
func (s *Sentinel) Seed() error {
	types := []string{models.RiskEventBtcDrop, models.RiskEventGasSpike, models.RiskEventAPIDown}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, eventType := range types {
		ev, err := s.events.LatestByType(eventType)
		if err != nil {
			// Отсутствие событий не ошибка
			continue
		}
		s.lastFired[eventType] = ev.CreatedAt
	}

	return nil
}

// Run запускает цикл проверок до отмены контекста
func (s *Sentinel) Run(ctx context.Context) {
	ticker := time.NewTicker(s.thresholds.Interval)
	defer ticker.Stop()

	utils.L().Infow("sentinel started",
		"interval", s.thresholds.Interval,
		"btc_drop_pct", s.thresholds.BtcDropPct,
		"gas_spike_wei", s.thresholds.GasSpikeWei,
	)

	var lastCleanupDay time.Time
	for {
		select {
		case <-ctx.Done():
			utils.L().Info("sentinel stopped")
			return
		case <-ticker.C:
			// Журнал чистится один раз в сутки, на первом тике дня
			if day := utils.GetDayStart(s.clock()); day.After(lastCleanupDay) {
				s.cleanupJournal()
				lastCleanupDay = day
			}
			s.RunChecks(ctx)
		}
	}
}

// cleanupJournal удаляет риск-события старше окна ретенции
func (s *Sentinel) cleanupJournal() {
	cutoff := utils.GetDayStart(s.clock()).Add(-s.thresholds.Retention)
	deleted, err := s.events.DeleteOlderThan(cutoff)
	if err != nil {
		utils.L().Errorw("risk event cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		utils.L().Infow("risk events pruned", "deleted", deleted, "cutoff", cutoff)
	}
}

// finding - сработавший порог одной проверки
type finding struct {
	eventType string
	severity  string
	reason    string
	details   map[string]interface{}
}

// RunChecks выполняет все проверки параллельно и обрабатывает результаты
//
// Ошибка одной проверки не мешает остальным: каждая проверка отдает
// либо finding, либо ошибку, либо ничего.
func (s *Sentinel) RunChecks(ctx context.Context) {
	checks := []struct {
		name string
		fn   func(context.Context) (*finding, error)
	}{
		{"btc_momentum", s.checkBtcMomentum},
		{"gas_price", s.checkGasPrice},
		{"venue_health", s.checkVenueHealth},
	}

	findings := make([]*finding, len(checks))
	errs := make([]error, len(checks))
	var wg sync.WaitGroup

	for i, c := range checks {
		wg.Add(1)
		go func(i int, fn func(context.Context) (*finding, error)) {
			defer wg.Done()
			findings[i], errs[i] = fn(ctx)
		}(i, c.fn)
	}

	wg.Wait()

	// Результаты обрабатываются в фиксированном порядке проверок:
	// первая успешная активация завершает цикл (first-cause wins),
	// остальные находки не порождают дублирующих уведомлений
	for i, c := range checks {
		if errs[i] != nil {
			CheckErrors.WithLabelValues(c.name).Inc()
			utils.L().Warnw("sentinel check failed", "check", c.name, "error", errs[i])
			continue
		}
		if findings[i] == nil {
			continue
		}
		if s.fire(findings[i]) {
			return
		}
	}
}

// fire обрабатывает сработавший порог с учетом cooldown
//
// Возвращает true если именно этот вызов активировал kill switch.
func (s *Sentinel) fire(f *finding) bool {
	now := s.clock()

	s.mu.Lock()
	last, seen := s.lastFired[f.eventType]
	if seen && now.Sub(last) < s.thresholds.Cooldown {
		s.mu.Unlock()
		Suppressed.WithLabelValues(f.eventType).Inc()
		utils.L().Debugw("sentinel trigger suppressed by cooldown",
			"type", f.eventType,
			"last_fired", last,
		)
		return false
	}
	s.lastFired[f.eventType] = now
	s.mu.Unlock()

	Triggers.WithLabelValues(f.eventType).Inc()

	if _, err := s.events.Insert(f.eventType, f.severity, f.details); err != nil {
		// Журнал недоступен, но защита важнее записи
		utils.L().Errorw("failed to record risk event", "type", f.eventType, "error", err)
	}

	// Глобальная активация: clientID пустой, останавливаются все
	if s.kill.Activate(f.reason, "") {
		utils.L().Warnw("sentinel activated kill switch", "type", f.eventType, "reason", f.reason)
		return true
	}

	// Kill switch уже активен: причина-первопричина сохраняется
	utils.L().Infow("kill switch already active, trigger recorded", "type", f.eventType)
	return false
}

// checkBtcMomentum сравнивает цену BTC сейчас и 5 минут назад
func (s *Sentinel) checkBtcMomentum(ctx context.Context) (*finding, error) {
	candles, err := s.signals.GetTickerHistory(ctx, "BTCUSDT", 6)
	if err != nil {
		return nil, err
	}
	if len(candles) < 6 {
		return nil, fmt.Errorf("not enough candles: %d", len(candles))
	}

	oldPrice := candles[0].Close
	newPrice := candles[len(candles)-1].Close
	change := utils.PercentChange(oldPrice, newPrice)

	BtcMomentum.Set(change)

	if change <= -s.thresholds.BtcDropPct {
		return &finding{
			eventType: models.RiskEventBtcDrop,
			severity:  models.SeverityError,
			reason:    fmt.Sprintf("BTC dropped %.2f%% in 5m", -change),
			details: map[string]interface{}{
				"old_price":  oldPrice,
				"new_price":  newPrice,
				"change_pct": change,
			},
		}, nil
	}
	return nil, nil
}

// checkGasPrice сравнивает цену газа с порогом
func (s *Sentinel) checkGasPrice(ctx context.Context) (*finding, error) {
	wei, err := s.signals.GetGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	GasPriceWei.Set(float64(wei))

	if wei > s.thresholds.GasSpikeWei {
		return &finding{
			eventType: models.RiskEventGasSpike,
			severity:  models.SeverityWarn,
			reason:    fmt.Sprintf("gas price %d wei above threshold %d", wei, s.thresholds.GasSpikeWei),
			details: map[string]interface{}{
				"wei":       wei,
				"threshold": s.thresholds.GasSpikeWei,
			},
		}, nil
	}
	return nil, nil
}

// checkVenueHealth опрашивает здоровье всех сконфигурированных венью
//
// Нездоровое венью - одно срабатывание api_down (первое найденное),
// остальные попадают в details.
func (s *Sentinel) checkVenueHealth(ctx context.Context) (*finding, error) {
	if len(s.thresholds.Venues) == 0 {
		return nil, nil
	}

	var down []string
	for _, v := range s.thresholds.Venues {
		h, err := s.signals.GetHealth(ctx, v)
		if err != nil {
			down = append(down, v)
			continue
		}
		if !h.Healthy {
			down = append(down, v)
		}
	}

	if len(down) == 0 {
		return nil, nil
	}

	return &finding{
		eventType: models.RiskEventAPIDown,
		severity:  models.SeverityError,
		reason:    fmt.Sprintf("venue unavailable: %s", down[0]),
		details: map[string]interface{}{
			"venues_down": down,
		},
	}, nil
}
