package guard

import (
	"fmt"
	"sync"
	"time"

	"tradeguard/internal/models"
	"tradeguard/pkg/utils"
)

// Store - контракт хранилища GuardState
//
// Реализуется repository.GuardRepository.
type Store interface {
	Load(clientID string) (*models.GuardState, error)
	Save(clientID string, state *models.GuardState) error
}

// Limits - лимиты circuit breaker (дефолты деплоя, переопределяются
// per-client через колонки clients)
type Limits struct {
	// Максимальная накопленная просадка клиента в USD
	MaxGlobalDrawdownUsd float64
	// Максимальный убыток одного запуска стратегии в USD
	MaxRunLossUsd float64
	// Количество ошибок API за 60 секунд, ведущее к остановке
	MaxAPIErrorsPerMin int
	// Порог устаревания рыночных данных
	StaleTicker time.Duration
	// Порог устаревания, заявленный стриминговым слоем
	// (действует min от двух порогов)
	StreamStaleTicker time.Duration
}

// apiErrorWindow - ширина скользящего окна ошибок API
const apiErrorWindow = 60 * time.Second

// Breaker - circuit breaker одного клиента
//
// Единственный источник истины для вопроса "торговля клиента в рамках
// риск-лимитов". Эксклюзивно владеет GuardState клиента: все мутации
// только через методы этого типа, под одним mutex.
//
// Персистентность: каждая мутация сохраняет полное состояние в Store.
// Ошибка записи логируется и считается, но НЕ блокирует принятое
// in-memory решение.
type Breaker struct {
	clientID string
	store    Store
	kill     *KillSwitch
	notifier Notifier
	limits   Limits

	// strictPersist эскалирует ошибки записи в уведомление операторам
	strictPersist bool

	mu          sync.Mutex
	state       *models.GuardState
	initialized bool

	// clock подменяется в тестах
	clock func() time.Time
}

// NewBreaker создает circuit breaker для клиента
func NewBreaker(clientID string, store Store, kill *KillSwitch, notifier Notifier, limits Limits) *Breaker {
	return &Breaker{
		clientID: clientID,
		store:    store,
		kill:     kill,
		notifier: notifier,
		limits:   limits,
		clock:    time.Now,
	}
}

// SetStrictPersist включает эскалацию ошибок записи состояния
func (b *Breaker) SetStrictPersist(strict bool) {
	b.mu.Lock()
	b.strictPersist = strict
	b.mu.Unlock()
}

// Initialize лениво загружает GuardState из хранилища
//
// Идемпотентна: повторные вызовы после успешной загрузки - no-op.
func (b *Breaker) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ensureLoaded()
}

// ensureLoaded загружает состояние если еще не загружено (под mutex)
func (b *Breaker) ensureLoaded() error {
	if b.initialized {
		return nil
	}

	state, err := b.store.Load(b.clientID)
	if err != nil {
		return fmt.Errorf("load guard state for %s: %w", b.clientID, err)
	}

	b.state = state
	b.initialized = true
	GlobalPnl.WithLabelValues(b.clientID).Set(state.GlobalPnl)
	return nil
}

// RecordFill учитывает исполнение ордера
//
// buy: инвентарь и его стоимость растут на notional + fee.
// sell: реализуется PNL по средневзвешенной цене, после чего проверяются
// оба лимита (drawdown и run loss) НЕЗАВИСИМО - каждый пробитый лимит
// активирует kill switch и шлет уведомление клиенту.
func (b *Breaker) RecordFill(fill models.Fill) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLoaded(); err != nil {
		return err
	}

	switch fill.Side {
	case models.SideBuy:
		b.state.InventoryBase += fill.Amount
		b.state.InventoryCost += fill.Price*fill.Amount + fill.Fee

	case models.SideSell:
		if b.state.InventoryBase <= 0 {
			return fmt.Errorf("sell fill for %s with empty inventory", b.clientID)
		}
		if fill.Amount > b.state.InventoryBase {
			return fmt.Errorf("sell amount %.8f exceeds inventory %.8f", fill.Amount, b.state.InventoryBase)
		}

		avgCost := b.state.InventoryCost / b.state.InventoryBase
		realized := (fill.Price-avgCost)*fill.Amount - fill.Fee

		b.state.GlobalPnl += realized
		b.state.RunPnl += realized

		// Инвентарь уменьшается пропорционально, средневзвешенная
		// цена остатка не меняется
		b.state.InventoryBase -= fill.Amount
		b.state.InventoryCost -= avgCost * fill.Amount
		if b.state.InventoryBase < 1e-12 {
			b.state.InventoryBase = 0
			b.state.InventoryCost = 0
		}

		b.checkDrawdownLocked()

	default:
		return fmt.Errorf("unknown fill side %q", fill.Side)
	}

	FillsRecorded.WithLabelValues(b.clientID, fill.Side).Inc()
	GlobalPnl.WithLabelValues(b.clientID).Set(b.state.GlobalPnl)

	b.persistLocked()
	return nil
}

// checkDrawdownLocked проверяет оба PNL-лимита (вызывается под mutex)
func (b *Breaker) checkDrawdownLocked() {
	if b.limits.MaxGlobalDrawdownUsd > 0 && b.state.GlobalPnl <= -b.limits.MaxGlobalDrawdownUsd {
		BreachesTotal.WithLabelValues(b.clientID, "drawdown").Inc()
		b.trip(models.NotificationTypeDrawdown,
			fmt.Sprintf("global drawdown limit breached: pnl %.2f USD, limit -%.2f USD",
				utils.RoundUsd(b.state.GlobalPnl), b.limits.MaxGlobalDrawdownUsd))
	}

	if b.limits.MaxRunLossUsd > 0 && b.state.RunPnl <= -b.limits.MaxRunLossUsd {
		BreachesTotal.WithLabelValues(b.clientID, "run_loss").Inc()
		b.trip(models.NotificationTypeRunLoss,
			fmt.Sprintf("run loss limit breached: run pnl %.2f USD, limit -%.2f USD",
				utils.RoundUsd(b.state.RunPnl), b.limits.MaxRunLossUsd))
	}
}

// RecordAPIError учитывает ошибку внешнего API
//
// Скользящее окно 60s; при достижении MaxAPIErrorsPerMin - kill switch.
func (b *Breaker) RecordAPIError(errType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLoaded(); err != nil {
		return err
	}

	now := b.clock()
	b.state.APIErrorTimestamps = append(b.state.APIErrorTimestamps, now)
	b.state.APIErrorTimestamps = utils.PruneOlderThan(b.state.APIErrorTimestamps, now.Add(-apiErrorWindow))

	windowSize := len(b.state.APIErrorTimestamps)
	APIErrorWindow.WithLabelValues(b.clientID).Set(float64(windowSize))

	if b.limits.MaxAPIErrorsPerMin > 0 && windowSize >= b.limits.MaxAPIErrorsPerMin {
		BreachesTotal.WithLabelValues(b.clientID, "api_errors").Inc()
		b.trip(models.NotificationTypeAPIErrors,
			fmt.Sprintf("API error rate breached: %d errors/min (type %s), limit %d",
				windowSize, errType, b.limits.MaxAPIErrorsPerMin))
	}

	b.persistLocked()
	return nil
}

// RecordTicker фиксирует подтверждение рыночных данных
//
// Сам по себе ничего не триггерит - только обновляет поля для
// последующего CheckStaleData.
func (b *Breaker) RecordTicker(hb models.TickerHeartbeat) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLoaded(); err != nil {
		return err
	}

	now := b.clock()
	ts := hb.Timestamp
	b.state.LastTickerTimestamp = &ts
	b.state.LastTickerRecordedAt = &now
	b.state.LastTickerSource = hb.Source
	b.state.LastTickerLatencyMs = hb.LatencyMs

	b.persistLocked()
	return nil
}

// CheckStaleData проверяет устаревание рыночных данных
//
// Вызывается внешним таймером (например, раз в 60s). Порог - минимум
// из лимита деплоя и порога стримингового слоя. Если данных еще не
// было (LastTickerRecordedAt == nil), проверка пропускается: воркер
// мог только что стартовать.
func (b *Breaker) CheckStaleData() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLoaded(); err != nil {
		return err
	}

	if b.state.LastTickerRecordedAt == nil {
		return nil
	}

	threshold := b.limits.StaleTicker
	if b.limits.StreamStaleTicker > 0 && (threshold == 0 || b.limits.StreamStaleTicker < threshold) {
		threshold = b.limits.StreamStaleTicker
	}
	if threshold <= 0 {
		return nil
	}

	age := b.clock().Sub(*b.state.LastTickerRecordedAt)
	if age > threshold {
		BreachesTotal.WithLabelValues(b.clientID, "stale_data").Inc()
		b.trip(models.NotificationTypeStaleData,
			fmt.Sprintf("market data stale for %s (threshold %s, source %s)",
				age.Truncate(time.Millisecond), threshold, b.state.LastTickerSource))
	}

	return nil
}

// ResetRun обнуляет состояние запуска перед новым стартом стратегии
//
// Сбрасывает runPnl и поля staleness; globalPnl и инвентарь
// переживают запуски (и рестарты процесса).
func (b *Breaker) ResetRun() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLoaded(); err != nil {
		return err
	}

	b.state.RunPnl = 0
	b.state.LastTickerTimestamp = nil
	b.state.LastTickerRecordedAt = nil
	b.state.LastTickerSource = ""
	b.state.LastTickerLatencyMs = 0

	b.persistLocked()
	return nil
}

// Snapshot возвращает копию текущего состояния (для API/heartbeat)
func (b *Breaker) Snapshot() (*models.GuardState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLoaded(); err != nil {
		return nil, err
	}

	snapshot := *b.state
	snapshot.APIErrorTimestamps = append([]time.Time(nil), b.state.APIErrorTimestamps...)
	return &snapshot, nil
}

// trip активирует kill switch и уведомляет клиента
//
// Уведомление клиенту шлется независимо от того, выиграл ли этот
// вызов активацию: клиент должен узнать о каждом пробитом лимите.
func (b *Breaker) trip(notifType, reason string) {
	if !b.kill.IsActive() {
		b.kill.Activate(reason, b.clientID)
	}

	if b.notifier != nil {
		b.notifier.NotifyClient(b.clientID, notifType, reason)
	}
}

// persistLocked сохраняет состояние, не позволяя ошибке записи
// отменить принятое решение (вызывается под mutex)
func (b *Breaker) persistLocked() {
	if err := b.store.Save(b.clientID, b.state); err != nil {
		StateSaveFailures.WithLabelValues(b.clientID).Inc()
		utils.L().Errorw("guard state persistence failed, in-memory decision stands",
			"client_id", b.clientID,
			"error", err,
		)
		if b.strictPersist && b.notifier != nil {
			b.notifier.NotifyOps(fmt.Sprintf(
				"guard state save failed for client %s: %v (decisions remain in-memory only)",
				b.clientID, err))
		}
	}
}
