package guard

import (
	"context"
	"sync"
	"time"

	"tradeguard/internal/models"
	"tradeguard/pkg/utils"
)

// Registry - фабрика и реестр circuit breaker'ов
//
// Один экземпляр на процесс, создается в main и передается по ссылке
// (никаких скрытых синглтонов на соединение). Breaker клиента создается
// при первом обращении и переиспользуется: пара (breaker, store)
// стабильна на все время жизни процесса.
type Registry struct {
	store    Store
	kill     *KillSwitch
	notifier Notifier
	defaults Limits

	strictPersist bool

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry создает реестр с дефолтными лимитами деплоя
func NewRegistry(store Store, kill *KillSwitch, notifier Notifier, defaults Limits, strictPersist bool) *Registry {
	return &Registry{
		store:         store,
		kill:          kill,
		notifier:      notifier,
		defaults:      defaults,
		strictPersist: strictPersist,
		breakers:      make(map[string]*Breaker),
	}
}

// ForClient возвращает breaker клиента, применяя переопределения
// лимитов из записи клиента
//
// Потокобезопасно; для одного clientID всегда возвращается один и
// тот же экземпляр.
func (r *Registry) ForClient(client *models.ClientRecord) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[client.ID]; ok {
		return b
	}

	limits := r.defaults
	if client.MaxGlobalDrawdownUsd != nil {
		limits.MaxGlobalDrawdownUsd = *client.MaxGlobalDrawdownUsd
	}
	if client.MaxRunLossUsd != nil {
		limits.MaxRunLossUsd = *client.MaxRunLossUsd
	}

	b := NewBreaker(client.ID, r.store, r.kill, r.notifier, limits)
	b.SetStrictPersist(r.strictPersist)
	r.breakers[client.ID] = b
	return b
}

// KillSwitch возвращает общий kill switch реестра
func (r *Registry) KillSwitch() *KillSwitch {
	return r.kill
}

// snapshotBreakers копирует текущий набор breaker'ов под mutex
func (r *Registry) snapshotBreakers() []*Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b)
	}
	return out
}

// RunStaleChecks периодически проверяет устаревание рыночных данных
// у всех созданных breaker'ов
//
// Отдельная периодическая задача: orchestrator'ы job-ориентированы и
// между job устаревание бы не заметили. Ошибка проверки одного клиента
// логируется и не мешает остальным.
func (r *Registry) RunStaleChecks(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, b := range r.snapshotBreakers() {
				if err := b.CheckStaleData(); err != nil {
					utils.L().Warnw("stale data check failed",
						"client_id", b.clientID,
						"error", err,
					)
				}
			}
		}
	}
}
