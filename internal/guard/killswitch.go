package guard

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tradeguard/internal/models"
	"tradeguard/pkg/utils"
)

// Notifier - интерфейс отправки уведомлений (fire-and-forget)
//
// Реализуется пакетом internal/notify. Ошибки доставки логируются
// нотификатором, никогда не возвращаются в риск-путь.
type Notifier interface {
	NotifyOps(message string)
	NotifyClient(clientID, subject, message string)
}

// Activation - зафиксированная активация kill switch
type Activation struct {
	Reason      string
	ClientID    string // пусто для глобальной активации
	ActivatedAt time.Time
}

// KillSwitch - аварийный рубильник торговли
//
// Два состояния: armed (неактивен) и active. Переход armed -> active
// выполняется атомарным CAS: при конкурентных вызовах Activate побочные
// эффекты (уведомления) выполняет ровно один из них. Деактивация -
// только явное действие оператора, никогда автоматическая.
type KillSwitch struct {
	// 0 = armed, 1 = active
	active int32

	mu         sync.RWMutex
	activation *Activation

	notifier Notifier
}

// NewKillSwitch создает kill switch в состоянии armed
func NewKillSwitch(notifier Notifier) *KillSwitch {
	return &KillSwitch{notifier: notifier}
}

// IsActive - дешевое синхронное чтение состояния
//
// Используется всеми триггерными путями (breaker, sentinel) чтобы
// не выполнять лишнюю работу при уже активном рубильнике.
func (k *KillSwitch) IsActive() bool {
	return atomic.LoadInt32(&k.active) == 1
}

// Activate переводит рубильник в active и выполняет побочные эффекты
//
// Возвращает true если этот вызов выполнил переход (и уведомления),
// false если рубильник уже был активен (no-op: состояние и побочные
// эффекты не меняются).
func (k *KillSwitch) Activate(reason, clientID string) bool {
	// Атомарный переход: только один из конкурентных вызовов выигрывает
	if !atomic.CompareAndSwapInt32(&k.active, 0, 1) {
		return false
	}

	activation := &Activation{
		Reason:      reason,
		ClientID:    clientID,
		ActivatedAt: time.Now(),
	}

	k.mu.Lock()
	k.activation = activation
	k.mu.Unlock()

	KillSwitchActive.Set(1)
	KillSwitchActivations.WithLabelValues(reason).Inc()

	utils.L().Errorw("kill switch ACTIVATED",
		"reason", reason,
		"client_id", clientID,
	)

	// Уведомления асинхронные (notifier - bounded queue), вызывающий
	// риск-путь не блокируется
	if k.notifier != nil {
		k.notifier.NotifyOps(fmt.Sprintf("KILL SWITCH activated: %s", reason))
		if clientID != "" {
			k.notifier.NotifyClient(clientID,
				"Trading halted",
				fmt.Sprintf("Trading was halted by the risk system: %s", reason),
			)
		}
	}

	return true
}

// Deactivate возвращает рубильник в armed (только оператор)
func (k *KillSwitch) Deactivate(operator string) bool {
	if !atomic.CompareAndSwapInt32(&k.active, 1, 0) {
		return false
	}

	k.mu.Lock()
	k.activation = nil
	k.mu.Unlock()

	KillSwitchActive.Set(0)

	utils.L().Warnw("kill switch deactivated", "operator", operator)

	if k.notifier != nil {
		k.notifier.NotifyOps(fmt.Sprintf("Kill switch deactivated by %s", operator))
	}

	return true
}

// LastActivation возвращает копию текущей активации (nil если armed)
func (k *KillSwitch) LastActivation() *Activation {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.activation == nil {
		return nil
	}
	activation := *k.activation
	return &activation
}

// Notification строит уведомление о состоянии для ws hub / API
func (k *KillSwitch) Notification() *models.Notification {
	activation := k.LastActivation()
	if activation == nil {
		return nil
	}
	return &models.Notification{
		Timestamp: activation.ActivatedAt,
		Type:      models.NotificationTypeKill,
		Severity:  models.SeverityError,
		ClientID:  activation.ClientID,
		Message:   activation.Reason,
	}
}
