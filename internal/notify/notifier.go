package notify

import (
	"context"
	"fmt"
	"time"

	"tradeguard/pkg/retry"
	"tradeguard/pkg/utils"
)

// Sender - транспорт доставки уведомлений (webhook, email, telegram)
type Sender interface {
	// SendOps доставляет сообщение операторам
	SendOps(ctx context.Context, message string) error
	// SendClient доставляет сообщение клиенту
	SendClient(ctx context.Context, clientID, subject, message string) error
}

// task - единица работы очереди доставки
type task struct {
	clientID string // пусто = операторское уведомление
	subject  string
	message  string
	queuedAt time.Time
}

// Notifier - асинхронная доставка уведомлений с ограниченной очередью
//
// NotifyOps/NotifyClient кладут задачу в bounded-канал без блокировки:
// при переполнении задача отбрасывается и считается (уведомления -
// best-effort, торговый путь никогда не ждет доставку).
//
// Ошибки доставки после retry попадают в инспектируемый канал Errors():
// тесты и операторский мониторинг видят каждую неудачу, вместо
// "отцепленной" горутины с проглоченной ошибкой.
type Notifier struct {
	sender Sender
	tasks  chan task
	errs   chan error

	sendTimeout time.Duration
	retryCfg    retry.Config

	done chan struct{}
}

// Config - настройки нотификатора
type Config struct {
	QueueSize   int           // емкость очереди (default 256)
	SendTimeout time.Duration // таймаут одной доставки (default 10s)
}

// NewNotifier создает нотификатор (запуск через Run)
func NewNotifier(sender Sender, cfg Config) *Notifier {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	return &Notifier{
		sender:      sender,
		tasks:       make(chan task, cfg.QueueSize),
		errs:        make(chan error, cfg.QueueSize),
		sendTimeout: cfg.SendTimeout,
		retryCfg:    retry.ConservativeConfig(),
		done:        make(chan struct{}),
	}
}

// NotifyOps ставит операторское уведомление в очередь (fire-and-forget)
func (n *Notifier) NotifyOps(message string) {
	n.enqueue(task{message: message, queuedAt: time.Now()})
}

// NotifyClient ставит клиентское уведомление в очередь (fire-and-forget)
func (n *Notifier) NotifyClient(clientID, subject, message string) {
	n.enqueue(task{clientID: clientID, subject: subject, message: message, queuedAt: time.Now()})
}

// enqueue - неблокирующая постановка с подсчетом потерь
func (n *Notifier) enqueue(t task) {
	select {
	case n.tasks <- t:
		QueueDepth.Set(float64(len(n.tasks)))
	default:
		Dropped.Inc()
		utils.L().Warnw("notification queue full, dropping",
			"client_id", t.clientID,
			"message", t.message,
		)
	}
}

// Run обрабатывает очередь до отмены контекста
//
// При отмене дообрабатывает уже поставленные задачи (drain), чтобы
// уведомление об активации kill switch не потерялось при shutdown.
func (n *Notifier) Run(ctx context.Context) {
	defer close(n.done)

	for {
		select {
		case <-ctx.Done():
			n.drain()
			return
		case t := <-n.tasks:
			n.deliver(t)
			QueueDepth.Set(float64(len(n.tasks)))
		}
	}
}

// drain дообрабатывает накопившиеся задачи без ожидания новых
func (n *Notifier) drain() {
	for {
		select {
		case t := <-n.tasks:
			n.deliver(t)
		default:
			return
		}
	}
}

// deliver выполняет доставку с retry; финальная ошибка уходит в errs
func (n *Notifier) deliver(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), n.sendTimeout)
	defer cancel()

	err := retry.Do(ctx, func() error {
		if t.clientID == "" {
			return n.sender.SendOps(ctx, t.message)
		}
		return n.sender.SendClient(ctx, t.clientID, t.subject, t.message)
	}, n.retryCfg)

	if err != nil {
		DeliveryFailures.Inc()
		utils.L().Errorw("notification delivery failed",
			"client_id", t.clientID,
			"error", err,
		)
		select {
		case n.errs <- fmt.Errorf("deliver to %q: %w", t.clientID, err):
		default:
			// Канал ошибок переполнен - остается лог и метрика
		}
		return
	}

	Delivered.Inc()
}

// Errors возвращает канал финальных ошибок доставки
func (n *Notifier) Errors() <-chan error {
	return n.errs
}

// Done закрывается когда Run завершил drain (для graceful shutdown)
func (n *Notifier) Done() <-chan struct{} {
	return n.done
}
