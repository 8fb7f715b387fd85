// Package worker реализует оркестратор воркера клиента: потребление
// job строго по одному, гейты биллинга/паузы/kill, heartbeat.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"tradeguard/internal/guard"
	"tradeguard/internal/models"
	"tradeguard/internal/policy"
	"tradeguard/internal/repository"
	"tradeguard/internal/strategy"
	"tradeguard/pkg/crypto"
	"tradeguard/pkg/utils"
)

// ============================================================
// Контракты хранилищ (реализуются пакетом repository)
// ============================================================

// ClientStore - чтение состояния клиента (перед каждым job)
type ClientStore interface {
	GetByID(id string) (*models.ClientRecord, error)
	SetPaused(id string, paused bool) error
	GetStrategy(clientID, strategyID string) (*models.ClientStrategy, error)
}

// JobQueue - очередь job клиента
type JobQueue interface {
	DequeueForClient(clientID string) (*models.Job, error)
	MarkDone(jobID int) error
	MarkFailed(jobID int, jobErr error) error
	QueueDepth(clientID string) (int, error)
}

// WorkerRegistry - реестр воркеров (heartbeat)
type WorkerRegistry interface {
	Upsert(workerID, clientID, status string, meta map[string]interface{}) error
	Heartbeat(workerID, status string, meta map[string]interface{}) error
}

// ============================================================
// Оркестратор
// ============================================================

// Config - настройки оркестратора
type Config struct {
	PollInterval      time.Duration // пауза при пустой очереди (default 2s)
	HeartbeatInterval time.Duration // период heartbeat (default 15s)

	// EncryptionKey - ключ расшифровки API ключей клиента (live режим)
	EncryptionKey []byte
}

// Orchestrator - долгоживущий воркер одного клиента
//
// Конкурентность ровно 1: два запуска стратегии одного клиента
// никогда не перекрываются. Heartbeat работает параллельно циклу job.
type Orchestrator struct {
	workerID string
	clientID string

	clients   ClientStore
	jobs      JobQueue
	workers   WorkerRegistry
	breaker   *guard.Breaker
	kill      *guard.KillSwitch
	catalog   *strategy.Catalog
	runner    strategy.Runner
	approvals *policy.ApprovalPolicy
	anomalies *policy.AnomalyMonitor

	cfg Config

	mu           sync.Mutex
	status       string
	lastError    string
	shuttingDown bool
	autoPaused   bool // пауза выставлена нами из-за биллинга

	finalFlush sync.Once
	clock      func() time.Time
}

// Deps - зависимости оркестратора
type Deps struct {
	Clients   ClientStore
	Jobs      JobQueue
	Workers   WorkerRegistry
	Breaker   *guard.Breaker
	Kill      *guard.KillSwitch
	Catalog   *strategy.Catalog
	Runner    strategy.Runner
	Approvals *policy.ApprovalPolicy
	Anomalies *policy.AnomalyMonitor
}

// NewOrchestrator создает оркестратор для клиента
func NewOrchestrator(clientID string, deps Deps, cfg Config) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}

	return &Orchestrator{
		workerID:  fmt.Sprintf("worker-%s", clientID),
		clientID:  clientID,
		clients:   deps.Clients,
		jobs:      deps.Jobs,
		workers:   deps.Workers,
		breaker:   deps.Breaker,
		kill:      deps.Kill,
		catalog:   deps.Catalog,
		runner:    deps.Runner,
		approvals: deps.Approvals,
		anomalies: deps.Anomalies,
		cfg:       cfg,
		status:    models.WorkerStarting,
		clock:     time.Now,
	}
}

// Run запускает цикл воркера до отмены контекста или shutdown
func (o *Orchestrator) Run(ctx context.Context) {
	if err := o.workers.Upsert(o.workerID, o.clientID, models.WorkerStarting, o.meta(0)); err != nil {
		utils.L().Errorw("worker registration failed", "worker_id", o.workerID, "error", err)
	}
	setStatusGauge(o.clientID, models.WorkerStarting)

	hbCtx, hbCancel := context.WithCancel(context.Background())
	var hbDone sync.WaitGroup
	hbDone.Add(1)
	go func() {
		defer hbDone.Done()
		o.heartbeatLoop(hbCtx)
	}()

	utils.L().Infow("worker started", "worker_id", o.workerID, "client_id", o.clientID)

	o.jobLoop(ctx)

	// Heartbeat останавливается после цикла job: финальный flush
	// со статусом stopped - точка фиксации shutdown
	hbCancel()
	hbDone.Wait()
	o.flushFinal()
}

// jobLoop потребляет job по одному до shutdown
func (o *Orchestrator) jobLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			o.beginShutdown("context canceled")
			return
		default:
		}

		if o.isShuttingDown() {
			return
		}

		job, err := o.jobs.DequeueForClient(o.clientID)
		if err != nil {
			if !errors.Is(err, repository.ErrNoJobs) {
				utils.L().Errorw("job dequeue failed", "client_id", o.clientID, "error", err)
			}
			select {
			case <-ctx.Done():
			case <-time.After(o.cfg.PollInterval):
			}
			continue
		}

		o.processJob(ctx, job)
	}
}

// processJob выполняет один job с гейтами и учетом ошибок
//
// Ошибка job ловится здесь: считается, логируется, переводит воркер
// в error, но не роняет процесс и не блокирует следующие job.
func (o *Orchestrator) processJob(ctx context.Context, job *models.Job) {
	if err := job.Validate(); err != nil {
		o.failJob(job, err)
		return
	}

	client, err := o.clients.GetByID(o.clientID)
	if err != nil {
		o.failJob(job, fmt.Errorf("reload client: %w", err))
		return
	}

	// Kill запрошен: терминальная остановка, дальше job не обрабатываются
	if client.KillRequested {
		utils.L().Warnw("kill requested, worker stopping", "client_id", o.clientID)
		o.beginShutdown("kill requested")
		o.ackSkip(job, "kill_requested")
		return
	}

	// Гейт биллинга: неактивный биллинг = принудительная пауза,
	// неизвестный статус трактуется как неактивный
	now := o.clock()
	if !client.BillingActive(now) {
		if !client.IsPaused {
			if err := o.clients.SetPaused(o.clientID, true); err != nil {
				utils.L().Errorw("failed to force-pause client", "client_id", o.clientID, "error", err)
			}
		}
		o.setAutoPaused(true)
		o.transition(models.WorkerPaused)
		utils.L().Warnw("billing inactive, client paused",
			"client_id", o.clientID,
			"billing_status", client.BillingStatus,
		)
		o.ackSkip(job, "billing")
		return
	}

	// Биллинг восстановился после автопаузы: снимаем ее сами
	if client.IsPaused && o.isAutoPaused() {
		if err := o.clients.SetPaused(o.clientID, false); err != nil {
			utils.L().Errorw("failed to auto-unpause client", "client_id", o.clientID, "error", err)
			o.ackSkip(job, "billing")
			return
		}
		o.setAutoPaused(false)
		client.IsPaused = false
		utils.L().Infow("billing recovered, client auto-unpaused", "client_id", o.clientID)
	}

	// Ручная пауза: пропускаем все кроме resume и shutdown
	if client.IsPaused && job.Type != models.JobResume && job.Type != models.JobShutdown {
		o.transition(models.WorkerPaused)
		o.ackSkip(job, "paused")
		return
	}

	// Глобальный kill switch: запуски стратегий не стартуют
	if job.Type.IsRun() && o.kill.IsActive() {
		utils.L().Warnw("kill switch active, run skipped", "client_id", o.clientID, "job_id", job.ID)
		o.ackSkip(job, "kill_switch")
		return
	}

	if err := o.dispatch(ctx, client, job); err != nil {
		var approvalErr *policy.ApprovalRequiredError
		if errors.As(err, &approvalErr) {
			// Политика, не сбой: job закрывается с ошибкой-маркером,
			// сделка видна через запись согласования
			utils.L().Infow("job blocked pending approval",
				"client_id", o.clientID,
				"job_id", job.ID,
				"approval_id", approvalErr.Record.ID,
			)
			if mErr := o.jobs.MarkFailed(job.ID, err); mErr != nil {
				utils.L().Errorw("failed to mark job failed", "job_id", job.ID, "error", mErr)
			}
			return
		}
		o.failJob(job, err)
		return
	}

	if err := o.jobs.MarkDone(job.ID); err != nil {
		utils.L().Errorw("failed to mark job done", "job_id", job.ID, "error", err)
	}
	JobsProcessed.WithLabelValues(o.clientID, string(job.Type)).Inc()

	// Успешный job восстанавливает воркер после error
	o.clearError()
	if !o.isShuttingDown() && o.currentStatus() != models.WorkerPaused {
		o.transition(models.WorkerRunning)
	}
}

// dispatch - exhaustive switch по закрытому набору типов job
func (o *Orchestrator) dispatch(ctx context.Context, client *models.ClientRecord, job *models.Job) error {
	switch job.Type {
	case models.JobPause:
		if err := o.clients.SetPaused(o.clientID, true); err != nil {
			return fmt.Errorf("pause client: %w", err)
		}
		o.setAutoPaused(false)
		o.transition(models.WorkerPaused)
		utils.L().Infow("client paused", "client_id", o.clientID, "actor", job.Payload.Actor)
		return nil

	case models.JobResume:
		if err := o.clients.SetPaused(o.clientID, false); err != nil {
			return fmt.Errorf("resume client: %w", err)
		}
		o.setAutoPaused(false)
		o.transition(models.WorkerRunning)
		utils.L().Infow("client resumed", "client_id", o.clientID, "actor", job.Payload.Actor)
		return nil

	case models.JobShutdown:
		o.beginShutdown("shutdown job")
		return nil

	case models.JobRunStrategy, models.JobRunGrid:
		return o.runStrategyJob(ctx, client, job)
	}

	// Недостижимо после Validate, но switch обязан быть полным
	return fmt.Errorf("unhandled job type %q", job.Type)
}

// runStrategyJob резолвит стратегию, проверяет план/режим/вес,
// прогоняет политики и запускает исполнителя
func (o *Orchestrator) runStrategyJob(ctx context.Context, client *models.ClientRecord, job *models.Job) error {
	def, err := o.catalog.Get(job.Payload.StrategyID)
	if err != nil {
		return err
	}

	if !def.AllowedForPlan(client.PlanID) {
		return fmt.Errorf("strategy %s not allowed for plan %s", def.ID, client.PlanID)
	}

	mode := job.Payload.RunMode
	if mode == "" {
		mode = models.RunModePaper
	}
	if !def.SupportsMode(mode) {
		return fmt.Errorf("strategy %s does not support %s mode", def.ID, mode)
	}

	// Аллокация портфеля: вес <= 0 или выключенная запись = тихий пропуск
	weight := 1.0
	cs, err := o.clients.GetStrategy(o.clientID, def.ID)
	switch {
	case err == nil:
		if !cs.Enabled || cs.Weight <= 0 {
			utils.L().Infow("strategy allocation disabled, run skipped",
				"client_id", o.clientID,
				"strategy_id", def.ID,
				"weight", cs.Weight,
			)
			return nil
		}
		if cs.RunMode != "" && cs.RunMode != mode {
			return fmt.Errorf("run mode %s not allowed for client allocation (%s)", mode, cs.RunMode)
		}
		weight = cs.Weight
	case errors.Is(err, repository.ErrStrategyNotFound):
		// Аллокация не настроена: полный вес
	default:
		return fmt.Errorf("resolve allocation: %w", err)
	}

	config := def.MergeConfig(job.Payload.Config)

	// Гейт согласования крупных сделок
	if notional, ok := floatFromConfig(config, "notional_usd"); ok {
		correlationID, _ := config["correlation_id"].(string)
		if correlationID == "" {
			correlationID = fmt.Sprintf("job-%d", job.ID)
		}
		if err := o.approvals.EnsureApproved(policy.ApprovalInput{
			ClientID:      o.clientID,
			StrategyID:    def.ID,
			CorrelationID: correlationID,
			AmountUsd:     notional,
			RequestedBy:   job.Payload.Actor,
			Meta:          map[string]interface{}{"pair": job.Payload.Pair, "run_mode": mode},
		}); err != nil {
			return err
		}
	}

	// Монитор аномалий: только аудит, никогда не блокирует запуск
	o.observeAnomalies(def.ID, config)

	// Новый run: runPnl и staleness с чистого листа,
	// globalPnl и инвентарь переживают run
	if err := o.breaker.ResetRun(); err != nil {
		utils.L().Errorw("run reset failed", "client_id", o.clientID, "error", err)
	}

	input := strategy.RunInput{
		ClientID: o.clientID,
		Strategy: def,
		Pair:     job.Payload.Pair,
		RunMode:  mode,
		Weight:   weight,
		Config:   config,
		Risk:     o.breaker,
	}

	// Live режим требует расшифрованных ключей биржи
	if mode == models.RunModeLive {
		creds, err := o.decryptCredentials(client)
		if err != nil {
			return fmt.Errorf("decrypt credentials: %w", err)
		}
		input.Credentials = creds
	}

	utils.L().Infow("strategy run starting",
		"client_id", o.clientID,
		"strategy_id", def.ID,
		"run_mode", mode,
		"weight", weight,
	)

	return o.runner.Run(ctx, input)
}

// observeAnomalies собирает контекст сделки из конфига запуска
func (o *Orchestrator) observeAnomalies(strategyID string, config map[string]interface{}) {
	exposure, _ := floatFromConfig(config, "planned_exposure_usd")
	size, _ := floatFromConfig(config, "trade_size_usd")
	baseline, _ := floatFromConfig(config, "baseline_size_usd")
	regime, _ := floatFromConfig(config, "regime_score")

	o.anomalies.Observe(policy.TradeContext{
		ClientID:        o.clientID,
		StrategyID:      strategyID,
		PlannedExposure: exposure,
		TradeSizeUsd:    size,
		BaselineSizeUsd: baseline,
		RegimeScore:     regime,
	})
}

// decryptCredentials расшифровывает API ключи клиента
func (o *Orchestrator) decryptCredentials(client *models.ClientRecord) (strategy.Credentials, error) {
	if client.APIKeyEncrypted == "" || client.APISecretEncrypted == "" {
		return strategy.Credentials{}, errors.New("client has no exchange credentials")
	}

	apiKey, err := crypto.Decrypt(client.APIKeyEncrypted, o.cfg.EncryptionKey)
	if err != nil {
		return strategy.Credentials{}, err
	}
	apiSecret, err := crypto.Decrypt(client.APISecretEncrypted, o.cfg.EncryptionKey)
	if err != nil {
		return strategy.Credentials{}, err
	}

	return strategy.Credentials{APIKey: apiKey, APISecret: apiSecret}, nil
}

// ============================================================
// Heartbeat
// ============================================================

// heartbeatLoop шлет heartbeat с фиксированным интервалом
func (o *Orchestrator) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.flushHeartbeat()
		}
	}
}

// flushHeartbeat пересчитывает отчетный статус и пишет его в реестр
//
// При shutdown периодический heartbeat молчит: статус stopped пишет
// только финальный flush, ровно один раз.
func (o *Orchestrator) flushHeartbeat() {
	if o.isShuttingDown() {
		return
	}

	depth, err := o.jobs.QueueDepth(o.clientID)
	if err != nil {
		utils.L().Warnw("queue depth read failed", "client_id", o.clientID, "error", err)
		depth = -1
	} else {
		QueueDepthGauge.WithLabelValues(o.clientID).Set(float64(depth))
	}

	status := o.reportableStatus()
	if err := o.workers.Heartbeat(o.workerID, status, o.meta(depth)); err != nil {
		utils.L().Warnw("heartbeat write failed", "worker_id", o.workerID, "error", err)
		return
	}
	Heartbeats.WithLabelValues(o.clientID).Inc()
}

// flushFinal - единственный финальный flush со статусом stopped
func (o *Orchestrator) flushFinal() {
	o.finalFlush.Do(func() {
		o.mu.Lock()
		o.status = models.WorkerStopped
		o.mu.Unlock()
		setStatusGauge(o.clientID, models.WorkerStopped)

		depth, err := o.jobs.QueueDepth(o.clientID)
		if err != nil {
			depth = -1
		}
		if err := o.workers.Heartbeat(o.workerID, models.WorkerStopped, o.meta(depth)); err != nil {
			utils.L().Errorw("final heartbeat flush failed", "worker_id", o.workerID, "error", err)
			return
		}
		utils.L().Infow("worker stopped", "worker_id", o.workerID, "client_id", o.clientID)
	})
}

// reportableStatus - приоритет stopped > error > paused > running
func (o *Orchestrator) reportableStatus() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case o.shuttingDown || o.status == models.WorkerStopped:
		return models.WorkerStopped
	case o.status == models.WorkerError:
		return models.WorkerError
	case o.status == models.WorkerPaused:
		return models.WorkerPaused
	case o.status == models.WorkerStarting:
		return models.WorkerStarting
	default:
		return models.WorkerRunning
	}
}

// meta собирает метаданные heartbeat
func (o *Orchestrator) meta(queueDepth int) map[string]interface{} {
	o.mu.Lock()
	lastError := o.lastError
	o.mu.Unlock()

	m := map[string]interface{}{
		"pid":         os.Getpid(),
		"queue_depth": queueDepth,
	}
	if lastError != "" {
		m["last_error"] = lastError
	}
	return m
}

// ============================================================
// Внутреннее состояние
// ============================================================

// failJob фиксирует сбой job: счетчик, лог, статус error
func (o *Orchestrator) failJob(job *models.Job, err error) {
	JobFailures.WithLabelValues(o.clientID).Inc()
	utils.L().Errorw("job failed",
		"client_id", o.clientID,
		"job_id", job.ID,
		"job_type", job.Type,
		"error", err,
	)

	o.mu.Lock()
	o.lastError = err.Error()
	o.mu.Unlock()
	o.transition(models.WorkerError)

	if mErr := o.jobs.MarkFailed(job.ID, err); mErr != nil {
		utils.L().Errorw("failed to mark job failed", "job_id", job.ID, "error", mErr)
	}
}

// ackSkip закрывает пропущенный гейтом job без ошибки
func (o *Orchestrator) ackSkip(job *models.Job, reason string) {
	JobsSkipped.WithLabelValues(o.clientID, reason).Inc()
	if err := o.jobs.MarkDone(job.ID); err != nil {
		utils.L().Errorw("failed to ack skipped job", "job_id", job.ID, "error", err)
	}
}

// transition переводит машину состояний с проверкой допустимости
func (o *Orchestrator) transition(to string) {
	o.mu.Lock()
	from := o.status
	if !CanTransition(from, to) {
		o.mu.Unlock()
		utils.L().Warnw("worker transition rejected", "from", from, "to", to)
		return
	}
	o.status = to
	o.mu.Unlock()

	if from != to {
		setStatusGauge(o.clientID, to)
	}
}

func (o *Orchestrator) beginShutdown(reason string) {
	o.mu.Lock()
	already := o.shuttingDown
	o.shuttingDown = true
	o.mu.Unlock()

	if !already {
		utils.L().Infow("worker shutting down", "worker_id", o.workerID, "reason", reason)
		o.transition(models.WorkerStopped)
	}
}

func (o *Orchestrator) isShuttingDown() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.shuttingDown
}

func (o *Orchestrator) currentStatus() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Orchestrator) clearError() {
	o.mu.Lock()
	o.lastError = ""
	o.mu.Unlock()
}

func (o *Orchestrator) setAutoPaused(v bool) {
	o.mu.Lock()
	o.autoPaused = v
	o.mu.Unlock()
}

func (o *Orchestrator) isAutoPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.autoPaused
}

// floatFromConfig достает число из конфига (JSON дает float64)
func floatFromConfig(config map[string]interface{}, key string) (float64, bool) {
	v, ok := config[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
