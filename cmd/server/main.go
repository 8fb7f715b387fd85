package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tradeguard/internal/api"
	"tradeguard/internal/config"
	"tradeguard/internal/guard"
	"tradeguard/internal/notify"
	"tradeguard/internal/policy"
	"tradeguard/internal/repository"
	"tradeguard/internal/sentinel"
	"tradeguard/internal/strategy"
	"tradeguard/internal/venue"
	"tradeguard/internal/websocket"
	"tradeguard/internal/worker"
	"tradeguard/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	utils.InitLogger(utils.LoggerConfig{
		Level:  cfg.Logging.Level,
		Output: cfg.Logging.Output,
		File:   cfg.Logging.File,
	})
	defer utils.Sync()

	logger := utils.L()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatalw("failed to connect to database", "error", err, "dsn", cfg.Database.DSNWithoutPassword())
	}
	defer db.Close()

	logger.Infow("connected to database", "dsn", cfg.Database.DSNWithoutPassword())

	// Инициализация репозиториев
	clientRepo := repository.NewClientRepository(db)
	jobRepo := repository.NewJobRepository(db)
	workerRepo := repository.NewWorkerRepository(db)
	guardRepo := repository.NewGuardRepository(db)
	riskEventRepo := repository.NewRiskEventRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Корневой контекст фоновых подсистем
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Нотификатор: webhook в проде, лог в dev
	var sender notify.Sender
	if cfg.Notify.OpsWebhookURL != "" {
		sender = notify.NewWebhookSender(cfg.Notify.OpsWebhookURL, cfg.Notify.ClientWebhookURL)
	} else {
		sender = notify.LogSender{}
		logger.Warnw("notify webhooks not configured, using log sender")
	}

	notifier := notify.NewNotifier(sender, notify.Config{
		QueueSize:   cfg.Notify.QueueSize,
		SendTimeout: cfg.Notify.SendTimeout,
	})
	go notifier.Run(ctx)
	go func() {
		for err := range notifier.Errors() {
			logger.Errorw("notification permanently failed", "error", err)
		}
	}()

	// Kill switch и реестр circuit breakers
	kill := guard.NewKillSwitch(notifier)
	registry := guard.NewRegistry(guardRepo, kill, notifier, guard.Limits{
		MaxGlobalDrawdownUsd: cfg.Guard.MaxGlobalDrawdownUsd,
		MaxRunLossUsd:        cfg.Guard.MaxRunLossUsd,
		MaxAPIErrorsPerMin:   cfg.Guard.MaxAPIErrorsPerMin,
		StaleTicker:          cfg.Guard.StaleTicker,
		StreamStaleTicker:    cfg.Guard.StreamStaleTicker,
	}, cfg.Guard.StrictPersist)
	go registry.RunStaleChecks(ctx, time.Minute)

	// Клиент рыночных данных
	venueCfg := venue.DefaultConfig(cfg.Venue.BaseURL)
	venueCfg.RequestsPerSecond = cfg.Venue.RequestsPerSecond
	venueClient := venue.NewClient(venueCfg)
	defer venueClient.Close()

	// Глобальный sentinel рыночных условий
	sent := sentinel.New(venueClient, riskEventRepo, kill, notifier, sentinel.Thresholds{
		BtcDropPct:  cfg.Sentinel.BtcDropPct,
		GasSpikeWei: cfg.Sentinel.GasSpikeWei,
		Venues:      cfg.Sentinel.Venues,
		Cooldown:    cfg.Sentinel.Cooldown,
		Interval:    cfg.Sentinel.Interval,
		Retention:   cfg.Sentinel.Retention,
	})
	// Cooldown переживает рестарт через журнал риск-событий
	if err := sent.Seed(); err != nil {
		logger.Warnw("sentinel cooldown seed failed, starting cold", "error", err)
	}
	go sent.Run(ctx)

	// Политики согласования и аномалий
	approvals := policy.NewApprovalPolicy(approvalRepo, auditRepo, notifier, cfg.Approval.ThresholdUsd)
	anomalies := policy.NewAnomalyMonitor(auditRepo, policy.DefaultAnomalyThresholds())

	// Каталог стратегий и исполнитель
	catalog := strategy.NewCatalog()
	runner := strategy.NewPaperRunner(venueClient)

	// WebSocket hub операторского портала
	hub := websocket.NewHub()
	go hub.Run(ctx)
	go broadcastStatus(ctx, hub, kill, workerRepo)

	// Оркестраторы воркеров: по одному на клиента
	var workersWg sync.WaitGroup
	clientIDs, err := clientRepo.ListIDs()
	if err != nil {
		logger.Fatalw("failed to list clients", "error", err)
	}

	for _, clientID := range clientIDs {
		client, err := clientRepo.GetByID(clientID)
		if err != nil {
			logger.Errorw("skipping client, load failed", "client_id", clientID, "error", err)
			continue
		}

		orch := worker.NewOrchestrator(clientID, worker.Deps{
			Clients:   clientRepo,
			Jobs:      jobRepo,
			Workers:   workerRepo,
			Breaker:   registry.ForClient(client),
			Kill:      kill,
			Catalog:   catalog,
			Runner:    runner,
			Approvals: approvals,
			Anomalies: anomalies,
		}, worker.Config{
			PollInterval:      cfg.Worker.PollInterval,
			HeartbeatInterval: cfg.Worker.HeartbeatInterval,
			EncryptionKey:     []byte(cfg.Security.EncryptionKey),
		})

		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			orch.Run(ctx)
		}()
	}

	logger.Infow("workers started", "count", len(clientIDs))

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		KillSwitch:     kill,
		Registry:       registry,
		Approvals:      approvals,
		ApprovalRepo:   approvalRepo,
		WorkerRepo:     workerRepo,
		ClientRepo:     clientRepo,
		JobRepo:        jobRepo,
		RiskEventRepo:  riskEventRepo,
		Hub:            hub,
		OperatorTokens: cfg.Security.OperatorTokens,
	}

	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		logger.Infow("starting server", "addr", server.Addr, "https", cfg.Server.UseHTTPS)
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				logger.Fatalw("server failed", "error", err)
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatalw("server failed", "error", err)
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infow("shutting down")

	// Останавливаем фоновые подсистемы, ждем финальные heartbeat воркеров
	cancel()
	workersWg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("server forced to shutdown", "error", err)
	}

	// Нотификатор дожимает очередь после cancel
	select {
	case <-notifier.Done():
	case <-shutdownCtx.Done():
		logger.Warnw("notifier drain timed out")
	}

	logger.Infow("server exited")
}

// broadcastStatus периодически шлет в портал состояние kill switch и воркеров
func broadcastStatus(ctx context.Context, hub *websocket.Hub, kill *guard.KillSwitch, workers *repository.WorkerRepository) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if hub.ClientCount() == 0 {
				continue
			}

			reason, clientID := "", ""
			if activation := kill.LastActivation(); activation != nil {
				reason, clientID = activation.Reason, activation.ClientID
			}
			hub.BroadcastKillSwitch(kill.IsActive(), reason, clientID)

			records, err := workers.ListActive(5 * time.Minute)
			if err != nil {
				utils.L().Warnw("worker status broadcast failed", "error", err)
				continue
			}
			for _, rec := range records {
				hub.BroadcastWorkerStatus(rec.WorkerID, rec.ClientID, rec.Status)
			}
		}
	}
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
