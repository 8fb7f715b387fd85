// Package api настраивает HTTP поверхность операторского портала.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradeguard/internal/api/handlers"
	"tradeguard/internal/api/middleware"
	"tradeguard/internal/guard"
	"tradeguard/internal/policy"
	"tradeguard/internal/repository"
	"tradeguard/internal/websocket"
)

// Dependencies - зависимости HTTP handlers
type Dependencies struct {
	KillSwitch *guard.KillSwitch
	Registry   *guard.Registry
	Approvals  *policy.ApprovalPolicy

	ApprovalRepo  *repository.ApprovalRepository
	WorkerRepo    *repository.WorkerRepository
	ClientRepo    *repository.ClientRepository
	JobRepo       *repository.JobRepository
	RiskEventRepo *repository.RiskEventRepository

	Hub *websocket.Hub

	// OperatorTokens - имя оператора -> bcrypt хеш токена
	OperatorTokens map[string]string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/ (operator auth)
//
//	├── /killswitch
//	│   ├── GET / - состояние
//	│   ├── POST /activate - ручная активация
//	│   └── POST /deactivate - деактивация
//	├── /approvals
//	│   ├── GET /pending - очередь согласований
//	│   ├── POST /{id}/approve - одобрить
//	│   └── POST /{id}/reject - отклонить
//	├── /workers
//	│   ├── GET / - живые воркеры
//	│   └── GET /{id} - запись одного воркера
//	├── /clients/{id}
//	│   ├── POST /pause - пауза через очередь
//	│   ├── POST /resume - возобновление
//	│   ├── POST /kill - терминальная остановка
//	│   └── GET /guard - снимок GuardState
//	└── /risk-events
//	    └── GET / - журнал Sentinel
//
// /ws/stream - WebSocket поток событий
// /metrics - Prometheus
// /health - liveness probe
//
// Middleware: Recovery -> Logging -> CORS для всех, OperatorAuth
// только для /api/v1.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	killHandler := handlers.NewKillSwitchHandler(deps.KillSwitch)
	approvalHandler := handlers.NewApprovalHandler(deps.Approvals, deps.ApprovalRepo)
	workerHandler := handlers.NewWorkerHandler(deps.WorkerRepo, deps.ClientRepo, deps.JobRepo)
	riskHandler := handlers.NewRiskHandler(deps.RiskEventRepo, deps.Registry, deps.ClientRepo)

	api := router.PathPrefix("/api/v1").Subrouter()
	auth := middleware.NewOperatorAuth(deps.OperatorTokens)
	api.Use(auth.Middleware)

	// Kill switch
	api.HandleFunc("/killswitch", killHandler.GetState).Methods("GET")
	api.HandleFunc("/killswitch/activate", killHandler.Activate).Methods("POST")
	api.HandleFunc("/killswitch/deactivate", killHandler.Deactivate).Methods("POST")

	// Согласования
	api.HandleFunc("/approvals/pending", approvalHandler.ListPending).Methods("GET")
	api.HandleFunc("/approvals/{id}/approve", approvalHandler.Approve).Methods("POST")
	api.HandleFunc("/approvals/{id}/reject", approvalHandler.Reject).Methods("POST")

	// Воркеры и клиенты
	api.HandleFunc("/workers", workerHandler.ListWorkers).Methods("GET")
	api.HandleFunc("/workers/{id}", workerHandler.GetWorker).Methods("GET")
	api.HandleFunc("/clients/{id}/pause", workerHandler.PauseClient).Methods("POST")
	api.HandleFunc("/clients/{id}/resume", workerHandler.ResumeClient).Methods("POST")
	api.HandleFunc("/clients/{id}/kill", workerHandler.KillClient).Methods("POST")
	api.HandleFunc("/clients/{id}/guard", riskHandler.GetGuardState).Methods("GET")

	// Риск-события
	api.HandleFunc("/risk-events", riskHandler.ListEvents).Methods("GET")

	// WebSocket поток для портала
	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		})
	}

	// Телеметрия и liveness
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
