package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tradeguard/internal/api/middleware"
	"tradeguard/internal/models"
	"tradeguard/internal/repository"
)

// WorkerLister - чтение реестра воркеров
type WorkerLister interface {
	ListActive(maxAge time.Duration) ([]*models.WorkerRecord, error)
	GetByID(workerID string) (*models.WorkerRecord, error)
}

// ClientControl - управление клиентом (пауза, kill)
type ClientControl interface {
	GetByID(id string) (*models.ClientRecord, error)
	SetKillRequested(id string, requested bool) error
}

// JobEnqueuer - постановка управляющих job в очередь клиента
type JobEnqueuer interface {
	Enqueue(clientID string, jobType models.JobType, payload models.JobPayload) (*models.Job, error)
}

// WorkerHandler отдает состояние воркеров и управляет клиентами.
//
// Endpoints:
// - GET /api/v1/workers - живые воркеры с последними heartbeat
// - GET /api/v1/workers/{id} - запись одного воркера
// - POST /api/v1/clients/{id}/pause - поставить pause job
// - POST /api/v1/clients/{id}/resume - поставить resume job
// - POST /api/v1/clients/{id}/kill - запросить терминальную остановку
//
// Пауза и возобновление идут через очередь job (сериализуются с
// запусками стратегий), kill пишется в ClientRecord напрямую:
// воркер увидит флаг перед следующим job.
type WorkerHandler struct {
	workers WorkerLister
	clients ClientControl
	jobs    JobEnqueuer
}

// NewWorkerHandler создает handler с внедрением зависимостей
func NewWorkerHandler(workers WorkerLister, clients ClientControl, jobs JobEnqueuer) *WorkerHandler {
	return &WorkerHandler{workers: workers, clients: clients, jobs: jobs}
}

// ListWorkers возвращает воркеры с heartbeat за последние 5 минут
//
// GET /api/v1/workers
func (h *WorkerHandler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	records, err := h.workers.ListActive(5 * time.Minute)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list workers", err)
		return
	}
	if records == nil {
		records = []*models.WorkerRecord{}
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Data: records})
}

// GetWorker возвращает запись одного воркера, включая неактивные
//
// GET /api/v1/workers/{id}
func (h *WorkerHandler) GetWorker(w http.ResponseWriter, r *http.Request) {
	record, err := h.workers.GetByID(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, repository.ErrWorkerNotFound) {
			writeError(w, http.StatusNotFound, "worker not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load worker", err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Data: record})
}

// PauseClient ставит pause job в очередь клиента
//
// POST /api/v1/clients/{id}/pause
func (h *WorkerHandler) PauseClient(w http.ResponseWriter, r *http.Request) {
	h.enqueueControl(w, r, models.JobPause)
}

// ResumeClient ставит resume job в очередь клиента
//
// POST /api/v1/clients/{id}/resume
func (h *WorkerHandler) ResumeClient(w http.ResponseWriter, r *http.Request) {
	h.enqueueControl(w, r, models.JobResume)
}

func (h *WorkerHandler) enqueueControl(w http.ResponseWriter, r *http.Request, jobType models.JobType) {
	clientID := mux.Vars(r)["id"]

	if _, err := h.clients.GetByID(clientID); err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			writeError(w, http.StatusNotFound, "client not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load client", err)
		return
	}

	operator := middleware.OperatorFromContext(r.Context())
	job, err := h.jobs.Enqueue(clientID, jobType, models.JobPayload{Actor: "operator:" + operator})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to enqueue job", err)
		return
	}

	writeJSON(w, http.StatusAccepted, SuccessResponse{Data: job})
}

// KillClient запрашивает терминальную остановку воркера клиента
//
// POST /api/v1/clients/{id}/kill
func (h *WorkerHandler) KillClient(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["id"]

	if err := h.clients.SetKillRequested(clientID, true); err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			writeError(w, http.StatusNotFound, "client not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to request kill", err)
		return
	}

	writeJSON(w, http.StatusAccepted, SuccessResponse{Message: "kill requested"})
}
