package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"tradeguard/internal/models"
)

// ============ WorkerHandler Tests ============

func TestWorkerHandler_ListWorkers(t *testing.T) {
	t.Run("returns active workers", func(t *testing.T) {
		workers := NewMockWorkerLister()
		workers.records = []*models.WorkerRecord{
			{WorkerID: "worker-client-1", ClientID: "client-1", Status: models.WorkerRunning, LastHeartbeat: time.Now()},
			{WorkerID: "worker-client-2", ClientID: "client-2", Status: models.WorkerPaused, LastHeartbeat: time.Now()},
		}
		handler := NewWorkerHandler(workers, NewMockClientControl(), NewMockJobEnqueuer())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/workers", nil)
		w := httptest.NewRecorder()

		handler.ListWorkers(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response struct {
			Data []*models.WorkerRecord `json:"data"`
		}
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(response.Data) != 2 {
			t.Errorf("expected 2 workers, got %d", len(response.Data))
		}
	})

	t.Run("returns empty array instead of null", func(t *testing.T) {
		handler := NewWorkerHandler(NewMockWorkerLister(), NewMockClientControl(), NewMockJobEnqueuer())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/workers", nil)
		w := httptest.NewRecorder()

		handler.ListWorkers(w, req)

		var response struct {
			Data []*models.WorkerRecord `json:"data"`
		}
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Data == nil {
			t.Error("data should be an empty array, not null")
		}
	})

	t.Run("returns 500 on store error", func(t *testing.T) {
		workers := NewMockWorkerLister()
		workers.err = ErrMockDatabase
		handler := NewWorkerHandler(workers, NewMockClientControl(), NewMockJobEnqueuer())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/workers", nil)
		w := httptest.NewRecorder()

		handler.ListWorkers(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestWorkerHandler_GetWorker(t *testing.T) {
	t.Run("returns worker by id", func(t *testing.T) {
		workers := NewMockWorkerLister()
		workers.records = []*models.WorkerRecord{
			{WorkerID: "worker-client-1", ClientID: "client-1", Status: models.WorkerStopped, LastHeartbeat: time.Now()},
		}
		handler := NewWorkerHandler(workers, NewMockClientControl(), NewMockJobEnqueuer())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/workers/worker-client-1", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "worker-client-1"})
		w := httptest.NewRecorder()

		handler.GetWorker(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response struct {
			Data *models.WorkerRecord `json:"data"`
		}
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Data.ClientID != "client-1" {
			t.Errorf("client_id = %q, want client-1", response.Data.ClientID)
		}
	})

	t.Run("returns 404 for unknown worker", func(t *testing.T) {
		handler := NewWorkerHandler(NewMockWorkerLister(), NewMockClientControl(), NewMockJobEnqueuer())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/workers/ghost", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "ghost"})
		w := httptest.NewRecorder()

		handler.GetWorker(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})
}

func TestWorkerHandler_PauseClient(t *testing.T) {
	t.Run("enqueues pause job", func(t *testing.T) {
		jobs := NewMockJobEnqueuer()
		handler := NewWorkerHandler(NewMockWorkerLister(), NewMockClientControl("client-1"), jobs)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/clients/client-1/pause", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "client-1"})
		w := httptest.NewRecorder()

		handler.PauseClient(w, req)

		if w.Code != http.StatusAccepted {
			t.Errorf("expected status %d, got %d", http.StatusAccepted, w.Code)
		}
		if len(jobs.enqueued) != 1 {
			t.Fatalf("expected 1 enqueued job, got %d", len(jobs.enqueued))
		}
		if jobs.enqueued[0].Type != models.JobPause {
			t.Errorf("expected pause job, got %s", jobs.enqueued[0].Type)
		}
	})

	t.Run("returns 404 for unknown client", func(t *testing.T) {
		jobs := NewMockJobEnqueuer()
		handler := NewWorkerHandler(NewMockWorkerLister(), NewMockClientControl(), jobs)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/clients/ghost/pause", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "ghost"})
		w := httptest.NewRecorder()

		handler.PauseClient(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
		if len(jobs.enqueued) != 0 {
			t.Error("no job should be enqueued for unknown client")
		}
	})
}

func TestWorkerHandler_ResumeClient(t *testing.T) {
	t.Run("enqueues resume job", func(t *testing.T) {
		jobs := NewMockJobEnqueuer()
		handler := NewWorkerHandler(NewMockWorkerLister(), NewMockClientControl("client-1"), jobs)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/clients/client-1/resume", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "client-1"})
		w := httptest.NewRecorder()

		handler.ResumeClient(w, req)

		if w.Code != http.StatusAccepted {
			t.Errorf("expected status %d, got %d", http.StatusAccepted, w.Code)
		}
		if len(jobs.enqueued) != 1 || jobs.enqueued[0].Type != models.JobResume {
			t.Error("resume job should be enqueued")
		}
	})
}

func TestWorkerHandler_KillClient(t *testing.T) {
	t.Run("sets kill flag on client", func(t *testing.T) {
		clients := NewMockClientControl("client-1")
		handler := NewWorkerHandler(NewMockWorkerLister(), clients, NewMockJobEnqueuer())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/clients/client-1/kill", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "client-1"})
		w := httptest.NewRecorder()

		handler.KillClient(w, req)

		if w.Code != http.StatusAccepted {
			t.Errorf("expected status %d, got %d", http.StatusAccepted, w.Code)
		}
		if !clients.killRequested["client-1"] {
			t.Error("kill_requested flag should be set")
		}
	})

	t.Run("returns 404 for unknown client", func(t *testing.T) {
		handler := NewWorkerHandler(NewMockWorkerLister(), NewMockClientControl(), NewMockJobEnqueuer())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/clients/ghost/kill", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "ghost"})
		w := httptest.NewRecorder()

		handler.KillClient(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})
}
