package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"tradeguard/internal/guard"
	"tradeguard/internal/models"
	"tradeguard/internal/repository"
	"tradeguard/pkg/utils"
)

// RiskEventLister - чтение журнала риск-событий
type RiskEventLister interface {
	ListRecent(limit int) ([]*models.RiskEvent, error)
}

// RiskHandler отдает риск-события и guard-состояние клиентов.
//
// Endpoints:
// - GET /api/v1/risk-events - последние события Sentinel
// - GET /api/v1/clients/{id}/guard - снимок GuardState клиента
type RiskHandler struct {
	events   RiskEventLister
	registry *guard.Registry
	clients  ClientControl
}

// NewRiskHandler создает handler с внедрением зависимостей
func NewRiskHandler(events RiskEventLister, registry *guard.Registry, clients ClientControl) *RiskHandler {
	return &RiskHandler{events: events, registry: registry, clients: clients}
}

// ListEvents возвращает последние риск-события
//
// GET /api/v1/risk-events?limit=100
func (h *RiskHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = utils.ClampInt(n, 1, 1000)
		}
	}

	events, err := h.events.ListRecent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list risk events", err)
		return
	}
	if events == nil {
		events = []*models.RiskEvent{}
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Data: events})
}

// GetGuardState возвращает снимок guard-состояния клиента
//
// GET /api/v1/clients/{id}/guard
func (h *RiskHandler) GetGuardState(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["id"]

	client, err := h.clients.GetByID(clientID)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			writeError(w, http.StatusNotFound, "client not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load client", err)
		return
	}

	snapshot, err := h.registry.ForClient(client).Snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load guard state", err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Data: snapshot})
}
