package handlers

import (
	"encoding/json"
	"net/http"

	"tradeguard/internal/api/middleware"
	"tradeguard/internal/guard"
)

// KillSwitchHandler управляет глобальным kill switch через API.
//
// Endpoints:
// - GET /api/v1/killswitch - текущее состояние и последняя активация
// - POST /api/v1/killswitch/activate - ручная активация оператором
// - POST /api/v1/killswitch/deactivate - деактивация (только оператор)
type KillSwitchHandler struct {
	kill *guard.KillSwitch
}

// NewKillSwitchHandler создает handler с внедрением зависимостей
func NewKillSwitchHandler(kill *guard.KillSwitch) *KillSwitchHandler {
	return &KillSwitchHandler{kill: kill}
}

// killSwitchState - тело ответа GET /killswitch
type killSwitchState struct {
	Active         bool              `json:"active"`
	LastActivation *guard.Activation `json:"last_activation,omitempty"`
}

// GetState возвращает состояние kill switch
//
// GET /api/v1/killswitch
func (h *KillSwitchHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, killSwitchState{
		Active:         h.kill.IsActive(),
		LastActivation: h.kill.LastActivation(),
	})
}

// activateRequest - тело POST /killswitch/activate
type activateRequest struct {
	Reason   string `json:"reason"`
	ClientID string `json:"client_id,omitempty"`
}

// Activate активирует kill switch вручную
//
// POST /api/v1/killswitch/activate
// Body: {"reason": "...", "client_id": "..."}
func (h *KillSwitchHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required", nil)
		return
	}

	operator := middleware.OperatorFromContext(r.Context())
	reason := "operator " + operator + ": " + req.Reason

	if !h.kill.Activate(reason, req.ClientID) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: "kill switch already active",
		})
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Message: "kill switch activated"})
}

// Deactivate снимает kill switch (отдельно авторизуемая операция)
//
// POST /api/v1/killswitch/deactivate
func (h *KillSwitchHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	operator := middleware.OperatorFromContext(r.Context())

	if !h.kill.Deactivate(operator) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: "kill switch is not active",
		})
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Message: "kill switch deactivated"})
}
