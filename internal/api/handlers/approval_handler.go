package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"tradeguard/internal/api/middleware"
	"tradeguard/internal/models"
	"tradeguard/internal/policy"
	"tradeguard/internal/repository"
	"tradeguard/pkg/utils"
)

// ApprovalLister - чтение записей согласования (реализуется repository)
type ApprovalLister interface {
	ListPending(limit int) ([]*models.TradeApprovalRecord, error)
}

// ApprovalHandler обрабатывает согласование крупных сделок.
//
// Endpoints:
// - GET /api/v1/approvals/pending - очередь ожидающих согласований
// - POST /api/v1/approvals/{id}/approve - одобрить (оператор)
// - POST /api/v1/approvals/{id}/reject - отклонить (оператор)
type ApprovalHandler struct {
	approvals *policy.ApprovalPolicy
	lister    ApprovalLister
}

// NewApprovalHandler создает handler с внедрением зависимостей
func NewApprovalHandler(approvals *policy.ApprovalPolicy, lister ApprovalLister) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals, lister: lister}
}

// ListPending возвращает очередь ожидающих согласований
//
// GET /api/v1/approvals/pending?limit=50
func (h *ApprovalHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = utils.ClampInt(n, 1, 500)
		}
	}

	records, err := h.lister.ListPending(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list approvals", err)
		return
	}
	if records == nil {
		records = []*models.TradeApprovalRecord{}
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Data: records})
}

// Approve одобряет согласование
//
// POST /api/v1/approvals/{id}/approve
func (h *ApprovalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.approvals.Approve)
}

// Reject отклоняет согласование
//
// POST /api/v1/approvals/{id}/reject
func (h *ApprovalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.approvals.Reject)
}

func (h *ApprovalHandler) resolve(w http.ResponseWriter, r *http.Request, fn func(int, string) (*models.TradeApprovalRecord, error)) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid approval id", err)
		return
	}

	operator := middleware.OperatorFromContext(r.Context())

	rec, err := fn(id, operator)
	switch {
	case errors.Is(err, repository.ErrApprovalNotFound):
		writeError(w, http.StatusNotFound, "approval not found", nil)
	case errors.Is(err, repository.ErrApprovalResolved):
		writeError(w, http.StatusConflict, "approval already resolved", nil)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to resolve approval", err)
	default:
		writeJSON(w, http.StatusOK, SuccessResponse{Data: rec})
	}
}
