// Package policy содержит торговые политики: согласование крупных
// сделок и мягкий мониторинг аномалий.
package policy

import (
	"errors"
	"fmt"

	"tradeguard/internal/models"
	"tradeguard/internal/repository"
	"tradeguard/pkg/utils"
)

// ApprovalStore - хранилище записей согласования
type ApprovalStore interface {
	CreatePending(rec *models.TradeApprovalRecord) error
	GetByCorrelation(clientID, correlationID string) (*models.TradeApprovalRecord, error)
	GetByID(id int) (*models.TradeApprovalRecord, error)
	UpdateStatus(id int, status string) error
}

// AuditStore - аудит-журнал
type AuditStore interface {
	AddEntry(clientID, actor, action string, meta map[string]interface{}) error
}

// Notifier - уведомления (реализуется notify.Notifier)
type Notifier interface {
	NotifyOps(message string)
	NotifyClient(clientID, subject, message string)
}

// ApprovalRequiredError - типизированная ошибка "сделка требует согласования"
//
// Несет запись согласования: вызывающий показывает ее в UI вместо
// молчаливого отбрасывания сделки.
type ApprovalRequiredError struct {
	Record *models.TradeApprovalRecord
}

func (e *ApprovalRequiredError) Error() string {
	return fmt.Sprintf("trade %s for client %s requires approval (%.2f USD, status %s)",
		e.Record.CorrelationID, e.Record.ClientID, e.Record.AmountUsd, e.Record.Status)
}

// ApprovalInput - кандидат сделки на проверку
type ApprovalInput struct {
	ClientID      string
	StrategyID    string
	CorrelationID string
	AmountUsd     float64
	RequestedBy   string
	Meta          map[string]interface{}
}

// ApprovalPolicy - human-in-the-loop гейт для крупных сделок
//
// Ключ (clientID, correlationID): повторная подача того же кандидата
// идемпотентна и ссылается на ту же запись.
type ApprovalPolicy struct {
	approvals    ApprovalStore
	audit        AuditStore
	notifier     Notifier
	thresholdUsd float64
}

// NewApprovalPolicy создает политику согласования
func NewApprovalPolicy(approvals ApprovalStore, audit AuditStore, notifier Notifier, thresholdUsd float64) *ApprovalPolicy {
	return &ApprovalPolicy{
		approvals:    approvals,
		audit:        audit,
		notifier:     notifier,
		thresholdUsd: thresholdUsd,
	}
}

// EnsureApproved проверяет кандидата сделки против порога согласования
//
// Ниже порога: no-op. На пороге и выше:
//   - approved запись есть: сделка проходит молча
//   - pending запись есть: ApprovalRequiredError с той же записью,
//     дубликат не создается
//   - rejected запись есть: ApprovalRequiredError (сделка не проходит)
//   - записи нет: создается pending, пишется аудит, возвращается
//     ApprovalRequiredError с новой записью
func (p *ApprovalPolicy) EnsureApproved(input ApprovalInput) error {
	if input.AmountUsd < p.thresholdUsd {
		return nil
	}

	existing, err := p.approvals.GetByCorrelation(input.ClientID, input.CorrelationID)
	if err != nil && !errors.Is(err, repository.ErrApprovalNotFound) {
		return fmt.Errorf("lookup approval: %w", err)
	}

	if existing != nil {
		if existing.Status == models.ApprovalApproved {
			return nil
		}
		// pending или rejected: сделка не проходит, дубликата нет
		return &ApprovalRequiredError{Record: existing}
	}

	rec := &models.TradeApprovalRecord{
		ClientID:      input.ClientID,
		StrategyID:    input.StrategyID,
		CorrelationID: input.CorrelationID,
		Status:        models.ApprovalPending,
		AmountUsd:     input.AmountUsd,
		RequestedBy:   input.RequestedBy,
		Meta:          input.Meta,
	}
	if err := p.approvals.CreatePending(rec); err != nil {
		return fmt.Errorf("create pending approval: %w", err)
	}

	PendingCreated.Inc()

	if err := p.audit.AddEntry(input.ClientID, input.RequestedBy, models.AuditActionApprovalRequested, map[string]interface{}{
		"correlation_id": input.CorrelationID,
		"strategy_id":    input.StrategyID,
		"amount_usd":     input.AmountUsd,
	}); err != nil {
		// Аудит не должен блокировать решение
		utils.L().Errorw("failed to write approval audit entry",
			"client_id", input.ClientID,
			"correlation_id", input.CorrelationID,
			"error", err,
		)
	}

	p.notifier.NotifyOps(fmt.Sprintf("approval required: client %s, trade %s, %.2f USD",
		input.ClientID, input.CorrelationID, input.AmountUsd))

	utils.L().Infow("trade approval requested",
		"client_id", input.ClientID,
		"correlation_id", input.CorrelationID,
		"amount_usd", input.AmountUsd,
	)

	return &ApprovalRequiredError{Record: rec}
}

// Approve переводит запись в approved (операторское действие)
func (p *ApprovalPolicy) Approve(id int, operator string) (*models.TradeApprovalRecord, error) {
	return p.resolve(id, operator, models.ApprovalApproved, models.AuditActionApprovalApproved)
}

// Reject переводит запись в rejected (операторское действие)
func (p *ApprovalPolicy) Reject(id int, operator string) (*models.TradeApprovalRecord, error) {
	return p.resolve(id, operator, models.ApprovalRejected, models.AuditActionApprovalRejected)
}

func (p *ApprovalPolicy) resolve(id int, operator, status, auditAction string) (*models.TradeApprovalRecord, error) {
	if err := p.approvals.UpdateStatus(id, status); err != nil {
		return nil, err
	}

	rec, err := p.approvals.GetByID(id)
	if err != nil {
		return nil, err
	}

	Resolved.WithLabelValues(status).Inc()

	if err := p.audit.AddEntry(rec.ClientID, "operator:"+operator, auditAction, map[string]interface{}{
		"approval_id":    rec.ID,
		"correlation_id": rec.CorrelationID,
		"amount_usd":     rec.AmountUsd,
	}); err != nil {
		utils.L().Errorw("failed to write approval audit entry", "approval_id", rec.ID, "error", err)
	}

	p.notifier.NotifyClient(rec.ClientID,
		"Trade "+status,
		fmt.Sprintf("trade %s (%.2f USD) was %s by %s", rec.CorrelationID, rec.AmountUsd, status, operator))

	utils.L().Infow("trade approval resolved",
		"approval_id", rec.ID,
		"status", status,
		"operator", operator,
	)

	return rec, nil
}
