package models

import "time"

// TradeApprovalRecord - запись о согласовании крупной сделки
//
// Ключ (client_id, correlation_id) уникален: повторная подача того же
// кандидата сделки идемпотентна и ссылается на ту же запись.
// После approved/rejected статус терминален.
type TradeApprovalRecord struct {
	ID            int                    `json:"id" db:"id"`
	ClientID      string                 `json:"client_id" db:"client_id"`
	StrategyID    string                 `json:"strategy_id" db:"strategy_id"`
	CorrelationID string                 `json:"correlation_id" db:"correlation_id"`
	Status        string                 `json:"status" db:"status"` // pending, approved, rejected
	AmountUsd     float64                `json:"amount_usd" db:"amount_usd"`
	RequestedBy   string                 `json:"requested_by" db:"requested_by"`
	Meta          map[string]interface{} `json:"meta,omitempty" db:"meta"`
	CreatedAt     time.Time              `json:"created_at" db:"created_at"`
	ResolvedAt    *time.Time             `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Статусы согласования
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)
